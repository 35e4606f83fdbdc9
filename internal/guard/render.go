// Package guard generates and installs git hook scripts that block (or
// warn on) commits/pushes touching files under another agent's active
// exclusive file reservation. The generated scripts are POSIX shell, not Go: they
// run inside the user's git client with no guarantee a Go toolchain (or
// even this server) is anywhere on the machine running the commit.
package guard

import (
	"fmt"
)

// Mode controls whether a detected conflict blocks the git operation or
// only prints a warning and lets it through.
type Mode string

const (
	ModeBlock Mode = "block"
	ModeWarn  Mode = "warn"
)

// Hook names the guard generator supports.
type Hook string

const (
	HookPreCommit Hook = "pre-commit"
	HookPrePush   Hook = "pre-push"
)

// ChainRunnerScript renders the dispatcher installed directly at
// .git/hooks/<hook>: it runs every script under hooks.d/<hook>/ in lexical
// order, stopping at the first non-zero exit.
func ChainRunnerScript(hook Hook) string {
	return fmt.Sprintf(`#!/bin/sh
# agentmail chain runner for %s — do not edit by hand.
# Runs every script in hooks.d/%s/ in lexical order.
set -e

hook_dir="$(cd "$(dirname "$0")" && pwd)"
chain_dir="$hook_dir/hooks.d/%s"

if [ -d "$chain_dir" ]; then
	for script in "$chain_dir"/*; do
		[ -e "$script" ] || continue
		[ -x "$script" ] || continue
		"$script" "$@" || exit $?
	done
fi

orig="$hook_dir/%s.orig"
if [ -x "$orig" ]; then
	"$orig" "$@" || exit $?
fi

exit 0
`, hook, hook, hook, hook)
}

// pluginFilename is the fixed lexical position of the reservation check
// within a hook's chain — "50-" leaves room for earlier/later hooks
// without a rename.
const pluginFilename = "50-agent-mail.sh"

// PluginScript renders the reservation-conflict check installed at
// hooks.d/<hook>/50-agent-mail.sh. It reads reservationsDir directly
// (file_reservations/*.json mirrored by internal/archive) rather than
// calling back into the server, so a guard check works even if the
// coordination server isn't running. Each reservation file is one field
// per line (key=value), not JSON despite the .json extension — kept for
// compatibility with tooling that globs *.json — so the check can be
// written in portable POSIX shell without a JSON parser dependency.
func PluginScript(hook Hook, reservationsDir string, mode Mode) string {
	var blockLine string
	if mode == ModeBlock {
		blockLine = `		exit 1`
	} else {
		blockLine = `		: # warn mode: do not block`
	}

	var diffStatusCmd string
	switch hook {
	case HookPrePush:
		// pre-push receives "<local ref> <local sha1> <remote ref> <remote sha1>"
		// lines on stdin; diff each updated ref against what the remote already
		// has so only commits genuinely being pushed are checked.
		diffStatusCmd = `while read -r local_ref local_sha remote_ref remote_sha; do
	[ "$local_sha" = "0000000000000000000000000000000000000000" ] && continue
	if [ "$remote_sha" = "0000000000000000000000000000000000000000" ]; then
		git diff --name-status -M "$local_sha" 2>/dev/null
	else
		git diff --name-status -M "$remote_sha" "$local_sha" 2>/dev/null
	fi
done`
	default:
		diffStatusCmd = `git diff --cached --name-status -M 2>/dev/null || true`
	}

	return fmt.Sprintf(`#!/bin/sh
# agentmail file-reservation guard for %s — generated, do not edit by hand.

if [ "$AGENT_MAIL_BYPASS" = "1" ]; then
	exit 0
fi
if [ "$WORKTREES_ENABLED" = "0" ] || [ "$GIT_IDENTITY_ENABLED" = "0" ]; then
	exit 0
fi
if [ -z "$AGENT_NAME" ]; then
	echo "agentmail: AGENT_NAME is not set; skipping reservation check" >&2
	exit 0
fi

reservations_dir="%s"
guard_mode="${AGENT_MAIL_GUARD_MODE:-%s}"

if [ ! -d "$reservations_dir" ]; then
	exit 0
fi

# -M detects renames; a rename touches both the old and new path, so both
# sides need to be checked against reservations. --name-status prints
# "R100\told\tnew" for a detected rename instead of the usual "M\tpath".
diff_status=$(%s)
if [ -z "$diff_status" ]; then
	exit 0
fi

changed_files=$(echo "$diff_status" | while IFS="$(printf '\t')" read -r status a b; do
	case "$status" in
		R*)
			printf '%%s\n' "$a"
			printf '%%s\n' "$b"
			;;
		*)
			printf '%%s\n' "$a"
			;;
	esac
done)
if [ -z "$changed_files" ]; then
	exit 0
fi

conflict_found=0
# A reservation's mirrored file is removed when it is released, or when a
# sweep releases it after expiry, so presence under reservations_dir is
# taken as the "still active" signal. No timestamp comparison is made here:
# an expired reservation counts until a sweep removes its file.
for resfile in "$reservations_dir"/*.json; do
	[ -e "$resfile" ] || continue

	agent=$(grep '^agent=' "$resfile" | head -n1 | cut -d= -f2-)
	pattern=$(grep '^pattern=' "$resfile" | head -n1 | cut -d= -f2-)
	exclusive=$(grep '^exclusive=' "$resfile" | head -n1 | cut -d= -f2-)

	[ "$agent" = "$AGENT_NAME" ] && continue
	[ -z "$pattern" ] && continue
	[ "$exclusive" = "true" ] || continue

	echo "$changed_files" | while IFS= read -r f; do
		case "$f" in
			$pattern)
				echo "agentmail: $f is under an active reservation held by $agent (pattern: $pattern)" >&2
				if [ "$guard_mode" = "block" ]; then
%s
				fi
				conflict_found=1
				;;
		esac
	# The loop runs in a pipeline subshell; pass its block-mode exit on.
	done || exit $?
done

exit 0
`, hook, reservationsDir, mode, diffStatusCmd, blockLine)
}

// RenderWindowsShims renders the .cmd and .ps1 shims installed alongside
// the POSIX scripts so a Windows git client (which doesn't execute a
// shebang directly) can still dispatch into the same chain.
func RenderWindowsShims(hook Hook) (cmd string, ps1 string) {
	cmd = fmt.Sprintf("@echo off\r\nsh \"%%~dp0%s\" %%*\r\n", hook)
	ps1 = fmt.Sprintf("#!/usr/bin/env pwsh\n& sh \"$PSScriptRoot/%s\" @args\nexit $LASTEXITCODE\n", hook)
	return cmd, ps1
}
