// Package guardctl implements the coordination bus's pre-commit/pre-push
// guard-script tools: install and uninstall a chain-runner hook layout
// that refuses (or warns on) commits touching files another agent holds
// an active exclusive reservation on.
package guardctl

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/guard"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/messaging"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

func reservationsDir(archives messaging.ArchiveAccessor, slug string) (string, error) {
	ar, err := archives.Open(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(ar.Root(), "file_reservations"), nil
}

func parseHook(name string) (guard.Hook, error) {
	switch name {
	case "", string(guard.HookPreCommit):
		return guard.HookPreCommit, nil
	case string(guard.HookPrePush):
		return guard.HookPrePush, nil
	default:
		return "", apperr.Newf(apperr.InvalidArgument, "unknown hook %q, expected pre-commit or pre-push", name)
	}
}

func parseMode(name string) (guard.Mode, error) {
	switch name {
	case "", string(guard.ModeBlock):
		return guard.ModeBlock, nil
	case string(guard.ModeWarn):
		return guard.ModeWarn, nil
	default:
		return "", apperr.Newf(apperr.InvalidArgument, "unknown mode %q, expected block or warn", name)
	}
}

// --- install_precommit_guard ---

type installParams struct {
	ProjectSlug string `json:"project_slug"`
	RepoRoot    string `json:"repo_root"`
	Hook        string `json:"hook"`
	Mode        string `json:"mode"`
	Format      string `json:"format,omitempty"`
}

// InstallPrecommitGuard writes the chain-runner hook layout into a git
// worktree, preserving any pre-existing hook as <hook>.orig.
type InstallPrecommitGuard struct {
	Store    *store.Store
	Archives messaging.ArchiveAccessor
}

func NewInstallPrecommitGuard(s *store.Store, archives messaging.ArchiveAccessor) *InstallPrecommitGuard {
	return &InstallPrecommitGuard{Store: s, Archives: archives}
}

func (t *InstallPrecommitGuard) Name() string { return "install_precommit_guard" }
func (t *InstallPrecommitGuard) Description() string {
	return "Install a chain-runner git hook that blocks or warns on commits touching another agent's exclusive file reservation."
}
func (t *InstallPrecommitGuard) Cluster() mcp.Cluster           { return mcp.ClusterFileReservations }
func (t *InstallPrecommitGuard) RequiredCapabilities() []string { return nil }
func (t *InstallPrecommitGuard) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "repo_root": {"type": "string", "description": "Absolute path to the git worktree to install the hook into"},
    "hook": {"type": "string", "enum": ["pre-commit", "pre-push"], "description": "Defaults to pre-commit"},
    "mode": {"type": "string", "enum": ["block", "warn"], "description": "Defaults to block"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "repo_root"]
}`)
}

func (t *InstallPrecommitGuard) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p installParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	hook, err := parseHook(p.Hook)
	if err != nil {
		return toolkit.Err(params, err)
	}
	mode, err := parseMode(p.Mode)
	if err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	dir, err := reservationsDir(t.Archives, project.Slug)
	if err != nil {
		return toolkit.Err(params, err)
	}

	inst := &guard.Installer{ReservationsDir: dir, Mode: mode}
	if err := inst.Install(p.RepoRoot, hook); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"installed": true, "hook": string(hook), "mode": string(mode)})
}

// --- uninstall_precommit_guard ---

type uninstallParams struct {
	RepoRoot string `json:"repo_root"`
	Hook     string `json:"hook"`
	Format   string `json:"format,omitempty"`
}

// UninstallPrecommitGuard removes the reservation-guard plugin and, if no
// other chained hook remains, restores any preserved original hook.
type UninstallPrecommitGuard struct{}

func NewUninstallPrecommitGuard() *UninstallPrecommitGuard { return &UninstallPrecommitGuard{} }

func (t *UninstallPrecommitGuard) Name() string { return "uninstall_precommit_guard" }
func (t *UninstallPrecommitGuard) Description() string {
	return "Remove the reservation-guard hook plugin, restoring any hook it preserved."
}
func (t *UninstallPrecommitGuard) Cluster() mcp.Cluster           { return mcp.ClusterFileReservations }
func (t *UninstallPrecommitGuard) RequiredCapabilities() []string { return nil }
func (t *UninstallPrecommitGuard) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "repo_root": {"type": "string"},
    "hook": {"type": "string", "enum": ["pre-commit", "pre-push"], "description": "Defaults to pre-commit"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["repo_root"]
}`)
}

func (t *UninstallPrecommitGuard) Execute(_ context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p uninstallParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	hook, err := parseHook(p.Hook)
	if err != nil {
		return toolkit.Err(params, err)
	}
	inst := &guard.Installer{}
	if err := inst.Uninstall(p.RepoRoot, hook); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"uninstalled": true, "hook": string(hook)})
}
