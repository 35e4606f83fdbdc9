// Package content provides MCP prompts for the coordination bus server: a
// static, read-only usage guide that a client can fetch instead of
// re-deriving the tool workflow from the tool descriptions alone.
package content

import "github.com/agentmail/agentmail-mcp/internal/mcp"

// --- agentmail-guide prompt ---

// GuidePrompt walks an agent through the coordination bus's session
// lifecycle: identify, reserve, communicate, release.
type GuidePrompt struct{}

func (p *GuidePrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "agentmail-guide",
		Description: "Usage guide for the coordination bus: session start, file reservations, messaging, and contacts.",
		Arguments:   []mcp.PromptArgument{},
	}
}

func (p *GuidePrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	return &mcp.PromptsGetResult{
		Description: "Coordination bus usage guide",
		Messages: []mcp.PromptMessage{
			{
				Role:    "user",
				Content: mcp.TextContent(guideText),
			},
		},
	}, nil
}

const guideText = `# Coordination Bus — Usage Guide

You are one of possibly several autonomous coding agents sharing a single
project checkout. This server coordinates you with the others: it tracks
who you are, which files are currently claimed, and carries mail between
agents so you don't silently collide with concurrent work.

## 1. Identify yourself

Call ` + "`ensure_project`" + ` once per checkout (idempotent — safe to call on
every session start) with the project's root path (the slug is derived
from it), then ` + "`register_agent`" + ` to get a window identity. Prefer the
combined ` + "`macro_start_session`" + ` tool, which does both in one call; it
does not return inbox contents, so use ` + "`fetch_inbox`" + ` for those.

A registered identity is scoped to your terminal window/session, not your
process — if you are resumed in the same window, call ` + "`whois`" + ` first to
recover your existing identity instead of registering a second one.

## 2. Reserve before you edit

Before touching a file or directory glob another agent might also touch,
call ` + "`file_reservation_paths`" + ` with an exclusive pattern (e.g.
` + "`src/auth/**`" + `). A path that conflicts with an active reservation
comes back in the result with granted false and a conflict error; the
error does not name the holder, but the file_reservations resource lists
who holds what — contact them (see below) or wait. Reservations
expire on their own; renew with ` + "`renew_file_reservations`" + ` before a
long-running task's TTL runs out, and release explicitly with
` + "`release_file_reservations`" + ` the moment you're done so others aren't
blocked waiting for a timeout.

If a reservation clearly outlived its holder (crashed session, abandoned
window), an operator or teammate can ` + "`force_release_file_reservation`" + `
once the holder has been inactive past the staleness threshold — this
never reaches across project boundaries.

## 3. Talk to other agents

` + "`send_message`" + `/` + "`reply_message`" + ` post to a project-scoped thread;
` + "`fetch_inbox`" + `/` + "`fetch_topic`" + ` read it back. Mark anything actionable
urgent and request an acknowledgement so the recipient's unread/ack-overdue
resources surface it. First contact across agents that haven't talked
before triggers an automatic handshake unless the recipient's contact
policy requires an explicit request — see ` + "`request_contact`" + `/
` + "`respond_contact`" + ` for that path.

## 4. Search before you ask

` + "`search_messages`" + ` and the thread/recent-activity summarization tools
cover most "has this already been discussed" questions faster than posting
a new message and waiting for a reply.

## 5. Before you commit

If this checkout has the reservation guard installed (see
` + "`install_precommit_guard`" + ` or the ` + "`agentmailctl install-guard`" + `
CLI), a commit or push touching a path someone else holds exclusively will
be blocked or flagged automatically — that is a signal to reconcile with
the holder, not to bypass the hook.
`
