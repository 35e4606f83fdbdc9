package resources

import (
	"net/url"
	"strconv"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

const defaultMailboxLimit = 50

// resolveAgent is the shared lookup every agent-keyed template resource
// needs: a project slug from the query string, then the named agent within
// it.
func resolveAgent(s *store.Store, agentName string, query url.Values) (*store.Agent, error) {
	slug := query.Get("project")
	if slug == "" {
		return nil, apperr.New(apperr.InvalidArgument, "this resource requires ?project=<slug>")
	}
	project, err := s.GetProjectBySlug(backgroundCtx(), slug)
	if err != nil {
		return nil, err
	}
	return s.GetAgentByName(backgroundCtx(), project.ID, agentName)
}

func limitFromQuery(query url.Values, def int) int {
	if raw := query.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Inbox exposes resource://inbox/{agent}?project=…: the agent's received
// messages, newest first — the read-only counterpart to fetch_inbox.
type Inbox struct {
	Store *store.Store
}

func NewInbox(s *store.Store) *Inbox {
	return &Inbox{Store: s}
}

func (r *Inbox) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://inbox/{agent}",
		Name:        "inbox",
		Description: "An agent's received messages, newest first. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *Inbox) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	msgs, err := r.Store.FetchInbox(backgroundCtx(), agent.ID, store.InboxFilter{Limit: limitFromQuery(query, defaultMailboxLimit)})
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://inbox/"+agentName, map[string]any{"messages": msgs})
}

// Outbox exposes resource://outbox/{agent}?project=…: messages sent by the
// agent, newest first.
type Outbox struct {
	Store *store.Store
}

func NewOutbox(s *store.Store) *Outbox {
	return &Outbox{Store: s}
}

func (r *Outbox) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://outbox/{agent}",
		Name:        "outbox",
		Description: "Messages sent by an agent, newest first. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *Outbox) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	msgs, err := r.Store.OutboxForAgent(backgroundCtx(), agent.ID, limitFromQuery(query, defaultMailboxLimit))
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://outbox/"+agentName, map[string]any{"messages": msgs})
}

// Mailbox exposes resource://mailbox/{agent}?project=…: a combined snapshot
// of an agent's identity, inbox, and outbox in one read, for a client that
// wants the full mail picture without three round trips.
type Mailbox struct {
	Store *store.Store
}

func NewMailbox(s *store.Store) *Mailbox {
	return &Mailbox{Store: s}
}

func (r *Mailbox) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://mailbox/{agent}",
		Name:        "mailbox",
		Description: "An agent's identity, inbox, and outbox in one read. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *Mailbox) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	ctx := backgroundCtx()
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	limit := limitFromQuery(query, defaultMailboxLimit)
	inbox, err := r.Store.FetchInbox(ctx, agent.ID, store.InboxFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	outbox, err := r.Store.OutboxForAgent(ctx, agent.ID, limit)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://mailbox/"+agentName, map[string]any{
		"agent":  agent,
		"inbox":  inbox,
		"outbox": outbox,
	})
}
