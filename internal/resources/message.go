package resources

import (
	"net/url"
	"strconv"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/messaging"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// Message exposes resource://message/{id}?project=…: a single message's
// full record, including its attachment manifest. project disambiguates
// and authorizes the lookup — a message id from another project is
// reported NOT_FOUND rather than leaked across project boundaries.
type Message struct {
	Store *store.Store
}

func NewMessage(s *store.Store) *Message {
	return &Message{Store: s}
}

func (r *Message) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://message/{id}",
		Name:        "message",
		Description: "A single message by id. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *Message) ReadTemplated(idParam string, query url.Values) (*mcp.ResourcesReadResult, error) {
	ctx := backgroundCtx()
	slug := query.Get("project")
	if slug == "" {
		return nil, apperr.New(apperr.InvalidArgument, "resource://message/{id} requires ?project=<slug>")
	}
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return nil, apperr.Newf(apperr.InvalidArgument, "invalid message id %q", idParam)
	}
	project, err := r.Store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	msg, err := r.Store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ProjectID != project.ID {
		return nil, apperr.Newf(apperr.NotFound, "no message %d in project %q", id, slug)
	}
	recipients, err := r.Store.Recipients(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://message/"+idParam, map[string]any{
		"message":    msg,
		"recipients": recipients,
	})
}

// Thread exposes resource://thread/{id}?project=…: every message sharing a
// thread id, oldest first.
type Thread struct {
	Store *store.Store
}

func NewThread(s *store.Store) *Thread {
	return &Thread{Store: s}
}

func (r *Thread) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://thread/{id}",
		Name:        "thread",
		Description: "Every message in a thread, oldest first. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *Thread) ReadTemplated(threadID string, query url.Values) (*mcp.ResourcesReadResult, error) {
	ctx := backgroundCtx()
	slug := query.Get("project")
	if slug == "" {
		return nil, apperr.New(apperr.InvalidArgument, "resource://thread/{id} requires ?project=<slug>")
	}
	if err := messaging.ValidateThreadID(threadID); err != nil {
		return nil, err
	}
	project, err := r.Store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	msgs, err := r.Store.ListThread(ctx, project.ID, threadID)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://thread/"+threadID, map[string]any{"messages": msgs})
}
