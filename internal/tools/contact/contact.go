// Package contact implements the coordination bus's explicit contact-policy
// tools: request, respond, and list. Auto-handshake (the implicit flow
// triggered by a blocked send) lives in internal/contacts and internal/
// messaging instead — these tools are for a deliberate ask or answer.
package contact

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/contacts"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

// --- request_contact ---

type requestContactParams struct {
	ProjectSlug    string `json:"project_slug"`
	AgentID        int64  `json:"agent_id"`
	PeerProjectSlug string `json:"peer_project_slug"`
	PeerName       string `json:"peer_name"`
	Reason         string `json:"reason"`
	Format         string `json:"format,omitempty"`
}

// RequestContact files an explicit contact request, always landing the
// link in pending regardless of the recipient's auto-accept setting —
// unlike auto-handshake, this is an intentional ask, not a side effect of
// a blocked send.
type RequestContact struct {
	Store *store.Store
}

func NewRequestContact(s *store.Store) *RequestContact { return &RequestContact{Store: s} }

func (t *RequestContact) Name() string { return "request_contact" }
func (t *RequestContact) Description() string {
	return "File an explicit contact request with another agent, landing pending until they respond."
}
func (t *RequestContact) Cluster() mcp.Cluster           { return mcp.ClusterContact }
func (t *RequestContact) RequiredCapabilities() []string { return nil }
func (t *RequestContact) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "agent_id": {"type": "integer"},
    "peer_project_slug": {"type": "string", "description": "Defaults to project_slug when omitted"},
    "peer_name": {"type": "string"},
    "reason": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "agent_id", "peer_name"]
}`)
}

func (t *RequestContact) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p requestContactParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	peerProjectSlug := p.PeerProjectSlug
	if peerProjectSlug == "" {
		peerProjectSlug = p.ProjectSlug
	}
	peerProject, err := t.Store.GetProjectBySlug(ctx, peerProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	peer, err := t.Store.GetAgentByName(ctx, peerProject.ID, p.PeerName)
	if err != nil {
		return toolkit.Err(params, err)
	}

	link, err := contacts.RequestContact(ctx, t.Store, project.ID, p.AgentID, peerProject.ID, peer.ID, p.Reason)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, link)
}

// --- respond_contact ---

type respondContactParams struct {
	ProjectSlug     string `json:"project_slug"`
	AgentID         int64  `json:"agent_id"`
	PeerProjectSlug string `json:"peer_project_slug"`
	PeerName        string `json:"peer_name"`
	Approve         bool   `json:"approve"`
	LinkTTLSeconds  int    `json:"link_ttl_seconds"`
	Format          string `json:"format,omitempty"`
}

// RespondContact answers a pending contact request from the recipient's
// side, approving or blocking it.
type RespondContact struct {
	Store             *store.Store
	DefaultLinkTTL     time.Duration
}

func NewRespondContact(s *store.Store, defaultLinkTTL time.Duration) *RespondContact {
	return &RespondContact{Store: s, DefaultLinkTTL: defaultLinkTTL}
}

func (t *RespondContact) Name() string { return "respond_contact" }
func (t *RespondContact) Description() string {
	return "Approve or block a pending contact request addressed to this agent."
}
func (t *RespondContact) Cluster() mcp.Cluster           { return mcp.ClusterContact }
func (t *RespondContact) RequiredCapabilities() []string { return nil }
func (t *RespondContact) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "agent_id": {"type": "integer"},
    "peer_project_slug": {"type": "string", "description": "Defaults to project_slug when omitted"},
    "peer_name": {"type": "string"},
    "approve": {"type": "boolean"},
    "link_ttl_seconds": {"type": "integer", "description": "Overrides the configured default approval TTL"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "agent_id", "peer_name", "approve"]
}`)
}

func (t *RespondContact) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p respondContactParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	peerProjectSlug := p.PeerProjectSlug
	if peerProjectSlug == "" {
		peerProjectSlug = p.ProjectSlug
	}
	peerProject, err := t.Store.GetProjectBySlug(ctx, peerProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	peer, err := t.Store.GetAgentByName(ctx, peerProject.ID, p.PeerName)
	if err != nil {
		return toolkit.Err(params, err)
	}

	ttl := t.DefaultLinkTTL
	if p.LinkTTLSeconds > 0 {
		ttl = time.Duration(p.LinkTTLSeconds) * time.Second
	}

	link, err := contacts.RespondContact(ctx, t.Store, project.ID, p.AgentID, peerProject.ID, peer.ID, p.Approve, ttl, time.Now().UTC())
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, link)
}

// --- list_contacts ---

type listContactsParams struct {
	ProjectSlug string `json:"project_slug"`
	AgentID     int64  `json:"agent_id"`
	Format      string `json:"format,omitempty"`
}

// ListContacts returns the links an agent initiated (it is the A side),
// whatever the peer's project. Links that other agents initiated toward it
// are not listed.
type ListContacts struct {
	Store *store.Store
}

func NewListContacts(s *store.Store) *ListContacts { return &ListContacts{Store: s} }

func (t *ListContacts) Name() string        { return "list_contacts" }
func (t *ListContacts) Description() string { return "List an agent's contact links, pending, approved, and blocked." }
func (t *ListContacts) Cluster() mcp.Cluster { return mcp.ClusterContact }
func (t *ListContacts) RequiredCapabilities() []string { return nil }
func (t *ListContacts) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "agent_id": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "agent_id"]
}`)
}

func (t *ListContacts) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p listContactsParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	links, err := t.Store.ListLinksFor(ctx, project.ID, p.AgentID)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, links)
}
