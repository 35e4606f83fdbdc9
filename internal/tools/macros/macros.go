// Package macros implements workflow composites: multi-step operations an
// agent would otherwise issue as several separate tool calls, collapsed
// into one. Each macro calls directly into the same service layer the
// single-purpose tools use — it does not wrap or re-invoke another tool.
package macros

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gosimple/slug"

	agentident "github.com/agentmail/agentmail-mcp/internal/identity"

	"github.com/agentmail/agentmail-mcp/internal/contacts"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/messaging"
	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

// --- macro_start_session ---

type startSessionParams struct {
	HumanKey    string `json:"human_key"`
	NameHint    string `json:"name_hint"`
	Mode        string `json:"mode"`
	Format      string `json:"format,omitempty"`
}

// MacroStartSession bootstraps a fresh agent session in one call: resolve
// or create the project, then register a new agent identity in it.
type MacroStartSession struct {
	Store       *store.Store
	Archives    messaging.ArchiveAccessor
	DefaultMode agentident.EnforcementMode
	Identity    *agentIdentityResolver
}

// agentIdentityResolver is the narrow slice of RegisterAgent's behavior
// this macro needs, kept separate so the macro doesn't have to import the
// identity tool package's mutex-guarded PRNG state directly.
type agentIdentityResolver struct {
	resolve func(mode agentident.EnforcementMode, requested string) (string, error)
}

// NewAgentIdentityResolver wraps identity.RegisterAgent's name-resolution
// step for reuse by this macro, without exposing its internal PRNG lock.
func NewAgentIdentityResolver(resolve func(mode agentident.EnforcementMode, requested string) (string, error)) *agentIdentityResolver {
	return &agentIdentityResolver{resolve: resolve}
}

func NewMacroStartSession(s *store.Store, archives messaging.ArchiveAccessor, defaultMode agentident.EnforcementMode, identity *agentIdentityResolver) *MacroStartSession {
	return &MacroStartSession{Store: s, Archives: archives, DefaultMode: defaultMode, Identity: identity}
}

func (t *MacroStartSession) Name() string { return "macro_start_session" }
func (t *MacroStartSession) Description() string {
	return "Bootstrap a session: resolve or create the project, then register a new agent identity in it."
}
func (t *MacroStartSession) Cluster() mcp.Cluster           { return mcp.ClusterWorkflowMacros }
func (t *MacroStartSession) RequiredCapabilities() []string { return nil }
func (t *MacroStartSession) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "human_key": {"type": "string", "description": "Absolute path or other stable identifier for the project's working directory"},
    "name_hint": {"type": "string", "description": "A proposed agent name; validated and possibly replaced"},
    "mode": {"type": "string", "enum": ["strict", "coerce", "always_auto"]},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["human_key"]
}`)
}

func (t *MacroStartSession) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p startSessionParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}

	projectSlug := slug.Make(p.HumanKey)
	project, err := t.Store.EnsureProject(ctx, projectSlug, p.HumanKey)
	if err != nil {
		return toolkit.Err(params, err)
	}
	if _, err := t.Archives.Open(project.Slug); err != nil {
		return toolkit.Err(params, err)
	}

	mode := t.DefaultMode
	if p.Mode != "" {
		mode = agentident.EnforcementMode(p.Mode)
	}
	name, err := t.Identity.resolve(mode, p.NameHint)
	if err != nil {
		return toolkit.Err(params, err)
	}
	warnings := agentident.DetectMistakes(name)

	agent, err := t.Store.CreateAgent(ctx, &store.Agent{
		ProjectID:     project.ID,
		Name:          name,
		ContactPolicy: store.PolicyAuto,
	})
	if err != nil {
		return toolkit.Err(params, err)
	}

	windowUUID := agentident.NewWindowUUID()
	now := time.Now().UTC()
	if _, err := t.Store.BindWindowIdentity(ctx, &store.WindowIdentity{
		ProjectID:  project.ID,
		WindowUUID: windowUUID,
		AgentName:  agent.Name,
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * 24 * time.Hour),
	}); err != nil {
		return toolkit.Err(params, err)
	}

	return toolkit.Ok(params, map[string]any{
		"project_id":  project.ID,
		"slug":        project.Slug,
		"agent_id":    agent.ID,
		"name":        agent.Name,
		"window_uuid": windowUUID,
		"warnings":    warnings,
	})
}

// --- macro_prepare_thread ---

type prepareThreadParams struct {
	ProjectSlug string   `json:"project_slug"`
	AgentID     int64    `json:"agent_id"`
	Peers       []string `json:"peers"`
	Topic       string   `json:"topic"`
	ThreadID    string   `json:"thread_id"`
	AutoAccept  bool     `json:"auto_accept"`
	Format      string   `json:"format,omitempty"`
}

type peerReadiness struct {
	Name           string `json:"name"`
	Allowed        bool   `json:"allowed"`
	NeedsHandshake bool   `json:"needs_handshake"`
	Handshaked     bool   `json:"handshaked"`
}

// MacroPrepareThread readies a thread for a burst of sends: it resolves or
// validates the thread id and, for every peer, evaluates (and if needed,
// runs a single auto-handshake retry on) the recipient's contact policy,
// so the sends that follow don't stall one at a time on CONTACT_REQUIRED.
type MacroPrepareThread struct {
	Store          *store.Store
	DefaultLinkTTL time.Duration
}

func NewMacroPrepareThread(s *store.Store, defaultLinkTTL time.Duration) *MacroPrepareThread {
	return &MacroPrepareThread{Store: s, DefaultLinkTTL: defaultLinkTTL}
}

func (t *MacroPrepareThread) Name() string { return "macro_prepare_thread" }
func (t *MacroPrepareThread) Description() string {
	return "Ready a thread for a burst of sends: resolve the thread id and pre-clear contact policy for every peer."
}
func (t *MacroPrepareThread) Cluster() mcp.Cluster           { return mcp.ClusterWorkflowMacros }
func (t *MacroPrepareThread) RequiredCapabilities() []string { return nil }
func (t *MacroPrepareThread) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "agent_id": {"type": "integer"},
    "peers": {"type": "array", "items": {"type": "string"}},
    "topic": {"type": "string"},
    "thread_id": {"type": "string", "description": "Caller-supplied thread id; a slug is derived from topic when omitted"},
    "auto_accept": {"type": "boolean"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "agent_id", "peers"]
}`)
}

func (t *MacroPrepareThread) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p prepareThreadParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	threadID := p.ThreadID
	if threadID == "" && p.Topic != "" {
		threadID = slug.Make(p.Topic)
	}
	if err := messaging.ValidateThreadID(threadID); err != nil {
		return toolkit.Err(params, err)
	}

	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}

	now := time.Now().UTC()
	readiness := make([]peerReadiness, 0, len(p.Peers))
	for _, name := range p.Peers {
		peer, err := t.Store.GetAgentByName(ctx, project.ID, name)
		if err != nil {
			return toolkit.Err(params, err)
		}
		decision, err := contacts.Evaluate(ctx, t.Store, project.ID, p.AgentID, project.ID, peer.ID, peer.ContactPolicy, now)
		if err != nil {
			return toolkit.Err(params, err)
		}
		entry := peerReadiness{Name: name, Allowed: decision.Allowed, NeedsHandshake: decision.NeedsHandshake}
		if decision.NeedsHandshake {
			redo, err := contacts.AutoHandshake(ctx, t.Store, nil, project.ID, p.AgentID, project.ID, peer.ID, peer.ContactPolicy, p.AutoAccept, t.DefaultLinkTTL, now)
			if err != nil {
				return toolkit.Err(params, err)
			}
			entry.Allowed = redo.Allowed
			entry.Handshaked = redo.Allowed
		}
		readiness = append(readiness, entry)
	}

	return toolkit.Ok(params, map[string]any{"thread_id": threadID, "peers": readiness})
}

// --- macro_file_reservation_cycle ---

type reservationCycleParams struct {
	ProjectSlug    string   `json:"project_slug"`
	AgentID        int64    `json:"agent_id"`
	ReleaseAll     bool     `json:"release_all"`
	ReservePaths   []string `json:"reserve_paths"`
	Exclusive      bool     `json:"exclusive"`
	Reason         string   `json:"reason"`
	TTLSeconds     int      `json:"ttl_seconds"`
	Format         string   `json:"format,omitempty"`
}

// MacroFileReservationCycle releases every reservation an agent currently
// holds in a project when release_all is set (otherwise nothing is
// released), then grants a fresh batch — the common "I'm done
// with the last set of files, here's what I need next" transition,
// without leaving a gap where stale leases linger between the two calls
// a caller would otherwise have to make.
type MacroFileReservationCycle struct {
	Store   *store.Store
	Service *reservations.Service
}

func NewMacroFileReservationCycle(s *store.Store, svc *reservations.Service) *MacroFileReservationCycle {
	return &MacroFileReservationCycle{Store: s, Service: svc}
}

func (t *MacroFileReservationCycle) Name() string { return "macro_file_reservation_cycle" }
func (t *MacroFileReservationCycle) Description() string {
	return "Release all of an agent's current file reservations in a project (when release_all is set), then grant a fresh batch."
}
func (t *MacroFileReservationCycle) Cluster() mcp.Cluster           { return mcp.ClusterWorkflowMacros }
func (t *MacroFileReservationCycle) RequiredCapabilities() []string { return nil }
func (t *MacroFileReservationCycle) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "agent_id": {"type": "integer"},
    "release_all": {"type": "boolean", "description": "Release every reservation currently held by this agent before granting the new batch"},
    "reserve_paths": {"type": "array", "items": {"type": "string"}},
    "exclusive": {"type": "boolean"},
    "reason": {"type": "string"},
    "ttl_seconds": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "agent_id", "reserve_paths", "ttl_seconds"]
}`)
}

func (t *MacroFileReservationCycle) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p reservationCycleParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}

	now := time.Now().UTC()
	released := 0
	if p.ReleaseAll {
		active, err := t.Store.ActiveReservations(ctx, project.ID, now)
		if err != nil {
			return toolkit.Err(params, err)
		}
		for _, r := range active {
			if r.AgentID != p.AgentID {
				continue
			}
			if err := t.Service.Release(ctx, r.ID, p.AgentID); err != nil {
				return toolkit.Err(params, err)
			}
			released++
		}
	}

	ttl := time.Duration(p.TTLSeconds) * time.Second
	type grantResult struct {
		Path          string `json:"path"`
		ReservationID int64  `json:"reservation_id,omitempty"`
		Granted       bool   `json:"granted"`
		Error         string `json:"error,omitempty"`
	}
	grants := make([]grantResult, 0, len(p.ReservePaths))
	for _, path := range p.ReservePaths {
		r, err := t.Service.Create(ctx, reservations.CreateRequest{
			ProjectID:   project.ID,
			AgentID:     p.AgentID,
			PathPattern: path,
			Exclusive:   p.Exclusive,
			Reason:      p.Reason,
			TTL:         ttl,
		}, now)
		if err != nil {
			grants = append(grants, grantResult{Path: path, Granted: false, Error: err.Error()})
			continue
		}
		grants = append(grants, grantResult{Path: path, ReservationID: r.ID, Granted: true})
	}

	return toolkit.Ok(params, map[string]any{"released": released, "grants": grants})
}

// --- macro_contact_handshake ---

type contactHandshakeParams struct {
	ProjectSlug     string `json:"project_slug"`
	AgentID         int64  `json:"agent_id"`
	PeerProjectSlug string `json:"peer_project_slug"`
	PeerName        string `json:"peer_name"`
	AutoAccept      bool   `json:"auto_accept"`
	LinkTTLSeconds  int    `json:"link_ttl_seconds"`
	Format          string `json:"format,omitempty"`
}

// MacroContactHandshake runs the same single-retry handshake recovery flow
// a blocked send triggers internally, but as an explicit, directly
// callable step — useful for an agent that wants to clear contact policy
// ahead of time rather than discover it mid-send.
type MacroContactHandshake struct {
	Store          *store.Store
	DefaultLinkTTL time.Duration
}

func NewMacroContactHandshake(s *store.Store, defaultLinkTTL time.Duration) *MacroContactHandshake {
	return &MacroContactHandshake{Store: s, DefaultLinkTTL: defaultLinkTTL}
}

func (t *MacroContactHandshake) Name() string { return "macro_contact_handshake" }
func (t *MacroContactHandshake) Description() string {
	return "Run the single-retry contact handshake flow explicitly, ahead of sending."
}
func (t *MacroContactHandshake) Cluster() mcp.Cluster           { return mcp.ClusterWorkflowMacros }
func (t *MacroContactHandshake) RequiredCapabilities() []string { return nil }
func (t *MacroContactHandshake) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "agent_id": {"type": "integer"},
    "peer_project_slug": {"type": "string", "description": "Defaults to project_slug when omitted"},
    "peer_name": {"type": "string"},
    "auto_accept": {"type": "boolean"},
    "link_ttl_seconds": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "agent_id", "peer_name"]
}`)
}

func (t *MacroContactHandshake) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p contactHandshakeParams
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

	decision, err := contacts.AutoHandshake(ctx, t.Store, nil, project.ID, p.AgentID, peerProject.ID, peer.ID, peer.ContactPolicy, p.AutoAccept, ttl, time.Now().UTC())
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{
		"allowed":         decision.Allowed,
		"needs_handshake": decision.NeedsHandshake,
	})
}
