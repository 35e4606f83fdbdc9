// Package identity implements the coordination bus's agent and window
// identity tools: registration, lookup, window binding, and contact-policy
// updates.
package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/archive"
	agentident "github.com/agentmail/agentmail-mcp/internal/identity"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

// ArchiveAccessor opens the per-project git archive by slug. RegisterAgent
// uses it to mirror an agent's profile.json alongside its relational row.
type ArchiveAccessor interface {
	Open(projectSlug string) (*archive.Archive, error)
}

// --- register_agent / create_agent_identity ---

type registerParams struct {
	ProjectSlug     string `json:"project_slug"`
	RequestedName   string `json:"requested_name"`
	Mode            string `json:"mode"` // strict|coerce|always_auto
	Program         string `json:"program"`
	Model           string `json:"model"`
	TaskDescription string `json:"task_description"`
	WindowUUID      string `json:"window_uuid"`
	Format          string `json:"format,omitempty"`
}

// RegisterAgent creates (or, for a repeat window_uuid, rebinds) an agent
// identity within a project, resolving the caller's requested name through
// the configured enforcement mode and flagging likely-wrong names as
// warnings rather than rejecting the call.
type RegisterAgent struct {
	Store       *store.Store
	DefaultMode agentident.EnforcementMode
	// DefaultContactPolicy seeds every newly registered agent's contact
	// policy (config's contacts.default_policy). Zero value falls back to
	// store.PolicyAuto.
	DefaultContactPolicy store.ContactPolicy

	// Archives and LockTimeout are optional: leave Archives nil to register
	// agents purely against the relational store (as most tests do) — with
	// it set, registration also mirrors agents/<name>/profile.json into the
	// project's git archive so internal/guard's scripts and any other
	// offline reader can see an agent's identity without a database
	// connection.
	Archives    ArchiveAccessor
	LockTimeout time.Duration
	Logger      *slog.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

func NewRegisterAgent(s *store.Store, defaultMode agentident.EnforcementMode) *RegisterAgent {
	return &RegisterAgent{Store: s, DefaultMode: defaultMode, rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (t *RegisterAgent) defaultContactPolicy() store.ContactPolicy {
	if t.DefaultContactPolicy != "" {
		return t.DefaultContactPolicy
	}
	return store.PolicyAuto
}

func (t *RegisterAgent) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *RegisterAgent) lockTimeout() time.Duration {
	if t.LockTimeout > 0 {
		return t.LockTimeout
	}
	return 5 * time.Second
}

// mirrorProfile best-effort mirrors a registered agent's identity into the
// archive. A mirroring failure does not fail registration — the relational
// store remains the source of truth, and the next successful registration
// or rebind reconciles the archive copy.
func (t *RegisterAgent) mirrorProfile(ctx context.Context, projectSlug string, agent *store.Agent, windowUUID, windowDisplayName string) {
	if t.Archives == nil {
		return
	}
	ar, err := t.Archives.Open(projectSlug)
	if err != nil {
		t.logger().Warn("agent profile archive mirror skipped", "agent_id", agent.ID, "error", err)
		return
	}
	if err := ar.EnsureAgentDirs(agent.Name); err != nil {
		t.logger().Warn("agent profile archive mirror skipped", "agent_id", agent.ID, "error", err)
		return
	}
	data, err := archive.RenderAgentProfile(archive.AgentProfile{
		ID:                agent.ID,
		Name:              agent.Name,
		Program:           agent.Program,
		Model:             agent.Model,
		TaskDescription:   agent.TaskDescription,
		InceptionTS:       agent.InceptionTS,
		LastActiveTS:      agent.LastActiveTS,
		WindowID:          windowUUID,
		WindowDisplayName: windowDisplayName,
	})
	if err != nil {
		t.logger().Warn("agent profile archive mirror failed", "agent_id", agent.ID, "error", err)
		return
	}
	change := archive.Change{Path: "agents/" + agent.Name + "/profile.json", Data: data}
	commitMsg := "profile: " + agent.Name
	if err := ar.Commit(t.lockTimeout(), commitMsg, []archive.Change{change}); err != nil {
		t.logger().Warn("agent profile archive mirror failed", "agent_id", agent.ID, "error", err)
	}
}

// resolveName is the only caller of the shared *rand.Rand — rand.Rand
// isn't safe for concurrent use, and tool calls arrive from many agents at
// once.
func (t *RegisterAgent) resolveName(mode agentident.EnforcementMode, requested string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return agentident.Resolve(mode, requested, t.rand)
}

// ResolveName exports the same mutex-guarded name resolution so other
// packages (macros.MacroStartSession) can reuse it without holding their
// own copy of the PRNG.
func (t *RegisterAgent) ResolveName(mode agentident.EnforcementMode, requested string) (string, error) {
	return t.resolveName(mode, requested)
}

func (t *RegisterAgent) Name() string { return "register_agent" }
func (t *RegisterAgent) Description() string {
	return "Register a new agent identity in a project, or rebind an existing window to a name."
}
func (t *RegisterAgent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "requested_name": {"type": "string"},
    "mode": {"type": "string", "enum": ["strict", "coerce", "always_auto"]},
    "program": {"type": "string"},
    "model": {"type": "string"},
    "task_description": {"type": "string"},
    "window_uuid": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug"]
}`)
}
func (t *RegisterAgent) Cluster() mcp.Cluster           { return mcp.ClusterIdentity }
func (t *RegisterAgent) RequiredCapabilities() []string { return nil }

func (t *RegisterAgent) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p registerParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}

	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}

	mode := t.DefaultMode
	if p.Mode != "" {
		mode = agentident.EnforcementMode(p.Mode)
	}
	name, err := t.resolveName(mode, p.RequestedName)
	if err != nil {
		return toolkit.Err(params, err)
	}

	warnings := agentident.DetectMistakes(name)

	windowUUID := p.WindowUUID
	if windowUUID == "" {
		windowUUID = agentident.NewWindowUUID()
	} else if err := agentident.ValidateWindowUUID(windowUUID); err != nil {
		return toolkit.Err(params, err)
	}

	agent, err := t.Store.CreateAgent(ctx, &store.Agent{
		ProjectID:       project.ID,
		Name:            name,
		Program:         p.Program,
		Model:           p.Model,
		TaskDescription: p.TaskDescription,
		ContactPolicy:   t.defaultContactPolicy(),
	})
	if err != nil {
		return toolkit.Err(params, err)
	}

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

	t.mirrorProfile(ctx, project.Slug, agent, windowUUID, agent.Name)

	return toolkit.Ok(params, map[string]any{
		"agent_id":           agent.ID,
		"name":               agent.Name,
		"window_uuid":        windowUUID,
		"registration_token": agentident.NewRegistrationToken(),
		"warnings":           warnings,
	})
}

// --- whois ---

type whoisParams struct {
	ProjectSlug string `json:"project_slug"`
	Name        string `json:"name"`
	Format      string `json:"format,omitempty"`
}

// Whois looks up an agent's profile by name within a project.
type Whois struct {
	Store *store.Store
}

func NewWhois(s *store.Store) *Whois { return &Whois{Store: s} }

func (t *Whois) Name() string               { return "whois" }
func (t *Whois) Description() string        { return "Look up an agent's profile by name within a project." }
func (t *Whois) Cluster() mcp.Cluster       { return mcp.ClusterIdentity }
func (t *Whois) RequiredCapabilities() []string { return nil }
func (t *Whois) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "name": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "name"]
}`)
}

func (t *Whois) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p whoisParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	agent, err := t.Store.GetAgentByName(ctx, project.ID, p.Name)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, agent)
}

// --- deregister_agent ---

type deregisterParams struct {
	AgentID int64 `json:"agent_id"`
	Format  string `json:"format,omitempty"`
}

// DeregisterAgent retires an agent's identity: its contact policy becomes
// block_all and its task description is tagged. It does not touch that
// agent's sent/received messages or reservations — those remain addressable
// by the now-retired agent ID for audit purposes.
type DeregisterAgent struct {
	Store *store.Store
}

func NewDeregisterAgent(s *store.Store) *DeregisterAgent { return &DeregisterAgent{Store: s} }

func (t *DeregisterAgent) Name() string        { return "deregister_agent" }
func (t *DeregisterAgent) Description() string { return "Retire an agent's identity in a project (contact policy set to block_all)." }
func (t *DeregisterAgent) Cluster() mcp.Cluster { return mcp.ClusterIdentity }
func (t *DeregisterAgent) RequiredCapabilities() []string { return nil }
func (t *DeregisterAgent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["agent_id"]
}`)
}

func (t *DeregisterAgent) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p deregisterParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	if err := t.Store.DeregisterAgent(ctx, p.AgentID); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"agent_id": p.AgentID, "deregistered": true})
}

// --- list_window_identities ---

type listWindowsParams struct {
	ProjectSlug string `json:"project_slug"`
	Format      string `json:"format,omitempty"`
}

// ListWindowIdentities returns every window-to-agent binding for a project.
type ListWindowIdentities struct {
	Store *store.Store
}

func NewListWindowIdentities(s *store.Store) *ListWindowIdentities {
	return &ListWindowIdentities{Store: s}
}

func (t *ListWindowIdentities) Name() string { return "list_window_identities" }
func (t *ListWindowIdentities) Description() string {
	return "List every window-to-agent-name binding for a project."
}
func (t *ListWindowIdentities) Cluster() mcp.Cluster           { return mcp.ClusterIdentity }
func (t *ListWindowIdentities) RequiredCapabilities() []string { return nil }
func (t *ListWindowIdentities) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug"]
}`)
}

func (t *ListWindowIdentities) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p listWindowsParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	windows, err := t.Store.ListWindowIdentities(ctx, project.ID)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, windows)
}

// --- rename_window ---

type renameWindowParams struct {
	ProjectSlug string `json:"project_slug"`
	WindowUUID  string `json:"window_uuid"`
	NewName     string `json:"new_name"`
	Format      string `json:"format,omitempty"`
}

// RenameWindow rebinds an existing window uuid to a different agent name
// (e.g. after a manual register_agent correction).
type RenameWindow struct {
	Store *store.Store
}

func NewRenameWindow(s *store.Store) *RenameWindow { return &RenameWindow{Store: s} }

func (t *RenameWindow) Name() string        { return "rename_window" }
func (t *RenameWindow) Description() string { return "Rebind a window uuid to a different agent name." }
func (t *RenameWindow) Cluster() mcp.Cluster { return mcp.ClusterIdentity }
func (t *RenameWindow) RequiredCapabilities() []string { return nil }
func (t *RenameWindow) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "window_uuid": {"type": "string"},
    "new_name": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "window_uuid", "new_name"]
}`)
}

func (t *RenameWindow) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p renameWindowParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	if err := agentident.ValidateWindowUUID(p.WindowUUID); err != nil {
		return toolkit.Err(params, err)
	}
	now := time.Now().UTC()
	if _, err := t.Store.BindWindowIdentity(ctx, &store.WindowIdentity{
		ProjectID:  project.ID,
		WindowUUID: p.WindowUUID,
		AgentName:  p.NewName,
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * 24 * time.Hour),
	}); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"window_uuid": p.WindowUUID, "agent_name": p.NewName})
}

// --- expire_window ---

type expireWindowParams struct {
	ProjectSlug string `json:"project_slug"`
	WindowUUID  string `json:"window_uuid"`
	Format      string `json:"format,omitempty"`
}

// ExpireWindow immediately retires a window binding, e.g. when a terminal
// session ends cleanly rather than waiting out its TTL.
type ExpireWindow struct {
	Store *store.Store
}

func NewExpireWindow(s *store.Store) *ExpireWindow { return &ExpireWindow{Store: s} }

func (t *ExpireWindow) Name() string        { return "expire_window" }
func (t *ExpireWindow) Description() string { return "Immediately retire a window-to-agent binding." }
func (t *ExpireWindow) Cluster() mcp.Cluster { return mcp.ClusterIdentity }
func (t *ExpireWindow) RequiredCapabilities() []string { return nil }
func (t *ExpireWindow) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "window_uuid": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "window_uuid"]
}`)
}

func (t *ExpireWindow) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p expireWindowParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	if err := t.Store.ExpireWindowIdentity(ctx, project.ID, p.WindowUUID); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"window_uuid": p.WindowUUID, "expired": true})
}

// --- set_contact_policy ---

type setContactPolicyParams struct {
	AgentID int64  `json:"agent_id"`
	Policy  string `json:"policy"` // open|auto|contacts_only|block_all
	Format  string `json:"format,omitempty"`
}

// SetContactPolicy updates an agent's inbound contact policy.
type SetContactPolicy struct {
	Store *store.Store
}

func NewSetContactPolicy(s *store.Store) *SetContactPolicy { return &SetContactPolicy{Store: s} }

func (t *SetContactPolicy) Name() string        { return "set_contact_policy" }
func (t *SetContactPolicy) Description() string { return "Update an agent's inbound contact policy." }
func (t *SetContactPolicy) Cluster() mcp.Cluster { return mcp.ClusterIdentity }
func (t *SetContactPolicy) RequiredCapabilities() []string { return nil }
func (t *SetContactPolicy) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "integer"},
    "policy": {"type": "string", "enum": ["open", "auto", "contacts_only", "block_all"]},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["agent_id", "policy"]
}`)
}

func (t *SetContactPolicy) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p setContactPolicyParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	policy := store.ContactPolicy(p.Policy)
	switch policy {
	case store.PolicyOpen, store.PolicyAuto, store.PolicyContactsOnly, store.PolicyBlockAll:
	default:
		return toolkit.Err(params, apperr.Newf(apperr.InvalidArgument, "unknown contact policy %q", p.Policy))
	}
	if err := t.Store.SetContactPolicy(ctx, p.AgentID, policy); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"agent_id": p.AgentID, "policy": policy})
}
