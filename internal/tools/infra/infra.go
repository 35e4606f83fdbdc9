// Package infra implements the coordination bus's baseline tools:
// health_check and ensure_project. Every other cluster assumes a project
// already exists; this is where one gets created.
package infra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gosimple/slug"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/messaging"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

// --- health_check ---

// HealthCheck reports server identity and readiness with no side effects
// and no dependency on the store being reachable — it exists so a caller
// can tell "MCP endpoint is up" apart from "coordination bus is healthy".
type HealthCheck struct {
	ServerName    string
	ServerVersion string
	StartedAt     time.Time
}

func NewHealthCheck(name, version string, startedAt time.Time) *HealthCheck {
	return &HealthCheck{ServerName: name, ServerVersion: version, StartedAt: startedAt}
}

func (t *HealthCheck) Name() string        { return "health_check" }
func (t *HealthCheck) Description() string { return "Report server identity, version, and uptime." }
func (t *HealthCheck) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"format":{"type":"string","enum":["json","toon","auto"]}}}`)
}
func (t *HealthCheck) Cluster() mcp.Cluster           { return mcp.ClusterInfrastructure }
func (t *HealthCheck) RequiredCapabilities() []string { return nil }

func (t *HealthCheck) Execute(_ context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	return toolkit.Ok(params, map[string]any{
		"status":         "ok",
		"server":         t.ServerName,
		"version":        t.ServerVersion,
		"uptime_seconds": time.Since(t.StartedAt).Seconds(),
	})
}

// --- ensure_project ---

type ensureProjectParams struct {
	HumanKey string `json:"human_key"`
	Format   string `json:"format,omitempty"`
}

// EnsureProject idempotently resolves a working-directory identity
// ("human_key", typically an absolute repo path) to a project slug,
// creating both the relational row and the project's git archive
// directory on first use.
type EnsureProject struct {
	Store    *store.Store
	Archives messaging.ArchiveAccessor
}

func NewEnsureProject(s *store.Store, archives messaging.ArchiveAccessor) *EnsureProject {
	return &EnsureProject{Store: s, Archives: archives}
}

func (t *EnsureProject) Name() string { return "ensure_project" }
func (t *EnsureProject) Description() string {
	return "Resolve a working-directory identity to a project, creating it (store row and git archive) on first use."
}
func (t *EnsureProject) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "human_key": {"type": "string", "description": "Absolute path or other stable identifier for the project's working directory"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["human_key"]
}`)
}
func (t *EnsureProject) Cluster() mcp.Cluster           { return mcp.ClusterInfrastructure }
func (t *EnsureProject) RequiredCapabilities() []string { return nil }

func (t *EnsureProject) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p ensureProjectParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}

	projectSlug := slug.Make(p.HumanKey)
	project, err := t.Store.EnsureProject(ctx, projectSlug, p.HumanKey)
	if err != nil {
		return toolkit.Err(params, err)
	}

	// The archive directory is created lazily on first Open; ensure it
	// exists now so later tools never race the first send/reservation on
	// a brand-new project.
	if _, err := t.Archives.Open(project.Slug); err != nil {
		return toolkit.Err(params, err)
	}

	return toolkit.Ok(params, map[string]any{
		"project_id": project.ID,
		"slug":       project.Slug,
		"human_key":  project.HumanKey,
		"created_at": project.CreatedAt,
	})
}
