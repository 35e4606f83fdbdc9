// Package productbus implements the coordination bus's optional
// product-grouping tools: linking sibling projects under a shared product
// key and recording/confirming heuristic "these look like the same
// product" suggestions. Every tool here is gated behind MCP.
// ProductBusEnabled — calling one while the feature is off returns
// FEATURE_DISABLED rather than silently no-op'ing, so a misconfigured
// client finds out immediately.
package productbus

import (
	"context"
	"encoding/json"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

func disabledErr() error {
	return apperr.New(apperr.FeatureDisabled, "product bus tools are disabled; set mcp.product_bus_enabled to enable them")
}

// --- ensure_product ---

type ensureProductParams struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Format string `json:"format,omitempty"`
}

// EnsureProduct idempotently resolves a product key to a product row.
type EnsureProduct struct {
	Store   *store.Store
	Enabled bool
}

func NewEnsureProduct(s *store.Store, enabled bool) *EnsureProduct {
	return &EnsureProduct{Store: s, Enabled: enabled}
}

func (t *EnsureProduct) Name() string        { return "ensure_product" }
func (t *EnsureProduct) Description() string { return "Resolve a product key to a product row, creating it on first use." }
func (t *EnsureProduct) Cluster() mcp.Cluster { return mcp.ClusterProductBus }
func (t *EnsureProduct) RequiredCapabilities() []string { return nil }
func (t *EnsureProduct) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "key": {"type": "string"},
    "name": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["key", "name"]
}`)
}

func (t *EnsureProduct) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if !t.Enabled {
		return toolkit.Err(params, disabledErr())
	}
	var p ensureProductParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	product, err := t.Store.EnsureProduct(ctx, p.Key, p.Name)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, product)
}

// --- link_product_project ---

type linkProductProjectParams struct {
	ProductKey  string `json:"product_key"`
	ProjectSlug string `json:"project_slug"`
	Format      string `json:"format,omitempty"`
}

// LinkProductProject associates a project with a product, idempotently.
type LinkProductProject struct {
	Store   *store.Store
	Enabled bool
}

func NewLinkProductProject(s *store.Store, enabled bool) *LinkProductProject {
	return &LinkProductProject{Store: s, Enabled: enabled}
}

func (t *LinkProductProject) Name() string        { return "link_product_project" }
func (t *LinkProductProject) Description() string { return "Associate a project with a product key." }
func (t *LinkProductProject) Cluster() mcp.Cluster { return mcp.ClusterProductBus }
func (t *LinkProductProject) RequiredCapabilities() []string { return nil }
func (t *LinkProductProject) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "product_key": {"type": "string"},
    "project_slug": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["product_key", "project_slug"]
}`)
}

func (t *LinkProductProject) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if !t.Enabled {
		return toolkit.Err(params, disabledErr())
	}
	var p linkProductProjectParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	product, err := t.Store.EnsureProduct(ctx, p.ProductKey, p.ProductKey)
	if err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	if err := t.Store.LinkProductProject(ctx, product.ID, project.ID); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"product_id": product.ID, "project_id": project.ID, "linked": true})
}

// --- suggest_sibling_project ---

type suggestSiblingParams struct {
	ProjectASlug string  `json:"project_a_slug"`
	ProjectBSlug string  `json:"project_b_slug"`
	Score        float64 `json:"score"`
	Format       string  `json:"format,omitempty"`
}

// SuggestSiblingProject records or refreshes a heuristic "these two
// projects look like the same product" pairing for an operator to later
// confirm or dismiss.
type SuggestSiblingProject struct {
	Store   *store.Store
	Enabled bool
}

func NewSuggestSiblingProject(s *store.Store, enabled bool) *SuggestSiblingProject {
	return &SuggestSiblingProject{Store: s, Enabled: enabled}
}

func (t *SuggestSiblingProject) Name() string { return "suggest_sibling_project" }
func (t *SuggestSiblingProject) Description() string {
	return "Record or refresh a heuristic pairing between two projects that may be the same product."
}
func (t *SuggestSiblingProject) Cluster() mcp.Cluster           { return mcp.ClusterProductBus }
func (t *SuggestSiblingProject) RequiredCapabilities() []string { return nil }
func (t *SuggestSiblingProject) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_a_slug": {"type": "string"},
    "project_b_slug": {"type": "string"},
    "score": {"type": "number", "description": "Confidence in [0, 1]"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_a_slug", "project_b_slug", "score"]
}`)
}

func (t *SuggestSiblingProject) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if !t.Enabled {
		return toolkit.Err(params, disabledErr())
	}
	var p suggestSiblingParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	a, err := t.Store.GetProjectBySlug(ctx, p.ProjectASlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	b, err := t.Store.GetProjectBySlug(ctx, p.ProjectBSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	sib, err := t.Store.UpsertSiblingSuggestion(ctx, a.ID, b.ID, p.Score)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, sib)
}

// --- set_sibling_status ---

type setSiblingStatusParams struct {
	SuggestionID int64  `json:"suggestion_id"`
	Status       string `json:"status"`
	Format       string `json:"format,omitempty"`
}

// SetSiblingStatus records an operator's confirm/dismiss disposition on a
// sibling-project suggestion.
type SetSiblingStatus struct {
	Store   *store.Store
	Enabled bool
}

func NewSetSiblingStatus(s *store.Store, enabled bool) *SetSiblingStatus {
	return &SetSiblingStatus{Store: s, Enabled: enabled}
}

func (t *SetSiblingStatus) Name() string { return "set_sibling_status" }
func (t *SetSiblingStatus) Description() string {
	return "Record an operator's confirm/dismiss disposition on a sibling-project suggestion."
}
func (t *SetSiblingStatus) Cluster() mcp.Cluster           { return mcp.ClusterProductBus }
func (t *SetSiblingStatus) RequiredCapabilities() []string { return nil }
func (t *SetSiblingStatus) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "suggestion_id": {"type": "integer"},
    "status": {"type": "string", "enum": ["suggested", "confirmed", "dismissed"]},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["suggestion_id", "status"]
}`)
}

func (t *SetSiblingStatus) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if !t.Enabled {
		return toolkit.Err(params, disabledErr())
	}
	var p setSiblingStatusParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	if err := t.Store.SetSiblingStatus(ctx, p.SuggestionID, store.SiblingStatus(p.Status)); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"suggestion_id": p.SuggestionID, "status": p.Status})
}
