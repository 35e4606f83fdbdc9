// Package searchtools implements the coordination bus's search and
// summarization tools: full-text search, thread digest, project digest,
// and cached-summary retrieval.
package searchtools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/search"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

// --- search_messages ---

type searchMessagesParams struct {
	ProjectSlug string `json:"project_slug"`
	Query       string `json:"query"`
	Limit       int    `json:"limit"`
	Format      string `json:"format,omitempty"`
}

// SearchMessages runs a full-text query over a project's messages, falling
// back to LIKE-based matching when the query can't be safely expressed as
// an FTS5 MATCH expression.
type SearchMessages struct {
	Store *store.Store
}

func NewSearchMessages(s *store.Store) *SearchMessages { return &SearchMessages{Store: s} }

func (t *SearchMessages) Name() string        { return "search_messages" }
func (t *SearchMessages) Description() string { return "Full-text search over a project's messages." }
func (t *SearchMessages) Cluster() mcp.Cluster { return mcp.ClusterSearch }
func (t *SearchMessages) RequiredCapabilities() []string { return nil }
func (t *SearchMessages) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "query": {"type": "string"},
    "limit": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "query"]
}`)
}

func (t *SearchMessages) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p searchMessagesParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 25
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	messages, err := search.Search(ctx, t.Store, project.ID, p.Query, limit)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, messages)
}

// --- summarize_thread ---

type summarizeThreadParams struct {
	ProjectSlug string `json:"project_slug"`
	ThreadID    string `json:"thread_id"`
	Format      string `json:"format,omitempty"`
}

// SummarizeThread produces a heuristic digest of one thread. No LLM
// refiner is wired in — summarization quality improvements are an
// external collaborator's concern, not this server's.
type SummarizeThread struct {
	Store *store.Store
}

func NewSummarizeThread(s *store.Store) *SummarizeThread { return &SummarizeThread{Store: s} }

func (t *SummarizeThread) Name() string        { return "summarize_thread" }
func (t *SummarizeThread) Description() string { return "Produce a digest of a single thread's messages." }
func (t *SummarizeThread) Cluster() mcp.Cluster { return mcp.ClusterSearch }
func (t *SummarizeThread) RequiredCapabilities() []string { return nil }
func (t *SummarizeThread) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "thread_id": {"type": "string"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "thread_id"]
}`)
}

func (t *SummarizeThread) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p summarizeThreadParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	messages, err := t.Store.ListThread(ctx, project.ID, p.ThreadID)
	if err != nil {
		return toolkit.Err(params, err)
	}
	text, model, cost, err := search.SummarizeThread(ctx, messages, nil)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{
		"thread_id":      p.ThreadID,
		"message_count":  len(messages),
		"summary":        text,
		"llm_model":      model,
		"llm_cost_usd":   cost,
	})
}

// --- summarize_recent ---

type summarizeRecentParams struct {
	ProjectSlug      string `json:"project_slug"`
	SinceSeconds     int    `json:"since_seconds"`
	ToleranceSeconds int    `json:"tolerance_seconds"`
	Format           string `json:"format,omitempty"`
}

// SummarizeRecent produces (or, within a reuse-tolerance window, returns a
// cached copy of) a project-wide digest covering the last since_seconds.
type SummarizeRecent struct {
	Store *store.Store
}

func NewSummarizeRecent(s *store.Store) *SummarizeRecent { return &SummarizeRecent{Store: s} }

func (t *SummarizeRecent) Name() string { return "summarize_recent" }
func (t *SummarizeRecent) Description() string {
	return "Produce (or reuse, within tolerance) a project-wide digest of recent activity."
}
func (t *SummarizeRecent) Cluster() mcp.Cluster           { return mcp.ClusterSearch }
func (t *SummarizeRecent) RequiredCapabilities() []string { return nil }
func (t *SummarizeRecent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "since_seconds": {"type": "integer", "description": "How far back to cover; defaults to 86400 (one day)"},
    "tolerance_seconds": {"type": "integer", "description": "Reuse a cached summary generated within this many seconds of now; defaults to 300"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug"]
}`)
}

func (t *SummarizeRecent) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p summarizeRecentParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	since := p.SinceSeconds
	if since <= 0 {
		since = 86400
	}
	tolerance := p.ToleranceSeconds
	if tolerance <= 0 {
		tolerance = 300
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	now := time.Now().UTC()
	sm, err := search.Digest(ctx, t.Store, project.ID, now.Add(-time.Duration(since)*time.Second), now, tolerance, nil)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, sm)
}

// --- fetch_summary ---

type fetchSummaryParams struct {
	ProjectSlug      string `json:"project_slug"`
	ToleranceSeconds int    `json:"tolerance_seconds"`
	Format           string `json:"format,omitempty"`
}

// FetchSummary returns the most recent cached project digest without
// generating a new one, failing if none exists within the tolerance
// window.
type FetchSummary struct {
	Store *store.Store
}

func NewFetchSummary(s *store.Store) *FetchSummary { return &FetchSummary{Store: s} }

func (t *FetchSummary) Name() string        { return "fetch_summary" }
func (t *FetchSummary) Description() string { return "Return the most recent cached project digest, if one is fresh enough." }
func (t *FetchSummary) Cluster() mcp.Cluster { return mcp.ClusterSearch }
func (t *FetchSummary) RequiredCapabilities() []string { return nil }
func (t *FetchSummary) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "tolerance_seconds": {"type": "integer", "description": "Defaults to 86400 (one day)"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug"]
}`)
}

func (t *FetchSummary) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p fetchSummaryParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	tolerance := p.ToleranceSeconds
	if tolerance <= 0 {
		tolerance = 86400
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}
	sm, err := t.Store.RecentSummary(ctx, project.ID, time.Now().UTC(), tolerance)
	if err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, sm)
}
