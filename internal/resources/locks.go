package resources

import (
	"net/url"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/messaging"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// ToolingLocks exposes resource://tooling/locks: the archive write-lock
// owner (if any) for every known project, so a caller stuck on an
// ARCHIVE_LOCK_TIMEOUT can see who is holding it and since when instead of
// retrying blind.
type ToolingLocks struct {
	Store    *store.Store
	Archives messaging.ArchiveAccessor
}

func NewToolingLocks(s *store.Store, archives messaging.ArchiveAccessor) *ToolingLocks {
	return &ToolingLocks{Store: s, Archives: archives}
}

func (r *ToolingLocks) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://tooling/locks",
		Name:        "tooling_locks",
		Description: "Archive write-lock holder, if any, for every known project.",
		MimeType:    "application/json",
	}
}

type lockStatus struct {
	ProjectSlug string `json:"project_slug"`
	Held        bool   `json:"held"`
	HolderID    string `json:"holder_id,omitempty"`
	PID         int    `json:"pid,omitempty"`
	AcquiredAt  string `json:"acquired_at,omitempty"`
}

func (r *ToolingLocks) Read(_ url.Values) (*mcp.ResourcesReadResult, error) {
	projects, err := r.Store.ListProjects(backgroundCtx())
	if err != nil {
		return nil, err
	}
	statuses := make([]lockStatus, 0, len(projects))
	for _, p := range projects {
		ar, err := r.Archives.Open(p.Slug)
		if err != nil {
			continue
		}
		holderID, pid, acquiredAt, ok := ar.Lock().Owner()
		status := lockStatus{ProjectSlug: p.Slug, Held: ok}
		if ok {
			status.HolderID = holderID
			status.PID = pid
			status.AcquiredAt = acquiredAt.Format("2006-01-02T15:04:05Z07:00")
		}
		statuses = append(statuses, status)
	}
	return jsonResult(r.Definition().URI, map[string]any{"locks": statuses})
}
