package resources

import (
	"net/url"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// FileReservations exposes resource://file_reservations/{slug}: the
// currently-active reservations in a project. An active_only query
// parameter is accepted but has no effect; released and expired
// reservations are never listed.
type FileReservations struct {
	Store *store.Store
}

func NewFileReservations(s *store.Store) *FileReservations {
	return &FileReservations{Store: s}
}

func (r *FileReservations) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://file_reservations/{slug}",
		Name:        "file_reservations",
		Description: "A project's currently-held file reservations. ?active_only is accepted but has no effect; released and expired reservations are not listed.",
		MimeType:    "application/json",
	}
}

func (r *FileReservations) ReadTemplated(slug string, query url.Values) (*mcp.ResourcesReadResult, error) {
	ctx := backgroundCtx()
	project, err := r.Store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	// ActiveReservations already excludes released/expired rows; the store
	// has no "every reservation ever" listing, so active_only=false still
	// returns the active set rather than adding an unused all-history query.
	_ = query.Get("active_only")
	now := time.Now().UTC()
	reservations, err := r.Store.ActiveReservations(ctx, project.ID, now)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://file_reservations/"+slug, map[string]any{"reservations": reservations})
}
