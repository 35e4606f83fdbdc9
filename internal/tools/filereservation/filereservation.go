// Package filereservation implements the coordination bus's file-lease
// tools: batch reservation, renewal, release, and the operator
// force-release override.
package filereservation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/toolkit"
)

// --- file_reservation_paths ---

type reservePathsParams struct {
	ProjectSlug string `json:"project_slug"`
	AgentID     int64  `json:"agent_id"`
	Paths       []string `json:"paths"`
	Exclusive   bool   `json:"exclusive"`
	Reason      string `json:"reason"`
	TTLSeconds  int    `json:"ttl_seconds"`
	Format      string `json:"format,omitempty"`
}

type reservedPathResult struct {
	Path          string `json:"path"`
	ReservationID int64  `json:"reservation_id,omitempty"`
	Granted       bool   `json:"granted"`
	Error         string `json:"error,omitempty"`
}

// FileReservationPaths reserves one or more glob patterns against a
// project in a single call. Each path is granted or refused
// independently and non-transactionally: a conflict on one path does not
// roll back patterns already granted earlier in the same call, since each
// is an individually valid, individually releasable lease — the caller
// sees exactly which paths it holds and can release or retry the rest.
type FileReservationPaths struct {
	Service *reservations.Service
	Store   *store.Store
}

func NewFileReservationPaths(svc *reservations.Service, s *store.Store) *FileReservationPaths {
	return &FileReservationPaths{Service: svc, Store: s}
}

func (t *FileReservationPaths) Name() string { return "file_reservation_paths" }
func (t *FileReservationPaths) Description() string {
	return "Reserve one or more file path glob patterns for exclusive or shared use, with a time-to-live."
}
func (t *FileReservationPaths) Cluster() mcp.Cluster           { return mcp.ClusterFileReservations }
func (t *FileReservationPaths) RequiredCapabilities() []string { return nil }
func (t *FileReservationPaths) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "agent_id": {"type": "integer"},
    "paths": {"type": "array", "items": {"type": "string"}, "description": "Glob patterns, e.g. \"src/**\" or \"messages/**\""},
    "exclusive": {"type": "boolean"},
    "reason": {"type": "string"},
    "ttl_seconds": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "agent_id", "paths", "ttl_seconds"]
}`)
}

func (t *FileReservationPaths) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p reservePathsParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}

	now := time.Now().UTC()
	ttl := time.Duration(p.TTLSeconds) * time.Second
	results := make([]reservedPathResult, 0, len(p.Paths))
	for _, path := range p.Paths {
		r, err := t.Service.Create(ctx, reservations.CreateRequest{
			ProjectID:   project.ID,
			AgentID:     p.AgentID,
			PathPattern: path,
			Exclusive:   p.Exclusive,
			Reason:      p.Reason,
			TTL:         ttl,
		}, now)
		if err != nil {
			results = append(results, reservedPathResult{Path: path, Granted: false, Error: err.Error()})
			continue
		}
		results = append(results, reservedPathResult{Path: path, ReservationID: r.ID, Granted: true})
	}

	return toolkit.Ok(params, map[string]any{"results": results})
}

// --- renew_file_reservations ---

type renewParams struct {
	AgentID        int64   `json:"agent_id"`
	ReservationIDs []int64 `json:"reservation_ids"`
	TTLSeconds     int     `json:"ttl_seconds"`
	Format         string  `json:"format,omitempty"`
}

// RenewFileReservations extends the expiry of one or more reservations the
// caller holds.
type RenewFileReservations struct {
	Service *reservations.Service
}

func NewRenewFileReservations(svc *reservations.Service) *RenewFileReservations {
	return &RenewFileReservations{Service: svc}
}

func (t *RenewFileReservations) Name() string { return "renew_file_reservations" }
func (t *RenewFileReservations) Description() string {
	return "Extend the expiry of one or more held file reservations."
}
func (t *RenewFileReservations) Cluster() mcp.Cluster           { return mcp.ClusterFileReservations }
func (t *RenewFileReservations) RequiredCapabilities() []string { return nil }
func (t *RenewFileReservations) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "integer"},
    "reservation_ids": {"type": "array", "items": {"type": "integer"}},
    "ttl_seconds": {"type": "integer"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["agent_id", "reservation_ids", "ttl_seconds"]
}`)
}

func (t *RenewFileReservations) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p renewParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	now := time.Now().UTC()
	ttl := time.Duration(p.TTLSeconds) * time.Second
	results := make([]map[string]any, 0, len(p.ReservationIDs))
	for _, id := range p.ReservationIDs {
		if err := t.Service.Renew(ctx, id, p.AgentID, ttl, now); err != nil {
			results = append(results, map[string]any{"reservation_id": id, "renewed": false, "error": err.Error()})
			continue
		}
		results = append(results, map[string]any{"reservation_id": id, "renewed": true})
	}
	return toolkit.Ok(params, map[string]any{"results": results})
}

// --- release_file_reservations ---

type releaseParams struct {
	AgentID        int64   `json:"agent_id"`
	ReservationIDs []int64 `json:"reservation_ids"`
	Format         string  `json:"format,omitempty"`
}

// ReleaseFileReservations releases one or more reservations the caller
// holds.
type ReleaseFileReservations struct {
	Service *reservations.Service
}

func NewReleaseFileReservations(svc *reservations.Service) *ReleaseFileReservations {
	return &ReleaseFileReservations{Service: svc}
}

func (t *ReleaseFileReservations) Name() string { return "release_file_reservations" }
func (t *ReleaseFileReservations) Description() string {
	return "Release one or more held file reservations."
}
func (t *ReleaseFileReservations) Cluster() mcp.Cluster           { return mcp.ClusterFileReservations }
func (t *ReleaseFileReservations) RequiredCapabilities() []string { return nil }
func (t *ReleaseFileReservations) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "integer"},
    "reservation_ids": {"type": "array", "items": {"type": "integer"}},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["agent_id", "reservation_ids"]
}`)
}

func (t *ReleaseFileReservations) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p releaseParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	results := make([]map[string]any, 0, len(p.ReservationIDs))
	for _, id := range p.ReservationIDs {
		if err := t.Service.Release(ctx, id, p.AgentID); err != nil {
			results = append(results, map[string]any{"reservation_id": id, "released": false, "error": err.Error()})
			continue
		}
		results = append(results, map[string]any{"reservation_id": id, "released": true})
	}
	return toolkit.Ok(params, map[string]any{"results": results})
}

// --- force_release_file_reservation ---

type forceReleaseParams struct {
	ProjectSlug        string `json:"project_slug"`
	ReservationID      int64  `json:"reservation_id"`
	StaleAfterSeconds  int    `json:"stale_after_seconds"`
	Format             string `json:"format,omitempty"`
}

// ForceReleaseFileReservation is the operator/teammate override for a
// reservation whose holder has gone inactive beyond a staleness
// threshold. A repeat call against an already-released reservation
// reports released:0, already_released:true rather than erroring.
type ForceReleaseFileReservation struct {
	Service           *reservations.Service
	Store             *store.Store
	DefaultStaleAfter time.Duration
}

func NewForceReleaseFileReservation(svc *reservations.Service, s *store.Store, defaultStaleAfter time.Duration) *ForceReleaseFileReservation {
	return &ForceReleaseFileReservation{Service: svc, Store: s, DefaultStaleAfter: defaultStaleAfter}
}

func (t *ForceReleaseFileReservation) Name() string { return "force_release_file_reservation" }
func (t *ForceReleaseFileReservation) Description() string {
	return "Force-release a reservation whose holder has gone stale. The holder is not sent a message about the release."
}
func (t *ForceReleaseFileReservation) Cluster() mcp.Cluster { return mcp.ClusterFileReservations }
func (t *ForceReleaseFileReservation) RequiredCapabilities() []string {
	return []string{"destructive"}
}
func (t *ForceReleaseFileReservation) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_slug": {"type": "string"},
    "reservation_id": {"type": "integer"},
    "stale_after_seconds": {"type": "integer", "description": "Overrides the configured inactivity threshold"},
    "format": {"type": "string", "enum": ["json", "toon", "auto"]}
  },
  "required": ["project_slug", "reservation_id"]
}`)
}

func (t *ForceReleaseFileReservation) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p forceReleaseParams
	if err := toolkit.Decode(params, &p); err != nil {
		return toolkit.Err(params, err)
	}
	project, err := t.Store.GetProjectBySlug(ctx, p.ProjectSlug)
	if err != nil {
		return toolkit.Err(params, err)
	}

	r, err := t.Store.GetReservation(ctx, p.ReservationID)
	if err != nil {
		return toolkit.Err(params, err)
	}
	if !r.Active(time.Now().UTC()) {
		return toolkit.Ok(params, map[string]any{"released": 0, "already_released": true})
	}

	staleAfter := t.DefaultStaleAfter
	if p.StaleAfterSeconds > 0 {
		staleAfter = time.Duration(p.StaleAfterSeconds) * time.Second
	}
	if err := t.Service.ForceRelease(ctx, project.ID, p.ReservationID, time.Now().UTC(), staleAfter); err != nil {
		return toolkit.Err(params, err)
	}
	return toolkit.Ok(params, map[string]any{"released": 1, "already_released": false})
}
