package reservations

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// Service implements the file-reservation lease lifecycle described by the
// coordination bus's concurrency model: create with conflict detection,
// renew, release, operator force-release, and stale-inactivity reclamation.
//
// Archives and LockTimeout are optional: leave Archives nil to run purely
// against the relational store (as most tests do) — with it set, every
// create/release/sweep also mirrors the reservation into the project's git
// archive so internal/guard's scripts can read live holds offline.
type Service struct {
	store       *store.Store
	Archives    ArchiveAccessor
	LockTimeout time.Duration
	MinTTL      time.Duration
	StaleAfter  time.Duration
	Logger      *slog.Logger
}

// NewService binds a reservations Service to a relational store.
func NewService(s *store.Store) *Service {
	return &Service{
		store: s, LockTimeout: 5 * time.Second, MinTTL: 60 * time.Second,
		StaleAfter: 30 * time.Minute, Logger: slog.Default(),
	}
}

func (svc *Service) logger() *slog.Logger {
	if svc.Logger != nil {
		return svc.Logger
	}
	return slog.Default()
}

func (svc *Service) lockTimeout() time.Duration {
	if svc.LockTimeout > 0 {
		return svc.LockTimeout
	}
	return 5 * time.Second
}

func (svc *Service) minTTL() time.Duration {
	if svc.MinTTL > 0 {
		return svc.MinTTL
	}
	return 60 * time.Second
}

func (svc *Service) staleAfter() time.Duration {
	if svc.StaleAfter > 0 {
		return svc.StaleAfter
	}
	return 30 * time.Minute
}

// mirrorCreated best-effort mirrors a freshly created reservation into the
// archive. A mirroring failure does not fail Create — the relational store
// remains the source of truth, and a later Sweep/Release call, or the next
// successful mirror, reconciles the archive copy.
func (svc *Service) mirrorCreated(ctx context.Context, r *store.FileReservation) {
	if svc.Archives == nil {
		return
	}
	project, err := svc.store.GetProjectByID(ctx, r.ProjectID)
	if err != nil {
		svc.logger().Warn("reservation archive mirror skipped", "reservation_id", r.ID, "error", err)
		return
	}
	agent, err := svc.store.GetAgentByID(ctx, r.AgentID)
	if err != nil {
		svc.logger().Warn("reservation archive mirror skipped", "reservation_id", r.ID, "error", err)
		return
	}
	ar, err := svc.Archives.Open(project.Slug)
	if err != nil {
		svc.logger().Warn("reservation archive mirror skipped", "reservation_id", r.ID, "error", err)
		return
	}
	if err := mirrorPut(ar, svc.lockTimeout(), project.Slug, agent.Name, r); err != nil {
		svc.logger().Warn("reservation archive mirror failed", "reservation_id", r.ID, "error", err)
	}
}

// mirrorReleased best-effort removes a released/expired reservation's
// archive file, scoped by project.
func (svc *Service) mirrorReleased(ctx context.Context, r *store.FileReservation) {
	if svc.Archives == nil {
		return
	}
	project, err := svc.store.GetProjectByID(ctx, r.ProjectID)
	if err != nil {
		svc.logger().Warn("reservation archive unmirror skipped", "reservation_id", r.ID, "error", err)
		return
	}
	ar, err := svc.Archives.Open(project.Slug)
	if err != nil {
		svc.logger().Warn("reservation archive unmirror skipped", "reservation_id", r.ID, "error", err)
		return
	}
	if err := mirrorRemove(ar, svc.lockTimeout(), r); err != nil {
		svc.logger().Warn("reservation archive unmirror failed", "reservation_id", r.ID, "error", err)
	}
}

// ConflictError is returned by Create when an exclusive pattern collides
// with an existing active reservation; Data carries the conflicting rows
// so the caller can decide whether to wait, retry a narrower pattern, or
// contact the holder.
type ConflictError struct {
	Conflicts []*store.FileReservation
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	ProjectID   int64
	AgentID     int64
	PathPattern string
	Exclusive   bool
	Reason      string
	TTL         time.Duration
}

// Create validates the pattern, sweeps expired reservations so stale leases
// don't cause spurious conflicts, checks for overlapping active
// reservations, and inserts the new lease.
func (svc *Service) Create(ctx context.Context, req CreateRequest, now time.Time) (*store.FileReservation, error) {
	if err := ValidatePattern(req.PathPattern); err != nil {
		return nil, err
	}
	if req.TTL <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "ttl must be positive")
	}
	if req.TTL < svc.minTTL() {
		svc.logger().Warn("reservation ttl below minimum, clamped up",
			"requested_seconds", req.TTL.Seconds(), "min_seconds", svc.minTTL().Seconds())
		req.TTL = svc.minTTL()
	}

	if _, err := svc.Sweep(ctx, now); err != nil {
		return nil, err
	}

	active, err := svc.store.ActiveReservations(ctx, req.ProjectID, now)
	if err != nil {
		return nil, err
	}
	idx := BuildIndex(active)
	conflicts := idx.FindConflicts(req.PathPattern, req.Exclusive)
	// An agent renewing/re-reserving its own already-held pattern is not a
	// conflict with itself.
	conflicts = excludeOwn(conflicts, req.AgentID)
	if len(conflicts) > 0 {
		return nil, apperr.New(apperr.FileReservationConf, "path pattern conflicts with an active reservation").
			WithData(conflictData(conflicts))
	}

	created, err := svc.store.CreateReservation(ctx, &store.FileReservation{
		ProjectID:   req.ProjectID,
		AgentID:     req.AgentID,
		PathPattern: req.PathPattern,
		Exclusive:   req.Exclusive,
		Reason:      req.Reason,
		ExpiresTS:   now.Add(req.TTL),
	})
	if err != nil {
		return nil, err
	}
	svc.mirrorCreated(ctx, created)
	return created, nil
}

// Renew extends an active reservation's expiry, refusing to touch one the
// caller doesn't hold.
func (svc *Service) Renew(ctx context.Context, reservationID, agentID int64, ttl time.Duration, now time.Time) error {
	r, err := svc.store.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if r.AgentID != agentID {
		return apperr.New(apperr.PermissionError, "only the holder may renew this reservation")
	}
	if !r.Active(now) {
		return apperr.New(apperr.ReservationActive, "reservation is no longer active")
	}
	if ttl < svc.minTTL() {
		svc.logger().Warn("reservation renewal ttl below minimum, clamped up",
			"requested_seconds", ttl.Seconds(), "min_seconds", svc.minTTL().Seconds())
		ttl = svc.minTTL()
	}
	if err := svc.store.RenewReservation(ctx, reservationID, now.Add(ttl)); err != nil {
		return err
	}
	r.ExpiresTS = now.Add(ttl)
	svc.mirrorCreated(ctx, r)
	return nil
}

// Release marks a reservation released, refusing to touch one the caller
// doesn't hold — use ForceRelease for the operator override path.
func (svc *Service) Release(ctx context.Context, reservationID, agentID int64) error {
	r, err := svc.store.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if r.AgentID != agentID {
		return apperr.New(apperr.PermissionError, "only the holder may release this reservation")
	}
	if err := svc.store.ReleaseReservation(ctx, reservationID); err != nil {
		return err
	}
	svc.mirrorReleased(ctx, r)
	return nil
}

// ForceRelease is the operator/teammate override for a reservation whose
// holder has gone stale. It is scoped to the reservation's own project
// only — a force-release never reaches across project boundaries, even
// when agents in two projects are mutually contact-linked.
func (svc *Service) ForceRelease(ctx context.Context, projectID, reservationID int64, now time.Time, staleAfter time.Duration) error {
	r, err := svc.store.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if r.ProjectID != projectID {
		return apperr.New(apperr.PermissionError, "reservation belongs to a different project")
	}
	project, err := svc.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	holder, err := svc.store.GetAgentByID(ctx, r.AgentID)
	if err != nil {
		return err
	}
	if !svc.isStale(project, holder, r.PathPattern, now, staleAfter) {
		return apperr.New(apperr.ReservationActive, "holder is still active; force-release requires staleness")
	}
	if err := svc.store.ReleaseReservation(ctx, reservationID); err != nil {
		return err
	}
	svc.mirrorReleased(ctx, r)
	return nil
}

// Sweep releases every expired-but-unreleased reservation, then evaluates
// every remaining active reservation (across all projects) against the
// staleness predicate and releases those too; driven by the janitor
// schedule and by the lazy sweep Create performs on every call.
func (svc *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	rows, err := svc.store.SweepExpiredReservationsRows(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		svc.mirrorReleased(ctx, r)
	}
	staleCount, err := svc.sweepStale(ctx, now)
	if err != nil {
		return len(rows), err
	}
	return len(rows) + staleCount, nil
}

// sweepStale releases every active-but-unexpired reservation whose holder
// satisfies the staleness predicate (spec.md §4.4): inactive beyond
// StaleAfter, with no recent mail activity, matching-path fs mtime, or
// matching-path git commit.
func (svc *Service) sweepStale(ctx context.Context, now time.Time) (int, error) {
	active, err := svc.store.AllActiveReservations(ctx, now)
	if err != nil {
		return 0, err
	}
	projects := map[int64]*store.Project{}
	agents := map[int64]*store.Agent{}
	released := 0
	for _, r := range active {
		project, ok := projects[r.ProjectID]
		if !ok {
			project, err = svc.store.GetProjectByID(ctx, r.ProjectID)
			if err != nil {
				svc.logger().Warn("stale sweep skipped reservation", "reservation_id", r.ID, "error", err)
				continue
			}
			projects[r.ProjectID] = project
		}
		holder, ok := agents[r.AgentID]
		if !ok {
			holder, err = svc.store.GetAgentByID(ctx, r.AgentID)
			if err != nil {
				svc.logger().Warn("stale sweep skipped reservation", "reservation_id", r.ID, "error", err)
				continue
			}
			agents[r.AgentID] = holder
		}
		if !svc.isStale(project, holder, r.PathPattern, now, svc.staleAfter()) {
			continue
		}
		if err := svc.store.ReleaseReservation(ctx, r.ID); err != nil {
			svc.logger().Warn("stale sweep release failed", "reservation_id", r.ID, "error", err)
			continue
		}
		svc.mirrorReleased(ctx, r)
		released++
	}
	return released, nil
}

func excludeOwn(conflicts []*store.FileReservation, agentID int64) []*store.FileReservation {
	out := conflicts[:0:0]
	for _, c := range conflicts {
		if c.AgentID != agentID {
			out = append(out, c)
		}
	}
	return out
}

func conflictData(conflicts []*store.FileReservation) map[string]any {
	rows := make([]map[string]any, 0, len(conflicts))
	for _, c := range conflicts {
		rows = append(rows, map[string]any{
			"reservation_id": c.ID,
			"agent_id":       c.AgentID,
			"path_pattern":   c.PathPattern,
			"expires_ts":     c.ExpiresTS,
		})
	}
	return map[string]any{"conflicts": rows}
}
