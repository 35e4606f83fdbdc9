package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// ReservationSweepJob releases expired/stale file reservations across every
// project on a fixed interval, independent of whatever reservation-affecting
// call last happened to trigger the lazy sweep in reservations.Service.
type ReservationSweepJob struct {
	Reservations *reservations.Service
	Logger       *slog.Logger
}

func (j *ReservationSweepJob) Name() string { return "reservation_sweep" }

func (j *ReservationSweepJob) Run(ctx context.Context) error {
	n, err := j.Reservations.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		j.Logger.Info("swept expired reservations", "count", n)
	}
	return nil
}

// DigestCacheGCJob trims message_summaries rows whose window is old enough
// that no fetch_summary call could still hit them within the configured
// reuse tolerance.
type DigestCacheGCJob struct {
	Store     *store.Store
	Retention time.Duration
	Logger    *slog.Logger
}

func (j *DigestCacheGCJob) Name() string { return "digest_cache_gc" }

func (j *DigestCacheGCJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.Retention)
	n, err := j.Store.PruneSummaries(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		j.Logger.Info("pruned cached digests", "count", n, "cutoff", cutoff)
	}
	return nil
}
