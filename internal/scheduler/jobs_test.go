package scheduler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReservationSweepJobReleasesExpired(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Path: filepath.Join(t.TempDir(), "t.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	proj, err := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	require.NoError(t, err)
	agent, err := s.CreateAgent(ctx, &store.Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})
	require.NoError(t, err)

	svc := reservations.NewService(s)
	_, err = svc.Create(ctx, reservations.CreateRequest{
		ProjectID:   proj.ID,
		AgentID:     agent.ID,
		PathPattern: "src/**/*.go",
		Exclusive:   true,
		TTL:         60 * time.Second,
	}, time.Now().UTC())
	require.NoError(t, err)

	job := &ReservationSweepJob{Reservations: svc, Logger: testLogger()}

	// Sweep immediately: nothing expired yet.
	require.NoError(t, job.Run(ctx))

	// Advance past the 60s expiry by sweeping with a later "now" via the
	// service directly, mirroring what the cron job does internally.
	n, err := svc.Sweep(ctx, time.Now().UTC().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDigestCacheGCJobPrunesOldSummaries(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Path: filepath.Join(t.TempDir(), "t.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	proj, err := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	require.NoError(t, err)

	old := time.Now().UTC().Add(-48 * time.Hour)
	_, err = s.InsertSummary(ctx, &store.MessageSummary{
		ProjectID:  proj.ID,
		StartTS:    old.Add(-time.Hour),
		EndTS:      old,
		SummaryText: "stale digest",
	})
	require.NoError(t, err)

	job := &DigestCacheGCJob{Store: s, Retention: 24 * time.Hour, Logger: testLogger()}
	require.NoError(t, job.Run(ctx))

	_, err = s.RecentSummary(ctx, proj.ID, time.Now().UTC(), 300)
	assert.Error(t, err)
}
