package reservations

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail/agentmail-mcp/internal/archive"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

type fakeArchiveAccessor struct {
	root  string
	cache map[string]*archive.Archive
}

func newFakeArchiveAccessor(root string) *fakeArchiveAccessor {
	return &fakeArchiveAccessor{root: root, cache: map[string]*archive.Archive{}}
}

func (f *fakeArchiveAccessor) Open(slug string) (*archive.Archive, error) {
	if ar, ok := f.cache[slug]; ok {
		return ar, nil
	}
	ar, err := archive.Open(f.root, slug)
	if err != nil {
		return nil, err
	}
	f.cache[slug] = ar
	return ar, nil
}

func newTestService(t *testing.T) (*Service, *store.Store, int64, int64, int64) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "t.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	proj, err := s.EnsureProject(context.Background(), "widget-api", "/home/dev/widget-api")
	require.NoError(t, err)
	a1, err := s.CreateAgent(context.Background(), &store.Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})
	require.NoError(t, err)
	a2, err := s.CreateAgent(context.Background(), &store.Agent{ProjectID: proj.ID, Name: "AmberWolf"})
	require.NoError(t, err)

	return NewService(s), s, proj.ID, a1.ID, a2.ID
}

func TestConflictsExactAndPrefix(t *testing.T) {
	assert.True(t, Conflicts("src/**/*.go", "src/**/*.go"))
	assert.True(t, Conflicts("src/**/*.go", "src/db/**/*.go"))
	assert.False(t, Conflicts("src/**/*.go", "docs/**/*.md"))
	assert.False(t, Conflicts("README.md", "LICENSE"))
}

func TestConflictsDoesNotCrossPathSeparators(t *testing.T) {
	assert.False(t, Conflicts("src/*.go", "src/sub/*.go"))
	assert.True(t, Conflicts("src/**/*.go", "src/sub/*.go"))
}

func TestConflictsVirtualNamespacesOnlyByEquality(t *testing.T) {
	assert.True(t, Conflicts("tool://deploy", "tool://deploy"))
	assert.False(t, Conflicts("tool://deploy", "tool://build"))
	assert.False(t, Conflicts("tool://deploy", "src/**/*.go"))
}

func TestCreateDetectsConflict(t *testing.T) {
	svc, _, projID, a1, a2 := newTestService(t)
	now := time.Now().UTC()

	_, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "src/**/*.go", Exclusive: true, TTL: time.Hour,
	}, now)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a2, PathPattern: "src/db/conn.go", Exclusive: true, TTL: time.Hour,
	}, now)
	assert.Error(t, err)
}

func TestCreateAllowsOwnRenewalPattern(t *testing.T) {
	svc, _, projID, a1, _ := newTestService(t)
	now := time.Now().UTC()

	_, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "src/**/*.go", Exclusive: true, TTL: time.Hour,
	}, now)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "src/**/*.go", Exclusive: true, TTL: time.Hour,
	}, now)
	assert.NoError(t, err)
}

func TestRenewRejectsNonHolder(t *testing.T) {
	svc, _, projID, a1, a2 := newTestService(t)
	now := time.Now().UTC()

	r, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "README.md", Exclusive: true, TTL: time.Hour,
	}, now)
	require.NoError(t, err)

	err = svc.Renew(context.Background(), r.ID, a2, time.Hour, now)
	assert.Error(t, err)
}

func TestForceReleaseRequiresStaleness(t *testing.T) {
	svc, _, projID, a1, _ := newTestService(t)
	now := time.Now().UTC()

	r, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "README.md", Exclusive: true, TTL: time.Hour,
	}, now)
	require.NoError(t, err)

	err = svc.ForceRelease(context.Background(), projID, r.ID, now, time.Hour)
	assert.Error(t, err)

	err = svc.ForceRelease(context.Background(), projID, r.ID, now.Add(2*time.Hour), time.Hour)
	assert.NoError(t, err)
}

func TestCreateAndReleaseMirrorArchiveFile(t *testing.T) {
	svc, _, projID, a1, _ := newTestService(t)
	accessor := newFakeArchiveAccessor(t.TempDir())
	svc.Archives = accessor
	now := time.Now().UTC()

	r, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "src/**/*.go", Exclusive: true, TTL: time.Hour,
	}, now)
	require.NoError(t, err)

	ar, err := accessor.Open("widget-api")
	require.NoError(t, err)
	resPath := filepath.Join(ar.ReservationsDir(), archive.ReservationFilename(r.PathPattern))
	data, err := os.ReadFile(resPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "agent=CrimsonFalcon")
	assert.Contains(t, string(data), "pattern=src/**/*.go")

	require.NoError(t, svc.Release(context.Background(), r.ID, a1))
	_, err = os.Stat(resPath)
	assert.True(t, os.IsNotExist(err), "release should remove the archive mirror file")
}

func TestSweepRemovesExpiredArchiveMirror(t *testing.T) {
	svc, _, projID, a1, _ := newTestService(t)
	accessor := newFakeArchiveAccessor(t.TempDir())
	svc.Archives = accessor
	now := time.Now().UTC()

	r, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "README.md", Exclusive: true, TTL: time.Minute,
	}, now)
	require.NoError(t, err)

	count, err := svc.Sweep(context.Background(), now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ar, err := accessor.Open("widget-api")
	require.NoError(t, err)
	resPath := filepath.Join(ar.ReservationsDir(), archive.ReservationFilename(r.PathPattern))
	_, err = os.Stat(resPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCreateClampsTTLBelowMinimum(t *testing.T) {
	svc, _, projID, a1, _ := newTestService(t)
	now := time.Now().UTC()

	r, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "README.md", Exclusive: true, TTL: 5 * time.Second,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, svc.minTTL(), r.ExpiresTS.Sub(now))
}

func TestRenewClampsTTLBelowMinimum(t *testing.T) {
	svc, _, projID, a1, _ := newTestService(t)
	now := time.Now().UTC()

	r, err := svc.Create(context.Background(), CreateRequest{
		ProjectID: projID, AgentID: a1, PathPattern: "README.md", Exclusive: true, TTL: time.Hour,
	}, now)
	require.NoError(t, err)

	require.NoError(t, svc.Renew(context.Background(), r.ID, a1, 5*time.Second, now))
	reloaded, err := svc.store.GetReservation(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, svc.minTTL(), reloaded.ExpiresTS.Sub(now))
}
