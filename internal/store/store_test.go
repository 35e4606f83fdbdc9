package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), Config{Path: filepath.Join(dir, "test.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureProjectIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	require.NoError(t, err)
	p2, err := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	_, err = s.GetProjectBySlug(ctx, "nonexistent")
	assert.Error(t, err)
}

func TestCreateAgentRejectsDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, err := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	require.NoError(t, err)

	_, err = s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})
	require.NoError(t, err)

	_, err = s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "crimsonfalcon"})
	assert.Error(t, err)

	got, err := s.GetAgentByName(ctx, proj.ID, "CRIMSONFALCON")
	require.NoError(t, err)
	assert.Equal(t, "CrimsonFalcon", got.Name)
}

func TestInsertMessageAndFetchInbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, _ := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	sender, _ := s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})
	recv, _ := s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "AmberWolf"})

	msg, err := s.InsertMessage(ctx, &Message{
		ProjectID: proj.ID,
		SenderID:  sender.ID,
		Subject:   "Migration plan",
		BodyMD:    "Splitting the users table tonight.",
		Importance: ImportanceHigh,
	}, []Recipient{{AgentID: recv.ID, Kind: RecipientTo}})
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)

	inbox, err := s.FetchInbox(ctx, recv.ID, InboxFilter{})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Migration plan", inbox[0].Subject)

	err = s.MarkRead(ctx, msg.ID, recv.ID)
	require.NoError(t, err)

	unread, err := s.FetchInbox(ctx, recv.ID, InboxFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestMarkReadNonRecipientFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, _ := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	sender, _ := s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})
	bystander, _ := s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "SilentHeron"})

	msg, err := s.InsertMessage(ctx, &Message{
		ProjectID: proj.ID, SenderID: sender.ID, Subject: "x", BodyMD: "y",
	}, nil)
	require.NoError(t, err)

	err = s.MarkRead(ctx, msg.ID, bystander.ID)
	assert.Error(t, err)
}

func TestReservationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, _ := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	agent, _ := s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})

	now := time.Now().UTC()
	r, err := s.CreateReservation(ctx, &FileReservation{
		ProjectID: proj.ID, AgentID: agent.ID, PathPattern: "src/**/*.go",
		Exclusive: true, ExpiresTS: now.Add(time.Hour),
	})
	require.NoError(t, err)

	active, err := s.ActiveReservations(ctx, proj.ID, now)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, s.RenewReservation(ctx, r.ID, now.Add(2*time.Hour)))
	require.NoError(t, s.ReleaseReservation(ctx, r.ID))

	active, err = s.ActiveReservations(ctx, proj.ID, now)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSweepExpiredReservations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, _ := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	agent, _ := s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})

	past := time.Now().UTC().Add(-time.Hour)
	_, err := s.CreateReservation(ctx, &FileReservation{
		ProjectID: proj.ID, AgentID: agent.ID, PathPattern: "README.md", ExpiresTS: past,
	})
	require.NoError(t, err)

	n, err := s.SweepExpiredReservations(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchFTS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	proj, _ := s.EnsureProject(ctx, "widget-api", "/home/dev/widget-api")
	sender, _ := s.CreateAgent(ctx, &Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})

	_, err := s.InsertMessage(ctx, &Message{
		ProjectID: proj.ID, SenderID: sender.ID, Subject: "Database migration",
		BodyMD: "Renaming the billing_accounts table.",
	}, nil)
	require.NoError(t, err)

	results, err := s.SearchFTS(ctx, proj.ID, "migration", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Database migration", results[0].Subject)
}
