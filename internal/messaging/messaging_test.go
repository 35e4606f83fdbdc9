package messaging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail/agentmail-mcp/internal/archive"
	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

type fakeArchives struct {
	root string
	open map[string]*archive.Archive
}

func newFakeArchives(root string) *fakeArchives {
	return &fakeArchives{root: root, open: make(map[string]*archive.Archive)}
}

func (f *fakeArchives) Open(slug string) (*archive.Archive, error) {
	if a, ok := f.open[slug]; ok {
		return a, nil
	}
	a, err := archive.Open(f.root, slug)
	if err != nil {
		return nil, err
	}
	f.open[slug] = a
	return a, nil
}

func setup(t *testing.T) (*Composer, *fakeArchives, *store.Project, int64, int64) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "t.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	proj, err := s.EnsureProject(context.Background(), "widget-api", "/x")
	require.NoError(t, err)
	sender, err := s.CreateAgent(context.Background(), &store.Agent{ProjectID: proj.ID, Name: "CrimsonFalcon", ContactPolicy: store.PolicyOpen})
	require.NoError(t, err)
	recv, err := s.CreateAgent(context.Background(), &store.Agent{ProjectID: proj.ID, Name: "AmberWolf", ContactPolicy: store.PolicyOpen})
	require.NoError(t, err)

	c := &Composer{
		Store:        s,
		Resolver:     &StoreResolver{Store: s},
		Reservations: reservations.NewService(s),
		LockTimeout:  5 * time.Second,
		LinkTTL:      time.Hour,
	}
	archives := newFakeArchives(t.TempDir())
	return c, archives, proj, sender.ID, recv.ID
}

func TestSendOpenPolicySucceeds(t *testing.T) {
	c, archives, proj, sender, recv := setup(t)
	_ = recv

	msg, warnings, err := c.Send(context.Background(), archives, proj, SendRequest{
		ProjectID: proj.ID, SenderID: sender,
		To:        []string{"AmberWolf"},
		Subject:   "Heads up",
		BodyMD:    "Starting the migration now.",
	}, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "Heads up", msg.Subject)
}

func TestSendBlockedPolicyFails(t *testing.T) {
	c, archives, proj, sender, recv := setup(t)
	require.NoError(t, c.Store.SetContactPolicy(context.Background(), recv, store.PolicyBlockAll))

	_, _, err := c.Send(context.Background(), archives, proj, SendRequest{
		ProjectID: proj.ID, SenderID: sender,
		To: []string{"AmberWolf"}, Subject: "x", BodyMD: "y",
	}, nil, time.Now().UTC())
	assert.Error(t, err)
}

func TestSendWritesCanonicalOutboxAndInboxCopies(t *testing.T) {
	c, archives, proj, sender, _ := setup(t)

	now := time.Now().UTC()
	msg, _, err := c.Send(context.Background(), archives, proj, SendRequest{
		ProjectID: proj.ID, SenderID: sender,
		To:      []string{"AmberWolf"},
		Subject: "Heads up",
		BodyMD:  "Starting the migration now.",
	}, nil, now)
	require.NoError(t, err)

	ar, err := archives.Open(proj.Slug)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(ar.Root(), archive.MessageRelPath(now, msg.Subject, msg.ID)))
	assert.FileExists(t, filepath.Join(ar.Root(), archive.AgentOutboxRelPath("CrimsonFalcon", now, msg.Subject, msg.ID)))
	assert.FileExists(t, filepath.Join(ar.Root(), archive.AgentInboxRelPath("AmberWolf", now, msg.Subject, msg.ID)))
}

func TestSendAutoPolicyHandshakesThenAllows(t *testing.T) {
	c, archives, proj, sender, recv := setup(t)
	require.NoError(t, c.Store.SetContactPolicy(context.Background(), recv, store.PolicyAuto))
	c.AutoAccept = true

	msg, warnings, err := c.Send(context.Background(), archives, proj, SendRequest{
		ProjectID: proj.ID, SenderID: sender,
		To: []string{"AmberWolf"}, Subject: "x", BodyMD: "y",
	}, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.NotZero(t, msg.ID)
}

func TestReplySubjectIdempotent(t *testing.T) {
	assert.Equal(t, "Re: hello", ReplySubject("hello"))
	assert.Equal(t, "Re: hello", ReplySubject("Re: hello"))
}

func TestThreadIDForFallsBackToMessageID(t *testing.T) {
	m := &store.Message{ID: 42}
	assert.Equal(t, "42", ThreadIDFor(m))
	m.ThreadID = "custom-thread"
	assert.Equal(t, "custom-thread", ThreadIDFor(m))
}

func TestParseRecipientForms(t *testing.T) {
	assert.Equal(t, SelfRef{}, ParseRecipient("self"))
	assert.Equal(t, LocalRef{Name: "AmberWolf"}, ParseRecipient("AmberWolf"))
	assert.Equal(t, CrossProjectRef{ProjectSlug: "other-api", Name: "AmberWolf"}, ParseRecipient("other-api/AmberWolf"))
}
