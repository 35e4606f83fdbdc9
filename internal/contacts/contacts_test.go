package contacts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail/agentmail-mcp/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, int64, int64, int64) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "t.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	proj, err := s.EnsureProject(context.Background(), "widget-api", "/x")
	require.NoError(t, err)
	a1, err := s.CreateAgent(context.Background(), &store.Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})
	require.NoError(t, err)
	a2, err := s.CreateAgent(context.Background(), &store.Agent{ProjectID: proj.ID, Name: "AmberWolf"})
	require.NoError(t, err)
	return s, proj.ID, a1.ID, a2.ID
}

func TestEvaluateOpenPolicyAlwaysAllows(t *testing.T) {
	s, proj, a1, a2 := newTestStore(t)
	d, err := Evaluate(context.Background(), s, proj, a1, proj, a2, store.PolicyOpen, time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateBlockAllNeverAllows(t *testing.T) {
	s, proj, a1, a2 := newTestStore(t)
	d, err := Evaluate(context.Background(), s, proj, a1, proj, a2, store.PolicyBlockAll, time.Now())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestEvaluateAutoNeedsHandshakeWhenNoLink(t *testing.T) {
	s, proj, a1, a2 := newTestStore(t)
	d, err := Evaluate(context.Background(), s, proj, a1, proj, a2, store.PolicyAuto, time.Now())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.NeedsHandshake)
}

func TestAutoHandshakeWithAutoAcceptAllows(t *testing.T) {
	s, proj, a1, a2 := newTestStore(t)
	now := time.Now().UTC()

	d, err := AutoHandshake(context.Background(), s, nil, proj, a1, proj, a2, store.PolicyAuto, true, time.Hour, now)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAutoHandshakeWithoutAutoAcceptStaysPending(t *testing.T) {
	s, proj, a1, a2 := newTestStore(t)
	now := time.Now().UTC()

	d, err := AutoHandshake(context.Background(), s, nil, proj, a1, proj, a2, store.PolicyAuto, false, time.Hour, now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestEffectiveStatusDemotesExpiredApproval(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	link := &store.AgentLink{Status: store.LinkApproved, ExpiresTS: &past}
	assert.Equal(t, store.LinkPending, EffectiveStatus(link, time.Now()))
}

func TestRespondContactApprove(t *testing.T) {
	s, proj, a1, a2 := newTestStore(t)
	now := time.Now().UTC()

	_, err := RequestContact(context.Background(), s, proj, a1, proj, a2, "please connect")
	require.NoError(t, err)

	link, err := RespondContact(context.Background(), s, proj, a2, proj, a1, true, 7*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, store.LinkApproved, link.Status)
}

func TestValidateTransitionRejectsUnknown(t *testing.T) {
	err := ValidateTransition(&TransitionContext{}, store.LinkBlocked, store.LinkStatus("made_up"))
	assert.Error(t, err)
}
