package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail/agentmail-mcp/internal/store"
)

func TestSanitizeQuotesHyphenatedTokens(t *testing.T) {
	out, err := Sanitize("pre-commit hook")
	require.NoError(t, err)
	assert.Equal(t, `"pre-commit" hook`, out)
}

func TestSanitizeRejectsBareWildcard(t *testing.T) {
	_, err := Sanitize("*")
	assert.Error(t, err)
}

func TestSanitizeRejectsLeadingWildcard(t *testing.T) {
	_, err := Sanitize("*migration")
	assert.Error(t, err)
}

func TestSanitizeRejectsLoneOperator(t *testing.T) {
	_, err := Sanitize("AND")
	assert.Error(t, err)
}

func TestFallbackTokensCapsAtFive(t *testing.T) {
	tokens := FallbackTokens("one two three four five six seven")
	assert.Len(t, tokens, 5)
}

func newTestStore(t *testing.T) (*store.Store, int64, int64) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(t.TempDir(), "t.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	proj, err := s.EnsureProject(context.Background(), "widget-api", "/x")
	require.NoError(t, err)
	agent, err := s.CreateAgent(context.Background(), &store.Agent{ProjectID: proj.ID, Name: "CrimsonFalcon"})
	require.NoError(t, err)
	return s, proj.ID, agent.ID
}

func TestSearchFallsBackToLikeOnLeadingWildcard(t *testing.T) {
	s, proj, sender := newTestStore(t)
	_, err := s.InsertMessage(context.Background(), &store.Message{
		ProjectID: proj, SenderID: sender, Subject: "Deploy pipeline broke", BodyMD: "CI red on main.",
	}, nil)
	require.NoError(t, err)

	results, err := Search(context.Background(), s, proj, "*pipeline", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestDigestReusesWithinTolerance(t *testing.T) {
	s, proj, sender := newTestStore(t)
	_, err := s.InsertMessage(context.Background(), &store.Message{
		ProjectID: proj, SenderID: sender, Subject: "Status", BodyMD: "All green.",
	}, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	first, err := Digest(context.Background(), s, proj, now.Add(-time.Hour), now, 300, nil)
	require.NoError(t, err)

	second, err := Digest(context.Background(), s, proj, now.Add(-time.Hour), now.Add(time.Minute), 300, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestHeuristicThreadDigest(t *testing.T) {
	msgs := []*store.Message{
		{Subject: "Migration plan", BodyMD: "Step one.", CreatedTS: time.Now()},
		{Subject: "Migration plan", BodyMD: "Step two done.", CreatedTS: time.Now()},
	}
	text, model, cost, err := SummarizeThread(context.Background(), msgs, nil)
	require.NoError(t, err)
	assert.Empty(t, model)
	assert.Zero(t, cost)
	assert.Contains(t, text, "2 message")
}
