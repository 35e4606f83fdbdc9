package resources

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail/agentmail-mcp/internal/config"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), store.Config{Path: filepath.Join(dir, "test.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAgent(t *testing.T, s *store.Store, projectSlug, agentName string) (*store.Project, *store.Agent) {
	t.Helper()
	ctx := context.Background()
	project, err := s.EnsureProject(ctx, projectSlug, projectSlug)
	require.NoError(t, err)
	agent, err := s.CreateAgent(ctx, &store.Agent{
		ProjectID:     project.ID,
		Name:          agentName,
		ContactPolicy: store.PolicyAuto,
	})
	require.NoError(t, err)
	return project, agent
}

func TestProjectsResourceListsEveryProject(t *testing.T) {
	s := newTestStore(t)
	_, _ = seedAgent(t, s, "acme", "CleverFox")

	res := NewProjects(s)
	result, err := res.Read(url.Values{})
	require.NoError(t, err)

	var parsed struct {
		Projects []*store.Project `json:"projects"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &parsed))
	require.Len(t, parsed.Projects, 1)
	assert.Equal(t, "acme", parsed.Projects[0].Slug)
}

func TestAgentsResourceReadTemplatedResolvesByProjectSlug(t *testing.T) {
	s := newTestStore(t)
	seedAgent(t, s, "acme", "CleverFox")

	res := NewAgents(s)
	result, err := res.ReadTemplated("acme", url.Values{})
	require.NoError(t, err)

	var parsed struct {
		Agents []*store.Agent `json:"agents"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &parsed))
	require.Len(t, parsed.Agents, 1)
	assert.Equal(t, "CleverFox", parsed.Agents[0].Name)
}

func TestInboxResourceRequiresProjectQueryParam(t *testing.T) {
	s := newTestStore(t)
	seedAgent(t, s, "acme", "CleverFox")

	res := NewInbox(s)
	_, err := res.ReadTemplated("CleverFox", url.Values{})
	assert.Error(t, err)
}

func TestInboxResourceReturnsReceivedMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project, sender := seedAgent(t, s, "acme", "CleverFox")
	recipient, err := s.CreateAgent(ctx, &store.Agent{ProjectID: project.ID, Name: "BraveOwl", ContactPolicy: store.PolicyAuto})
	require.NoError(t, err)

	_, err = s.InsertMessage(ctx, &store.Message{
		ProjectID: project.ID,
		SenderID:  sender.ID,
		ThreadID:  "t1",
		Subject:   "hi",
		BodyMD:    "body",
		CreatedTS: time.Now().UTC(),
	}, []store.Recipient{{AgentID: recipient.ID, Kind: store.RecipientTo}})
	require.NoError(t, err)

	res := NewInbox(s)
	result, err := res.ReadTemplated("BraveOwl", url.Values{"project": {"acme"}})
	require.NoError(t, err)

	var parsed struct {
		Messages []*store.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &parsed))
	require.Len(t, parsed.Messages, 1)
	assert.Equal(t, "hi", parsed.Messages[0].Subject)
}

func TestOutboxResourceReturnsSentMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project, sender := seedAgent(t, s, "acme", "CleverFox")
	recipient, err := s.CreateAgent(ctx, &store.Agent{ProjectID: project.ID, Name: "BraveOwl", ContactPolicy: store.PolicyAuto})
	require.NoError(t, err)

	_, err = s.InsertMessage(ctx, &store.Message{
		ProjectID: project.ID,
		SenderID:  sender.ID,
		ThreadID:  "t1",
		Subject:   "hi",
		BodyMD:    "body",
		CreatedTS: time.Now().UTC(),
	}, []store.Recipient{{AgentID: recipient.ID, Kind: store.RecipientTo}})
	require.NoError(t, err)

	res := NewOutbox(s)
	result, err := res.ReadTemplated("CleverFox", url.Values{"project": {"acme"}})
	require.NoError(t, err)

	var parsed struct {
		Messages []*store.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &parsed))
	require.Len(t, parsed.Messages, 1)
}

func TestUrgentUnreadViewFiltersByImportance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	project, sender := seedAgent(t, s, "acme", "CleverFox")
	recipient, err := s.CreateAgent(ctx, &store.Agent{ProjectID: project.ID, Name: "BraveOwl", ContactPolicy: store.PolicyAuto})
	require.NoError(t, err)

	_, err = s.InsertMessage(ctx, &store.Message{
		ProjectID: project.ID, SenderID: sender.ID, ThreadID: "t1",
		Subject: "normal", Importance: store.ImportanceNormal, CreatedTS: time.Now().UTC(),
	}, []store.Recipient{{AgentID: recipient.ID, Kind: store.RecipientTo}})
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, &store.Message{
		ProjectID: project.ID, SenderID: sender.ID, ThreadID: "t2",
		Subject: "urgent", Importance: store.ImportanceUrgent, CreatedTS: time.Now().UTC(),
	}, []store.Recipient{{AgentID: recipient.ID, Kind: store.RecipientTo}})
	require.NoError(t, err)

	res := NewUrgentUnread(s)
	result, err := res.ReadTemplated("BraveOwl", url.Values{"project": {"acme"}})
	require.NoError(t, err)

	var parsed struct {
		Messages []*store.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &parsed))
	require.Len(t, parsed.Messages, 1)
	assert.Equal(t, "urgent", parsed.Messages[0].Subject)
}

func TestIdentityResourceGatedByConfig(t *testing.T) {
	s := newTestStore(t)
	seedAgent(t, s, "acme", "CleverFox")

	cfg := &config.Config{}
	res := NewIdentity(s, cfg)
	_, err := res.ReadTemplated("acme", url.Values{})
	assert.Error(t, err)

	cfg.MCP.IdentityResourceEnabled = true
	result, err := res.ReadTemplated("acme", url.Values{})
	require.NoError(t, err)
	assert.Contains(t, result.Contents[0].Text, "CleverFox")
}
