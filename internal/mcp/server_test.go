package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type erroringTool struct {
	fakeTool
	failuresBeforeSuccess int
	calls                 int
	err                   error
}

func (e *erroringTool) Execute(ctx context.Context, params json.RawMessage) (*ToolsCallResult, error) {
	e.calls++
	if e.calls <= e.failuresBeforeSuccess {
		return nil, e.err
	}
	return &ToolsCallResult{Content: []ContentBlock{TextContent("ok")}}, nil
}

func newTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()
	r := NewRegistry()
	s := NewServer(r, ServerInfo{Name: "agentmail-mcp-test", Version: "0.0.0"}, testLogger())
	return s, r
}

func TestToolsCallCapabilityDenied(t *testing.T) {
	s, r := newTestServer(t)
	r.Register(&fakeTool{name: "reserve_files", cluster: ClusterFileReservations, caps: []string{"file_reservations"}})

	ctx := WithAllowedCapabilities(context.Background(), []string{"messaging"})
	params, _ := json.Marshal(ToolsCallParams{Name: "reserve_files"})

	result, rpcErr := s.handleToolsCall(ctx, params)
	require.Nil(t, rpcErr)
	callResult := result.(*ToolsCallResult)
	assert.True(t, callResult.IsError)
	assert.Contains(t, callResult.Content[0].Text, "CAPABILITY_DENIED")
}

func TestToolsCallCapabilityAllowedWhenUnrestricted(t *testing.T) {
	s, r := newTestServer(t)
	r.Register(&fakeTool{name: "reserve_files", cluster: ClusterFileReservations, caps: []string{"file_reservations"}})

	params, _ := json.Marshal(ToolsCallParams{Name: "reserve_files"})
	result, rpcErr := s.handleToolsCall(context.Background(), params)
	require.Nil(t, rpcErr)
	callResult := result.(*ToolsCallResult)
	assert.False(t, callResult.IsError)
}

func TestToolsCallRetriesOnEMFILE(t *testing.T) {
	s, r := newTestServer(t)
	tool := &erroringTool{
		fakeTool:              fakeTool{name: "flaky", cluster: ClusterInfrastructure},
		failuresBeforeSuccess: 2,
		err:                   syscall.EMFILE,
	}
	r.Register(tool)

	params, _ := json.Marshal(ToolsCallParams{Name: "flaky"})
	result, rpcErr := s.handleToolsCall(context.Background(), params)
	require.Nil(t, rpcErr)
	callResult := result.(*ToolsCallResult)
	assert.False(t, callResult.IsError)
	assert.Equal(t, 3, tool.calls)
}

func TestToolsCallDoesNotRetryOnOtherErrors(t *testing.T) {
	s, r := newTestServer(t)
	tool := &erroringTool{
		fakeTool:              fakeTool{name: "broken", cluster: ClusterInfrastructure},
		failuresBeforeSuccess: 1,
		err:                   assertErr{},
	}
	r.Register(tool)

	params, _ := json.Marshal(ToolsCallParams{Name: "broken"})
	result, rpcErr := s.handleToolsCall(context.Background(), params)
	require.Nil(t, rpcErr)
	callResult := result.(*ToolsCallResult)
	assert.True(t, callResult.IsError)
	assert.Equal(t, 1, tool.calls)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestResourcesReadSplitsQueryString(t *testing.T) {
	s, r := newTestServer(t)
	r.RegisterResource(&fakeResource{uri: "resource://file_reservations/acme"})

	params, _ := json.Marshal(ResourcesReadParams{URI: "resource://file_reservations/acme?q=active"})
	result, rpcErr := s.handleResourcesRead(params)
	require.Nil(t, rpcErr)
	readResult := result.(*ResourcesReadResult)
	assert.Equal(t, "active", readResult.Contents[0].Text)
}

func TestResourcesReadFallsBackToTemplate(t *testing.T) {
	s, r := newTestServer(t)
	r.RegisterResourceTemplate(&fakeTemplatedResource{uriPrefix: "resource://agents/"})

	params, _ := json.Marshal(ResourcesReadParams{URI: "resource://agents/acme"})
	result, rpcErr := s.handleResourcesRead(params)
	require.Nil(t, rpcErr)
	readResult := result.(*ResourcesReadResult)
	assert.Equal(t, "acme", readResult.Contents[0].Text)
}

func TestResourcesReadMissingRegistryEntry(t *testing.T) {
	s, _ := newTestServer(t)
	params, _ := json.Marshal(ResourcesReadParams{URI: "resource://nope"})
	_, rpcErr := s.handleResourcesRead(params)
	require.NotNil(t, rpcErr)
	assert.Equal(t, ErrCodeMethodNotFound, rpcErr.Code)
}

func TestSplitResourceURINoQuery(t *testing.T) {
	base, q, err := splitResourceURI("resource://projects")
	require.NoError(t, err)
	assert.Equal(t, "resource://projects", base)
	assert.Empty(t, q)
}

func TestSplitResourceURIWithQuery(t *testing.T) {
	base, q, err := splitResourceURI("resource://thread/42?project=acme")
	require.NoError(t, err)
	assert.Equal(t, "resource://thread/42", base)
	assert.Equal(t, url.Values{"project": []string{"acme"}}, q)
}
