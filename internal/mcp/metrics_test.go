package mcp

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserveCallTracksCallsAndErrors(t *testing.T) {
	m := NewMetrics()
	m.ObserveCall("send_message", "", 0.01)
	m.ObserveCall("send_message", "", 0.02)
	m.ObserveCall("send_message", "INVALID_ARGUMENT", 0.01)

	snapshot, err := m.snapshot()
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	tm := snapshot[0]
	assert.Equal(t, "send_message", tm.Tool)
	assert.Equal(t, float64(3), tm.Calls)
	assert.Equal(t, float64(1), tm.Errors)
	assert.Equal(t, float64(1), tm.ErrorsByType["INVALID_ARGUMENT"])
}

func TestMetricsSnapshotSeparatesToolsByLabel(t *testing.T) {
	m := NewMetrics()
	m.ObserveCall("send_message", "", 0.01)
	m.ObserveCall("fetch_inbox", "NOT_FOUND", 0.01)

	snapshot, err := m.snapshot()
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	byTool := map[string]toolMetric{}
	for _, tm := range snapshot {
		byTool[tm.Tool] = tm
	}
	assert.Equal(t, float64(1), byTool["send_message"].Calls)
	assert.Equal(t, float64(0), byTool["send_message"].Errors)
	assert.Equal(t, float64(1), byTool["fetch_inbox"].Errors)
}

func TestMetricsResourceReadRendersJSON(t *testing.T) {
	m := NewMetrics()
	m.ObserveCall("ensure_project", "", 0.01)

	res := NewMetricsResource(m)
	result, err := res.Read(url.Values{})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MimeType)

	var parsed []toolMetric
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &parsed))
	require.Len(t, parsed, 1)
	assert.Equal(t, "ensure_project", parsed[0].Tool)
}

func TestMetricsResourceDefinitionURI(t *testing.T) {
	res := NewMetricsResource(NewMetrics())
	def := res.Definition()
	assert.Equal(t, "resource://tooling/metrics", def.URI)
}
