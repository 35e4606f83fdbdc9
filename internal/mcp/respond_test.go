package mcp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/format"
)

func TestRespondRendersJSONByDefault(t *testing.T) {
	result, err := Respond(map[string]string{"status": "ok"}, format.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, result.Content[0].Text, `"status"`)
	assert.False(t, result.IsError)
}

func TestRespondErrorMapsTaggedCode(t *testing.T) {
	taggedErr := apperr.New(apperr.ContactBlocked, "agent is blocked")
	result := RespondError(taggedErr, format.FormatJSON)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "CONTACT_BLOCKED")
	assert.Contains(t, result.Content[0].Text, `"recoverable": true`)
}

func TestRespondErrorTagsPlainErrorsAsUnhandled(t *testing.T) {
	result := RespondError(errors.New("disk fell off"), format.FormatJSON)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "UNHANDLED_EXCEPTION")
}

func TestFormatFromArgsDefaultsWhenAbsent(t *testing.T) {
	f, err := FormatFromArgs(json.RawMessage(`{"project":"acme"}`), format.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, format.FormatJSON, f)
}

func TestFormatFromArgsHonorsExplicitFormat(t *testing.T) {
	f, err := FormatFromArgs(json.RawMessage(`{"format":"toon"}`), format.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, format.FormatTOON, f)
}

func TestFormatFromArgsRejectsUnknownFormat(t *testing.T) {
	_, err := FormatFromArgs(json.RawMessage(`{"format":"xml"}`), format.FormatJSON)
	assert.Error(t, err)
}
