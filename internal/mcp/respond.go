package mcp

import (
	"encoding/json"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/format"
)

// errorEnvelope is the wire shape every tool-level error takes, independent
// of output format: {error_type, message, recoverable, data}. Tools never
// hand-build this; they return an error and let RespondError map it.
type errorEnvelope struct {
	ErrorType   string `json:"error_type"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	Data        any    `json:"data,omitempty"`
}

// Respond renders payload as a successful tool result in the requested
// format. Every tool should call this instead of JSONResult directly so
// format negotiation is uniform across the surface.
func Respond(payload any, f format.OutputFormat) (*ToolsCallResult, error) {
	text, err := format.Render(payload, f)
	if err != nil {
		return nil, err
	}
	return &ToolsCallResult{Content: []ContentBlock{TextContent(text)}}, nil
}

// RespondError converts any error into the fixed {error_type, message,
// recoverable, data} envelope and renders it in the requested format.
// apperr.As tags untagged errors as UNHANDLED_EXCEPTION so every failure —
// not just ones a component remembered to wrap — reaches the client in the
// same shape.
func RespondError(err error, f format.OutputFormat) *ToolsCallResult {
	tagged := apperr.As(err)
	env := errorEnvelope{
		ErrorType:   string(tagged.Code),
		Message:     tagged.Message,
		Recoverable: tagged.Recoverable(),
		Data:        tagged.Data,
	}
	text, renderErr := format.Render(env, f)
	if renderErr != nil {
		text = tagged.Error()
	}
	return &ToolsCallResult{
		Content: []ContentBlock{TextContent(text)},
		IsError: true,
	}
}

// FormatFromArgs extracts and validates the optional "format" field from a
// tool's raw JSON arguments, defaulting to def when the field is absent.
// A malformed arguments blob is left for the tool's own unmarshal to
// report; this just falls back to def rather than surfacing a second error.
func FormatFromArgs(args json.RawMessage, def format.OutputFormat) (format.OutputFormat, error) {
	if len(args) == 0 {
		return def, nil
	}
	var peek struct {
		Format string `json:"format"`
	}
	if err := json.Unmarshal(args, &peek); err != nil {
		return def, nil
	}
	if peek.Format == "" {
		return def, nil
	}
	return format.Parse(peek.Format)
}
