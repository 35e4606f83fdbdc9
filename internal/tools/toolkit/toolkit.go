// Package toolkit holds the small bits of boilerplate every tool in
// internal/tools/* repeats: decoding arguments, resolving the requested
// output format, and turning a business-layer error into a rendered
// *mcp.ToolsCallResult via the fixed error envelope.
package toolkit

import (
	"encoding/json"

	"github.com/agentmail/agentmail-mcp/internal/format"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
)

// Decode unmarshals raw tool arguments into dst. Every params struct used
// with Decode should embed a `Format string `json:"format,omitempty"`` field
// if it wants to honor output-format negotiation.
func Decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// ResolveFormat peeks the "format" field out of raw arguments, defaulting
// to JSON. Mirrors mcp.FormatFromArgs so tools don't need to import mcp's
// internal default directly.
func ResolveFormat(raw json.RawMessage) format.OutputFormat {
	f, err := mcp.FormatFromArgs(raw, format.FormatJSON)
	if err != nil {
		return format.FormatJSON
	}
	return f
}

// Ok renders payload as a successful result in the format raw requested.
func Ok(raw json.RawMessage, payload any) (*mcp.ToolsCallResult, error) {
	return mcp.Respond(payload, ResolveFormat(raw))
}

// Err renders err as the standard error envelope in the format raw
// requested. Always returns a nil error itself — tools return this result
// with a nil error so the MCP boundary doesn't double-wrap it.
func Err(raw json.RawMessage, err error) (*mcp.ToolsCallResult, error) {
	return mcp.RespondError(err, ResolveFormat(raw)), nil
}
