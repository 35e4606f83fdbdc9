// Package resources implements the coordination bus's read-only MCP
// resource surface: per-entity views over the store and archive, reachable
// by URI rather than by tool call. Every resource here renders a plain JSON
// snapshot, the same way mcp.MetricsResource does — resources are GETs, not
// negotiated tool results, so there is no format query param to honor.
package resources

import (
	"context"
	"encoding/json"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
)

// jsonResult marshals payload as the single content item of a resource
// read, tagging it with uri so clients can tell which resource answered
// (useful once a templated resource has resolved its path param).
func jsonResult(uri string, payload any) (*mcp.ResourcesReadResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{{
			URI:      uri,
			MimeType: "application/json",
			Text:     string(body),
		}},
	}, nil
}

// backgroundCtx is used by resources, which have no per-request context
// from the MCP transport (Resource.Read/ReadTemplated take no ctx param).
func backgroundCtx() context.Context { return context.Background() }
