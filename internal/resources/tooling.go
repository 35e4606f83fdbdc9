package resources

import (
	"net/url"
	"strconv"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/config"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// Capabilities exposes resource://tooling/capabilities/{agent}?project=…:
// the effective capability set and tool profile an agent is operating
// under, plus its own profile fields — what a client consults before
// attempting a call a CAPABILITY_DENIED would otherwise reject.
type Capabilities struct {
	Store *store.Store
	Cfg   *config.Config
}

func NewCapabilities(s *store.Store, cfg *config.Config) *Capabilities {
	return &Capabilities{Store: s, Cfg: cfg}
}

func (r *Capabilities) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://tooling/capabilities/{agent}",
		Name:        "tooling_capabilities",
		Description: "Effective capability set and tool profile for an agent. Requires ?project=<slug>.",
		MimeType:    "application/json",
	}
}

func (r *Capabilities) ReadTemplated(agentName string, query url.Values) (*mcp.ResourcesReadResult, error) {
	agent, err := resolveAgent(r.Store, agentName, query)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://tooling/capabilities/"+agentName, map[string]any{
		"agent":          agent.Name,
		"contact_policy": agent.ContactPolicy,
		"tool_profile":   r.Cfg.MCP.ToolProfile,
		"capabilities":   r.Cfg.MCP.Capabilities,
	})
}

// RecentActivity exposes resource://tooling/recent/{window_seconds}: every
// recorded tool call within the trailing window_seconds.
type RecentActivity struct {
	Activity *mcp.Activity
}

func NewRecentActivity(a *mcp.Activity) *RecentActivity {
	return &RecentActivity{Activity: a}
}

func (r *RecentActivity) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://tooling/recent/{window_seconds}",
		Name:        "tooling_recent",
		Description: "Every recorded tool call within the trailing window_seconds.",
		MimeType:    "application/json",
	}
}

func (r *RecentActivity) ReadTemplated(windowParam string, _ url.Values) (*mcp.ResourcesReadResult, error) {
	seconds, err := strconv.Atoi(windowParam)
	if err != nil || seconds <= 0 {
		seconds = 300
	}
	cutoff := time.Now().UTC().Add(-time.Duration(seconds) * time.Second)
	events := r.Activity.Since(cutoff)
	return jsonResult("resource://tooling/recent/"+windowParam, map[string]any{"events": events})
}
