package resources

import (
	"net/url"

	"github.com/agentmail/agentmail-mcp/internal/config"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// ConfigEnvironment exposes resource://config/environment: the effective,
// already-layered configuration an agent is running against, so it can
// explain its own guard mode or tool profile without guessing from a TOML
// file it may not have filesystem access to.
type ConfigEnvironment struct {
	Cfg *config.Config
}

func NewConfigEnvironment(cfg *config.Config) *ConfigEnvironment {
	return &ConfigEnvironment{Cfg: cfg}
}

func (r *ConfigEnvironment) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://config/environment",
		Name:        "config_environment",
		Description: "Effective server configuration: tool profile, guard mode, reservation defaults, contact defaults.",
		MimeType:    "application/json",
	}
}

func (r *ConfigEnvironment) Read(_ url.Values) (*mcp.ResourcesReadResult, error) {
	return jsonResult(r.Definition().URI, map[string]any{
		"tool_profile":            r.Cfg.MCP.ToolProfile,
		"default_format":          r.Cfg.MCP.DefaultFormat,
		"capabilities":            r.Cfg.MCP.Capabilities,
		"product_bus_enabled":     r.Cfg.MCP.ProductBusEnabled,
		"build_slots_enabled":     r.Cfg.MCP.BuildSlotsEnabled,
		"guard_mode":              r.Cfg.Guard.Mode,
		"contact_default_policy":  r.Cfg.Contacts.DefaultPolicy,
		"contact_auto_accept":     r.Cfg.Contacts.HandshakeAutoAccept,
		"contact_link_ttl_seconds": r.Cfg.Contacts.LinkTTLSeconds,
		"reservation_default_ttl_seconds": r.Cfg.Reservations.DefaultTTLSeconds,
		"reservation_min_ttl_seconds":     r.Cfg.Reservations.MinTTLSeconds,
		"reservation_stale_after_seconds": r.Cfg.Reservations.StaleInactivitySeconds,
		"summary_cache_tolerance_seconds": r.Cfg.Search.SummaryCacheToleranceSeconds,
		"transport_mode":          r.Cfg.Transport.Mode,
	})
}

// Projects exposes resource://projects: every project the server has ever
// seen, for a client deciding which project slug to operate against.
type Projects struct {
	Store *store.Store
}

func NewProjects(s *store.Store) *Projects {
	return &Projects{Store: s}
}

func (r *Projects) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://projects",
		Name:        "projects",
		Description: "Every project known to the coordination bus.",
		MimeType:    "application/json",
	}
}

func (r *Projects) Read(_ url.Values) (*mcp.ResourcesReadResult, error) {
	projects, err := r.Store.ListProjects(backgroundCtx())
	if err != nil {
		return nil, err
	}
	return jsonResult(r.Definition().URI, map[string]any{"projects": projects})
}

// ToolingDirectory exposes resource://tooling/directory: the name,
// description, and input schema of every currently-registered tool — the
// catalog a client consults before tools/list if it only wants a summary.
type ToolingDirectory struct {
	Registry *mcp.Registry
}

func NewToolingDirectory(reg *mcp.Registry) *ToolingDirectory {
	return &ToolingDirectory{Registry: reg}
}

func (r *ToolingDirectory) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://tooling/directory",
		Name:        "tooling_directory",
		Description: "Name and description of every registered tool.",
		MimeType:    "application/json",
	}
}

func (r *ToolingDirectory) Read(_ url.Values) (*mcp.ResourcesReadResult, error) {
	return jsonResult(r.Definition().URI, map[string]any{"tools": r.Registry.List()})
}

// ToolingSchemas exposes resource://tooling/schemas: the JSON Schema for
// every tool's input, useful to a client that wants to validate arguments
// before calling rather than after a CAPABILITY_DENIED/INVALID_ARGUMENT
// round trip.
type ToolingSchemas struct {
	Registry *mcp.Registry
}

func NewToolingSchemas(reg *mcp.Registry) *ToolingSchemas {
	return &ToolingSchemas{Registry: reg}
}

func (r *ToolingSchemas) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://tooling/schemas",
		Name:        "tooling_schemas",
		Description: "Input JSON Schema for every registered tool, keyed by tool name.",
		MimeType:    "application/json",
	}
}

func (r *ToolingSchemas) Read(_ url.Values) (*mcp.ResourcesReadResult, error) {
	schemas := make(map[string]any, len(r.Registry.List()))
	for _, def := range r.Registry.List() {
		schemas[def.Name] = def.InputSchema
	}
	return jsonResult(r.Definition().URI, schemas)
}
