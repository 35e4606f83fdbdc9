package resources

import (
	"net/url"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/config"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

func identityDisabledErr() error {
	return apperr.New(apperr.FeatureDisabled, "resource://identity is disabled; set mcp.identity_resource_enabled to enable it")
}

func productDisabledErr() error {
	return apperr.New(apperr.FeatureDisabled, "resource://product is disabled; set mcp.product_bus_enabled to enable it")
}

// Identity exposes resource://identity/{project}: every agent's full
// profile (including its registration token) and every window-identity
// binding in the project. Gated behind mcp.identity_resource_enabled since
// registration tokens are credentials, unlike the plain agent directory at
// resource://agents/{project}.
type Identity struct {
	Store *store.Store
	Cfg   *config.Config
}

func NewIdentity(s *store.Store, cfg *config.Config) *Identity {
	return &Identity{Store: s, Cfg: cfg}
}

func (r *Identity) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://identity/{project}",
		Name:        "identity",
		Description: "Full agent profiles and window-identity bindings for a project, including registration tokens. Gated.",
		MimeType:    "application/json",
	}
}

func (r *Identity) ReadTemplated(projectSlug string, _ url.Values) (*mcp.ResourcesReadResult, error) {
	if !r.Cfg.MCP.IdentityResourceEnabled {
		return nil, identityDisabledErr()
	}
	ctx := backgroundCtx()
	project, err := r.Store.GetProjectBySlug(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	agents, err := r.Store.ListAgents(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	windows, err := r.Store.ListWindowIdentities(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://identity/"+projectSlug, map[string]any{
		"agents":  agents,
		"windows": windows,
	})
}

// Product exposes resource://product/{key}: the ids of the projects linked
// under a product key. Gated behind mcp.product_bus_enabled, same flag as the
// product-bus tools.
type Product struct {
	Store   *store.Store
	Enabled bool
}

func NewProduct(s *store.Store, enabled bool) *Product {
	return &Product{Store: s, Enabled: enabled}
}

func (r *Product) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://product/{key}",
		Name:        "product",
		Description: "Ids of the projects linked under a product key. Gated behind mcp.product_bus_enabled.",
		MimeType:    "application/json",
	}
}

func (r *Product) ReadTemplated(key string, _ url.Values) (*mcp.ResourcesReadResult, error) {
	if !r.Enabled {
		return nil, productDisabledErr()
	}
	projectIDs, err := r.Store.ProjectsForProduct(backgroundCtx(), key)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://product/"+key, map[string]any{"project_ids": projectIDs})
}
