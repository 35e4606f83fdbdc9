package resources

import (
	"net/url"

	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/store"
)

// Project exposes resource://project/{slug}: a single project's metadata.
type Project struct {
	Store *store.Store
}

func NewProject(s *store.Store) *Project {
	return &Project{Store: s}
}

func (r *Project) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://project/{slug}",
		Name:        "project",
		Description: "A single project's metadata, by slug.",
		MimeType:    "application/json",
	}
}

func (r *Project) ReadTemplated(slug string, _ url.Values) (*mcp.ResourcesReadResult, error) {
	project, err := r.Store.GetProjectBySlug(backgroundCtx(), slug)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://project/"+slug, project)
}

// Agents exposes resource://agents/{project}: every agent registered in a
// project, for a client deciding who to address a message to.
type Agents struct {
	Store *store.Store
}

func NewAgents(s *store.Store) *Agents {
	return &Agents{Store: s}
}

func (r *Agents) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://agents/{project}",
		Name:        "agents",
		Description: "Every agent registered in a project, by project slug.",
		MimeType:    "application/json",
	}
}

func (r *Agents) ReadTemplated(projectSlug string, _ url.Values) (*mcp.ResourcesReadResult, error) {
	ctx := backgroundCtx()
	project, err := r.Store.GetProjectBySlug(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	agents, err := r.Store.ListAgents(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult("resource://agents/"+projectSlug, map[string]any{"agents": agents})
}
