package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Tool is the interface that all agentmail tools must implement.
type Tool interface {
	// Name returns the tool name (e.g. "send_message", "ensure_project").
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// InputSchema returns the JSON Schema for the tool's parameters.
	InputSchema() json.RawMessage

	// Execute runs the tool with the given parameters and returns the result.
	Execute(ctx context.Context, params json.RawMessage) (*ToolsCallResult, error)

	// Cluster reports which capability cluster this tool belongs to, for
	// tool-filter profiles and structured logging.
	Cluster() Cluster

	// RequiredCapabilities lists the capability tokens a caller's context
	// must all hold for this tool to run. Empty means no restriction beyond
	// cluster membership.
	RequiredCapabilities() []string
}

// Prompt is the interface for MCP prompts.
type Prompt interface {
	// Definition returns the prompt metadata (name, description, arguments).
	Definition() PromptDefinition

	// Get returns the prompt messages, optionally customized by arguments.
	Get(arguments map[string]string) (*PromptsGetResult, error)
}

// Resource is the interface for MCP resources.
type Resource interface {
	// Definition returns the resource metadata (URI, name, description, mimeType).
	Definition() ResourceDefinition

	// Read returns the resource content. params carries any query-string
	// arguments from the requested URI (e.g. "?project=acme&active_only=true");
	// a resource that takes no parameters may ignore it.
	Read(params url.Values) (*ResourcesReadResult, error)
}

// TemplatedResource is a Resource whose URI carries a single path
// variable (e.g. "resource://project/{slug}", "resource://inbox/{agent}").
// It is registered once under its templated URI and matched against
// requests by prefix, with the path segment following the prefix handed
// to Read as pathParam. Needed because spec.md's resource surface is
// mostly per-entity ("resource://thread/{id}", "resource://mailbox/
// {agent}") rather than the single static resources the base Resource
// interface was written for.
type TemplatedResource interface {
	Definition() ResourceDefinition
	ReadTemplated(pathParam string, query url.Values) (*ResourcesReadResult, error)
}

// Registry holds all registered tools, prompts, and resources.
type Registry struct {
	mu            sync.RWMutex
	tools         map[string]Tool
	toolOrder     []string
	prompts       map[string]Prompt
	promptOrder   []string
	resources     map[string]Resource // keyed by URI
	resourceOrder []string
	templates     []TemplatedResource // matched by URI prefix, longest first
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		prompts:   make(map[string]Prompt),
		resources: make(map[string]Resource),
	}
}

// --- Tools ---

// Register adds a tool to the registry.
// Panics if a tool with the same name is already registered.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool %q already registered", name))
	}
	r.tools[name] = t
	r.toolOrder = append(r.toolOrder, name)
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Filter removes, in place, every registered tool whose cluster is not
// admitted by profile. For ProfileCustom, clusters names the admitted
// cluster set explicitly (an empty clusters admits nothing); it is ignored
// for every other profile. Call once at startup, before serving any
// request — this is a registry-shrinking operation, not a per-call gate.
func (r *Registry) Filter(profile Profile, clusters []Cluster) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var custom map[Cluster]bool
	if profile == ProfileCustom {
		custom = make(map[Cluster]bool, len(clusters))
		for _, c := range clusters {
			custom[c] = true
		}
	}

	kept := r.toolOrder[:0:0]
	for _, name := range r.toolOrder {
		t := r.tools[name]
		var admit bool
		if profile == ProfileCustom {
			admit = custom[t.Cluster()]
		} else {
			admit = allowedIn(profile, t.Cluster())
		}
		if admit {
			kept = append(kept, name)
		} else {
			delete(r.tools, name)
		}
	}
	r.toolOrder = kept
}

// List returns all registered tool definitions in registration order.
func (r *Registry) List() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.toolOrder))
	for _, name := range r.toolOrder {
		t := r.tools[name]
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// --- Prompts ---

// RegisterPrompt adds a prompt to the registry.
// Panics if a prompt with the same name is already registered.
func (r *Registry) RegisterPrompt(p Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Definition().Name
	if _, exists := r.prompts[name]; exists {
		panic(fmt.Sprintf("prompt %q already registered", name))
	}
	r.prompts[name] = p
	r.promptOrder = append(r.promptOrder, name)
}

// GetPrompt returns a prompt by name, or nil if not found.
func (r *Registry) GetPrompt(name string) Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prompts[name]
}

// ListPrompts returns all registered prompt definitions in registration order.
func (r *Registry) ListPrompts() []PromptDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]PromptDefinition, 0, len(r.promptOrder))
	for _, name := range r.promptOrder {
		defs = append(defs, r.prompts[name].Definition())
	}
	return defs
}

// HasPrompts returns true if any prompts are registered.
func (r *Registry) HasPrompts() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts) > 0
}

// --- Resources ---

// RegisterResource adds a resource to the registry.
// Panics if a resource with the same URI is already registered.
func (r *Registry) RegisterResource(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uri := res.Definition().URI
	if _, exists := r.resources[uri]; exists {
		panic(fmt.Sprintf("resource %q already registered", uri))
	}
	r.resources[uri] = res
	r.resourceOrder = append(r.resourceOrder, uri)
}

// GetResource returns a resource by URI, or nil if not found.
func (r *Registry) GetResource(uri string) Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resources[uri]
}

// RegisterResourceTemplate adds a URI-templated resource. Its Definition's
// URI must contain exactly one "{...}" path variable; everything before
// the "{" is the match prefix.
func (r *Registry) RegisterResourceTemplate(res TemplatedResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = append(r.templates, res)
	sort.Slice(r.templates, func(i, j int) bool {
		return len(templatePrefix(r.templates[i].Definition().URI)) > len(templatePrefix(r.templates[j].Definition().URI))
	})
}

// GetResourceTemplate matches uri against registered templates by prefix
// (longest prefix wins) and returns the matched resource plus the path
// segment captured after the prefix, or (nil, "") if nothing matches.
func (r *Registry) GetResourceTemplate(uri string) (TemplatedResource, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tpl := range r.templates {
		prefix := templatePrefix(tpl.Definition().URI)
		if strings.HasPrefix(uri, prefix) {
			return tpl, strings.TrimPrefix(uri, prefix)
		}
	}
	return nil, ""
}

// templatePrefix returns the literal portion of a templated URI before its
// first "{" placeholder, e.g. "resource://project/{slug}" -> "resource://project/".
func templatePrefix(uri string) string {
	if idx := strings.IndexByte(uri, '{'); idx >= 0 {
		return uri[:idx]
	}
	return uri
}

// ListResources returns all registered resource definitions: static ones in
// registration order, then templated ones longest prefix first.
func (r *Registry) ListResources() []ResourceDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ResourceDefinition, 0, len(r.resourceOrder)+len(r.templates))
	for _, uri := range r.resourceOrder {
		defs = append(defs, r.resources[uri].Definition())
	}
	for _, tpl := range r.templates {
		defs = append(defs, tpl.Definition())
	}
	return defs
}

// HasResources returns true if any resources are registered.
func (r *Registry) HasResources() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources) > 0 || len(r.templates) > 0
}
