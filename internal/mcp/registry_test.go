package mcp

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name    string
	cluster Cluster
	caps    []string
}

func (f *fakeTool) Name() string                  { return f.name }
func (f *fakeTool) Description() string           { return "fake" }
func (f *fakeTool) InputSchema() json.RawMessage   { return json.RawMessage(`{}`) }
func (f *fakeTool) Cluster() Cluster               { return f.cluster }
func (f *fakeTool) RequiredCapabilities() []string { return f.caps }
func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*ToolsCallResult, error) {
	return &ToolsCallResult{Content: []ContentBlock{TextContent(f.name)}}, nil
}

type fakeResource struct {
	uri string
}

func (f *fakeResource) Definition() ResourceDefinition {
	return ResourceDefinition{URI: f.uri, Name: f.uri}
}
func (f *fakeResource) Read(params url.Values) (*ResourcesReadResult, error) {
	return &ResourcesReadResult{Contents: []ResourceContent{{URI: f.uri, Text: params.Get("q")}}}, nil
}

func newFilledRegistry() *Registry {
	r := NewRegistry()
	r.Register(&fakeTool{name: "ensure_project", cluster: ClusterInfrastructure})
	r.Register(&fakeTool{name: "register_agent", cluster: ClusterIdentity})
	r.Register(&fakeTool{name: "send_message", cluster: ClusterMessaging})
	r.Register(&fakeTool{name: "search_messages", cluster: ClusterSearch})
	r.Register(&fakeTool{name: "reserve_files", cluster: ClusterFileReservations})
	r.Register(&fakeTool{name: "product_bus_publish", cluster: ClusterProductBus})
	return r
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "dup", cluster: ClusterInfrastructure})
	assert.Panics(t, func() {
		r.Register(&fakeTool{name: "dup", cluster: ClusterInfrastructure})
	})
}

func TestFilterMinimalKeepsOnlyInfrastructureAndIdentity(t *testing.T) {
	r := newFilledRegistry()
	r.Filter(ProfileMinimal, nil)

	names := toolNames(r.List())
	assert.ElementsMatch(t, []string{"ensure_project", "register_agent"}, names)
}

func TestFilterFullKeepsEverything(t *testing.T) {
	r := newFilledRegistry()
	before := len(r.List())
	r.Filter(ProfileFull, nil)
	assert.Equal(t, before, len(r.List()))
}

func TestFilterCustomUsesExplicitClusterList(t *testing.T) {
	r := newFilledRegistry()
	r.Filter(ProfileCustom, []Cluster{ClusterSearch, ClusterProductBus})

	names := toolNames(r.List())
	assert.ElementsMatch(t, []string{"search_messages", "product_bus_publish"}, names)
}

func TestFilterRemovesGetAccess(t *testing.T) {
	r := newFilledRegistry()
	r.Filter(ProfileMinimal, nil)
	require.Nil(t, r.Get("send_message"))
	require.NotNil(t, r.Get("ensure_project"))
}

func TestResourceReadReceivesQueryValues(t *testing.T) {
	r := NewRegistry()
	r.RegisterResource(&fakeResource{uri: "resource://thing"})

	res := r.GetResource("resource://thing")
	require.NotNil(t, res)
	out, err := res.Read(url.Values{"q": []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Contents[0].Text)
}

type fakeTemplatedResource struct {
	uriPrefix string
}

func (f *fakeTemplatedResource) Definition() ResourceDefinition {
	return ResourceDefinition{URI: f.uriPrefix + "{id}", Name: f.uriPrefix}
}
func (f *fakeTemplatedResource) ReadTemplated(pathParam string, query url.Values) (*ResourcesReadResult, error) {
	return &ResourcesReadResult{Contents: []ResourceContent{{URI: f.uriPrefix + pathParam, Text: pathParam}}}, nil
}

func TestGetResourceTemplateMatchesByPrefixAndCapturesPathParam(t *testing.T) {
	r := NewRegistry()
	r.RegisterResourceTemplate(&fakeTemplatedResource{uriPrefix: "resource://agents/"})

	tpl, pathParam := r.GetResourceTemplate("resource://agents/acme")
	require.NotNil(t, tpl)
	assert.Equal(t, "acme", pathParam)

	out, err := tpl.ReadTemplated(pathParam, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, "acme", out.Contents[0].Text)
}

func TestGetResourceTemplatePrefersLongestPrefix(t *testing.T) {
	r := NewRegistry()
	r.RegisterResourceTemplate(&fakeTemplatedResource{uriPrefix: "resource://views/"})
	r.RegisterResourceTemplate(&fakeTemplatedResource{uriPrefix: "resource://views/urgent-unread/"})

	tpl, pathParam := r.GetResourceTemplate("resource://views/urgent-unread/CleverFox")
	require.NotNil(t, tpl)
	assert.Equal(t, "CleverFox", pathParam)
	assert.Equal(t, "resource://views/urgent-unread/", tpl.Definition().URI[:len("resource://views/urgent-unread/")])
}

func TestGetResourceTemplateNoMatchReturnsNil(t *testing.T) {
	r := NewRegistry()
	r.RegisterResourceTemplate(&fakeTemplatedResource{uriPrefix: "resource://agents/"})

	tpl, pathParam := r.GetResourceTemplate("resource://projects")
	assert.Nil(t, tpl)
	assert.Empty(t, pathParam)
}

func TestListResourcesIncludesTemplates(t *testing.T) {
	r := NewRegistry()
	r.RegisterResource(&fakeResource{uri: "resource://thing"})
	r.RegisterResourceTemplate(&fakeTemplatedResource{uriPrefix: "resource://agents/"})

	defs := r.ListResources()
	require.Len(t, defs, 2)
	assert.True(t, r.HasResources())
}

func toolNames(defs []ToolDefinition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}
