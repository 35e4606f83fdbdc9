package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestHTTPServer(sharedToken string) *HTTPServer {
	s := NewServer(NewRegistry(), ServerInfo{Name: "agentmail-mcp-test", Version: "0.0.0"}, testLogger())
	return NewHTTPServer(s, "*", sharedToken, testLogger())
}

func TestAuthenticateAllowsEveryoneWithNoSharedToken(t *testing.T) {
	h := newTestHTTPServer("")
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	assert.True(t, h.authenticate(req))
}

func TestAuthenticateRequiresBearerWhenSharedTokenSet(t *testing.T) {
	h := newTestHTTPServer("s3cret")
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	assert.False(t, h.authenticate(req))
}

func TestAuthenticateAcceptsMatchingBearer(t *testing.T) {
	h := newTestHTTPServer("s3cret")
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.True(t, h.authenticate(req))
}

func TestAuthenticateRejectsWrongBearer(t *testing.T) {
	h := newTestHTTPServer("s3cret")
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.False(t, h.authenticate(req))
}

func TestHandleMCPRejectsUnauthenticatedWithSharedToken(t *testing.T) {
	h := newTestHTTPServer("s3cret")
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.handleMCP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthEndpointAlwaysOK(t *testing.T) {
	h := newTestHTTPServer("s3cret")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
