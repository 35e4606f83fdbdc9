package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
	"github.com/agentmail/agentmail-mcp/internal/format"
)

// Server implements the MCP protocol over stdio.
type Server struct {
	registry      *Registry
	info          ServerInfo
	logger        *slog.Logger
	defaultFormat format.OutputFormat
	metrics       *Metrics
	activity      *Activity
}

// NewServer creates an MCP server with the given registry and server info.
// Output format defaults to JSON; set DefaultFormat to change it. A fresh
// Metrics registry backs resource://tooling/metrics — register
// NewMetricsResource(server.metrics) as a resource to expose it. A fresh
// Activity ring buffer backs resource://tooling/recent/{window_seconds} the
// same way.
func NewServer(registry *Registry, info ServerInfo, logger *slog.Logger) *Server {
	return &Server{
		registry:      registry,
		info:          info,
		logger:        logger,
		defaultFormat: format.FormatJSON,
		metrics:       NewMetrics(),
		activity:      NewActivity(),
	}
}

// Metrics returns the server's metrics registry, for registering
// resource://tooling/metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Activity returns the server's recent-activity ring buffer, for
// registering resource://tooling/recent/{window_seconds}.
func (s *Server) Activity() *Activity {
	return s.activity
}

// SetDefaultFormat overrides the output format tools fall back to when a
// call doesn't specify one (config's mcp.default_format).
func (s *Server) SetDefaultFormat(f format.OutputFormat) {
	s.defaultFormat = f
}

// Run reads JSON-RPC requests from stdin and writes responses to stdout.
// It blocks until stdin is closed or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	// MCP messages can be large (e.g. sync results)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	s.logger.Info("specmcp server started", "name", s.info.Name, "version", s.info.Version)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.HandleMessage(ctx, line)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to write response", "error", err)
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("reading stdin: %w", err)
	}

	s.logger.Info("specmcp server stopped (stdin closed)")
	return nil
}

// HandleMessage parses a JSON-RPC request and dispatches to the appropriate
// handler. Exported so transports other than Run's stdio loop (the HTTP
// transport in http.go) can feed it individual messages directly.
func (s *Server) HandleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Error("failed to parse request", "error", err)
		return &Response{
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    ErrCodeParse,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	// Notifications (no ID) don't get a response
	if req.ID == nil && req.Method == "notifications/initialized" {
		s.logger.Info("client initialized")
		return nil
	}
	if req.ID == nil {
		s.logger.Debug("received notification", "method", req.Method)
		return nil
	}

	s.logger.Debug("handling request", "method", req.Method, "id", string(req.ID))

	result, rpcErr := s.dispatch(ctx, &req)
	resp := &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

// dispatch routes a request to the appropriate handler method.
func (s *Server) dispatch(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.Params)
	case "tools/list":
		return s.handleToolsList()
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "prompts/list":
		return s.handlePromptsList()
	case "prompts/get":
		return s.handlePromptsGet(req.Params)
	case "resources/list":
		return s.handleResourcesList()
	case "resources/read":
		return s.handleResourcesRead(req.Params)
	default:
		return nil, &RPCError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
	}
}

// handleInitialize responds to the MCP handshake.
func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &RPCError{
				Code:    ErrCodeInvalidParams,
				Message: "Invalid initialize params",
				Data:    err.Error(),
			}
		}
	}

	s.logger.Info("client connecting",
		"client", initParams.ClientInfo.Name,
		"client_version", initParams.ClientInfo.Version,
		"protocol_version", initParams.ProtocolVersion,
	)

	caps := ServerCapability{
		Tools: &ToolsCapability{},
	}
	if s.registry.HasPrompts() {
		caps.Prompts = &PromptsCapability{}
	}
	if s.registry.HasResources() {
		caps.Resources = &ResourcesCapability{}
	}

	return &InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities:    caps,
		ServerInfo:      s.info,
	}, nil
}

// handleToolsList returns all registered tools.
func (s *Server) handleToolsList() (any, *RPCError) {
	return &ToolsListResult{
		Tools: s.registry.List(),
	}, nil
}

// handleToolsCall dispatches a tool call to the registry.
func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var callParams ToolsCallParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &RPCError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid tools/call params",
			Data:    err.Error(),
		}
	}

	tool := s.registry.Get(callParams.Name)
	if tool == nil {
		return nil, &RPCError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("tool not found: %s", callParams.Name),
		}
	}

	f, ferr := FormatFromArgs(callParams.Arguments, s.defaultFormat)
	if ferr != nil {
		return nil, &RPCError{
			Code:    ErrCodeInvalidParams,
			Message: ferr.Error(),
		}
	}

	if capErr := checkCapabilities(ctx, tool.RequiredCapabilities()); capErr != nil {
		return RespondError(capErr, f), nil
	}

	s.logger.Info("calling tool", "tool", callParams.Name, "cluster", tool.Cluster())

	start := time.Now()
	result, err := executeWithEMFILERetry(ctx, tool, callParams.Arguments)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		s.logger.Error("tool execution failed", "tool", callParams.Name, "error", err)
		errType := errorTypeOf(err)
		s.metrics.ObserveCall(callParams.Name, errType, elapsed)
		s.activity.Record(callParams.Name, string(tool.Cluster()), errType, time.Now().UTC())
		return RespondError(err, f), nil
	}

	s.metrics.ObserveCall(callParams.Name, "", elapsed)
	s.activity.Record(callParams.Name, string(tool.Cluster()), "", time.Now().UTC())
	return result, nil
}

// errorTypeOf returns the apperr.Code string for err, or UNHANDLED_EXCEPTION
// for an error that was never tagged — same mapping RespondError uses, so
// the metrics resource and the error envelope always agree.
func errorTypeOf(err error) string {
	return string(apperr.As(err).Code)
}

// executeWithEMFILERetry retries a tool call a handful of times on EMFILE
// (process out of file descriptors) — transient under concurrent archive
// commits — with a short linear backoff. Any other error, or exhausting the
// retries, is returned unchanged.
func executeWithEMFILERetry(ctx context.Context, tool Tool, args json.RawMessage) (*ToolsCallResult, error) {
	const maxAttempts = 3
	var result *ToolsCallResult
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = tool.Execute(ctx, args)
		if err == nil || !errors.Is(err, syscall.EMFILE) {
			return result, err
		}
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
	}
	return result, err
}

// handlePromptsList returns all registered prompts.
func (s *Server) handlePromptsList() (any, *RPCError) {
	return &PromptsListResult{
		Prompts: s.registry.ListPrompts(),
	}, nil
}

// handlePromptsGet returns a specific prompt by name.
func (s *Server) handlePromptsGet(params json.RawMessage) (any, *RPCError) {
	var getParams PromptsGetParams
	if err := json.Unmarshal(params, &getParams); err != nil {
		return nil, &RPCError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid prompts/get params",
			Data:    err.Error(),
		}
	}

	prompt := s.registry.GetPrompt(getParams.Name)
	if prompt == nil {
		return nil, &RPCError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("prompt not found: %s", getParams.Name),
		}
	}

	s.logger.Debug("getting prompt", "prompt", getParams.Name)

	result, err := prompt.Get(getParams.Arguments)
	if err != nil {
		return nil, &RPCError{
			Code:    ErrCodeInternal,
			Message: fmt.Sprintf("prompt error: %v", err),
		}
	}

	return result, nil
}

// handleResourcesList returns all registered resources.
func (s *Server) handleResourcesList() (any, *RPCError) {
	return &ResourcesListResult{
		Resources: s.registry.ListResources(),
	}, nil
}

// handleResourcesRead returns the content of a specific resource. The
// requested URI may carry a query string (resource://thread/42?project=acme);
// it is split into the base URI used for registry lookup and the decoded
// query values handed to the resource.
func (s *Server) handleResourcesRead(params json.RawMessage) (any, *RPCError) {
	var readParams ResourcesReadParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, &RPCError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid resources/read params",
			Data:    err.Error(),
		}
	}

	baseURI, query, err := splitResourceURI(readParams.URI)
	if err != nil {
		return nil, &RPCError{
			Code:    ErrCodeInvalidParams,
			Message: fmt.Sprintf("invalid resource URI: %v", err),
		}
	}

	if resource := s.registry.GetResource(baseURI); resource != nil {
		s.logger.Debug("reading resource", "uri", baseURI)
		result, readErr := resource.Read(query)
		if readErr != nil {
			return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("resource read error: %v", readErr)}
		}
		return result, nil
	}

	if tpl, pathParam := s.registry.GetResourceTemplate(baseURI); tpl != nil {
		s.logger.Debug("reading templated resource", "uri", baseURI, "path_param", pathParam)
		result, readErr := tpl.ReadTemplated(pathParam, query)
		if readErr != nil {
			return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("resource read error: %v", readErr)}
		}
		return result, nil
	}

	return nil, &RPCError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("resource not found: %s", baseURI),
	}
}

// splitResourceURI separates a resource URI's base (used for registry
// lookup) from its query string (decoded into url.Values for the resource).
func splitResourceURI(raw string) (string, url.Values, error) {
	base, query, found := strings.Cut(raw, "?")
	if !found {
		return raw, url.Values{}, nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", nil, err
	}
	return base, values, nil
}
