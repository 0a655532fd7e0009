// Package mcp exposes the flow analyses as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flow-metrics/internal/config"
	"flow-metrics/internal/pipeline"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ServerName is reported to clients during initialization.
const ServerName = "flow-metrics"

// Server holds the settings and source shared by every tool call. The
// reconstructed table is cached until a tool asks for a refresh.
type Server struct {
	settings *config.Settings
	source   pipeline.Source
	clock    func() time.Time

	mu       sync.Mutex
	cached   *pipeline.Result
	cachedAt time.Time
}

// NewServer creates a new MCP server over one source.
func NewServer(settings *config.Settings, source pipeline.Source) *Server {
	return &Server{settings: settings, source: source, clock: time.Now}
}

// Build registers every tool on a fresh SDK server.
func (s *Server) Build(version string) *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: ServerName, Version: version}, nil)
	s.registerTools(srv)
	return srv
}

// Serve runs the server over stdin/stdout until the client disconnects.
func (s *Server) Serve(ctx context.Context, version string) error {
	log.Info().Str("version", version).Msg("Starting MCP server on stdio")
	return s.Build(version).Run(ctx, &sdk.StdioTransport{})
}

// load returns the cached reconstruction, running the pipeline on first
// use or when refresh is set.
func (s *Server) load(ctx context.Context, refresh bool) (*pipeline.Result, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && !refresh {
		return s.cached, s.cachedAt, nil
	}

	now := s.clock().UTC()
	res, err := pipeline.NewSession(s.settings, s.source, now).Run(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	res.Summary.Log()
	s.cached, s.cachedAt = res, now
	return res, now, nil
}

// addTool registers a typed handler with an input schema inferred from In.
func addTool[In, Out any](srv *sdk.Server, name, description string, h sdk.ToolHandlerFor[In, Out]) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("tool %s: %v", name, err))
	}
	sdk.AddTool(srv, &sdk.Tool{Name: name, Description: description, InputSchema: schema}, h)
}
