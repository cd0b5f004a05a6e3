// Package mcp implements the Model Context Protocol server for the
// feedback engine, so MCP-compatible generation agents can pull lesson
// recommendations and report outcomes without linking the Go API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/randysalars/dreamweaving/internal/service/lessons"
	"github.com/randysalars/dreamweaving/internal/service/queries"
	"github.com/randysalars/dreamweaving/internal/service/scoring"
	"github.com/randysalars/dreamweaving/internal/store"
)

// Server wraps the MCP server with the engine's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     *store.Store
	scorer    *scoring.Scorer
	registry  *lessons.Registry
	queries   *queries.Cache
	logger    *slog.Logger

	// delayedCheckDays is the wait before delayed metrics are fetched
	// for outcomes recorded through MCP.
	delayedCheckDays int
}

// New creates and configures an MCP server with all resources and tools.
func New(st *store.Store, scorer *scoring.Scorer, registry *lessons.Registry, qc *queries.Cache, delayedCheckDays int, logger *slog.Logger, version string) *Server {
	s := &Server{
		store:            st,
		scorer:           scorer,
		registry:         registry,
		queries:          qc,
		delayedCheckDays: delayedCheckDays,
		logger:           logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"dreamweave",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// dreamweave://lessons: active lessons with effectiveness scores.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"dreamweave://lessons",
			"Active Lessons",
			mcplib.WithResourceDescription("Active lessons with their effectiveness scores"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleLessonsResource,
	)

	// dreamweave://cycles/latest: the most recent improvement cycle.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"dreamweave://cycles/latest",
			"Latest Improvement Cycle",
			mcplib.WithResourceDescription("Record of the most recent improvement cycle"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleLatestCycle,
	)
}

func (s *Server) handleLessonsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	all, err := s.registry.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("mcp: list lessons: %w", err)
	}
	ranked, err := s.scorer.Ranked(ctx, all, "", "", len(all))
	if err != nil {
		return nil, fmt.Errorf("mcp: rank lessons: %w", err)
	}

	data, err := json.MarshalIndent(ranked, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal lessons: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "dreamweave://lessons",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleLatestCycle(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	cycle, err := s.store.LatestCycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: latest cycle: %w", err)
	}

	data, err := json.MarshalIndent(cycle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal cycle: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "dreamweave://cycles/latest",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
