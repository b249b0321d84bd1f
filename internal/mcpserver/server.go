// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Keel tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/classifier"
	"github.com/fairlie/keel/internal/contract"
	"github.com/fairlie/keel/internal/jobservice"
)

// Server wraps the MCP server with Keel tools.
type Server struct {
	mcp *server.MCPServer
	svc *jobservice.Service
}

// New creates a new MCP server with all Keel tools registered.
func New(svc *jobservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Keel",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_source",
		mcp.WithDescription("Scan a frontend source tree and return its UI contract: framework, "+
			"entities, env vars, API client files, and endpoint call sites. The contract follows "+
			"the format described by the get_contract_format tool and the "+
			"keel://ui-contract-format resource."),
		mcp.WithString("source_path", mcp.Required(), mcp.Description("Absolute path to the checked-out source tree")),
		mcp.WithString("source_repo_url", mcp.Description("Optional repository URL recorded in the contract")),
		mcp.WithString("out_path", mcp.Description("Optional file path; when set, the contract JSON is also written there")),
	), s.scanSource)

	s.mcp.AddTool(mcp.NewTool("plan_storage",
		mcp.WithDescription("Scan a source tree and classify its entities into postgres and mongo "+
			"stores. Returns a storage plan with a human-readable reason per entity."),
		mcp.WithString("source_path", mcp.Required(), mcp.Description("Absolute path to the checked-out source tree")),
		mcp.WithString("mode", mcp.Description("Target mode: postgres, mongo, or hybrid (default hybrid)")),
		mcp.WithString("strategy", mcp.Description("Hybrid strategy: docToMongo (default) or postgresJsonbFirst")),
		mcp.WithString("mongo_entities", mcp.Description("Comma-separated entity names forced to the mongo store")),
		mcp.WithString("postgres_entities", mcp.Description("Comma-separated entity names forced to the postgres store")),
	), s.planStorage)

	s.mcp.AddTool(mcp.NewTool("get_contract_format",
		mcp.WithDescription("Returns the canonical UI contract format that scan_source produces. "+
			"Call this before consuming contracts to understand the fields."),
	), s.getContractFormat)

	// Resource: UI contract format.
	s.mcp.AddResource(
		mcp.NewResource("keel://ui-contract-format", "UI Contract Format",
			mcp.WithResourceDescription("Canonical JSON document the scanner produces for a frontend source tree."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) scanSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourcePath, err := req.RequireString("source_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	repoURL := ""
	if v, uErr := req.RequireString("source_repo_url"); uErr == nil {
		repoURL = v
	}

	c, err := s.svc.Scan(ctx, sourcePath, repoURL)
	if err != nil && !errors.Is(err, apperr.ErrNoFindings) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// An empty tree still has a contract; its notes explain the gaps.
	out, _ := json.MarshalIndent(c, "", "  ")

	if outPath, pErr := req.RequireString("out_path"); pErr == nil && outPath != "" {
		if wErr := os.WriteFile(outPath, append(out, '\n'), 0o644); wErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("write %s: %v", outPath, wErr)), nil
		}
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) planStorage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourcePath, err := req.RequireString("source_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := classifier.Options{}
	if v, mErr := req.RequireString("mode"); mErr == nil && v != "" {
		switch v {
		case contract.ModePostgres, contract.ModeMongo, contract.ModeHybrid:
			opts.Mode = v
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown mode: %s", v)), nil
		}
	}
	if v, sErr := req.RequireString("strategy"); sErr == nil {
		opts.Strategy = v
	}
	if v, lErr := req.RequireString("mongo_entities"); lErr == nil {
		opts.MongoEntities = splitNames(v)
	}
	if v, lErr := req.RequireString("postgres_entities"); lErr == nil {
		opts.PostgresEntities = splitNames(v)
	}

	c, err := s.svc.Scan(ctx, sourcePath, "")
	if err != nil && !errors.Is(err, apperr.ErrNoFindings) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plan, err := s.svc.Plan(ctx, c.Entities, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(plan, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getContractFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(UIContractFormat), nil
}

func (s *Server) readContractFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "keel://ui-contract-format",
			MIMEType: "text/markdown",
			Text:     UIContractFormat,
		},
	}, nil
}

// splitNames parses a comma-separated name list, dropping empty parts.
func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}
