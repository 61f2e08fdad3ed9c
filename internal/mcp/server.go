// Package mcp exposes the search engine over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcb/mcp-context-browser/application/service"
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/search"
	"github.com/mcb/mcp-context-browser/infrastructure/resilience"
)

// DefaultCollection receives chunks when a tool call omits the collection.
const DefaultCollection = "default"

// Indexer provides the indexing operations behind the protocol tools.
type Indexer interface {
	IndexCodebase(ctx context.Context, root, collection string) (service.IndexingStats, error)
	ClearCollection(ctx context.Context, collection string) error
}

// Searcher provides hybrid code search for the protocol tools.
type Searcher interface {
	Query(ctx context.Context, query search.Query) ([]search.Result, error)
}

// StatusReporter provides the aggregated state report.
type StatusReporter interface {
	Report(ctx context.Context, collections ...string) service.StatusReport
}

// Server wraps the MCP server with the code-search tools.
type Server struct {
	mcpServer *server.MCPServer
	indexer   Indexer
	searcher  Searcher
	status    StatusReporter
	limiter   resilience.RateLimiter
	logger    *slog.Logger
}

// NewServer creates an MCP server exposing index_codebase, search_code,
// clear_index, and get_indexing_status. limiter may be nil to disable
// per-tool rate limiting.
func NewServer(indexer Indexer, searcher Searcher, status StatusReporter, limiter resilience.RateLimiter, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		indexer:  indexer,
		searcher: searcher,
		status:   status,
		limiter:  limiter,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"mcp-context-browser",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	indexTool := mcp.NewTool("index_codebase",
		mcp.WithDescription("Index a source tree for hybrid code search"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Root directory of the codebase to index"),
		),
		mcp.WithString("collection",
			mcp.Description("Collection to index into (default: \"default\")"),
		),
	)
	mcpServer.AddTool(indexTool, s.handleIndexCodebase)

	searchTool := mcp.NewTool("search_code",
		mcp.WithDescription("Search indexed code using combined BM25 and semantic ranking"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default: 10)"),
		),
		mcp.WithString("collection",
			mcp.Description("Collection to search (default: \"default\")"),
		),
	)
	mcpServer.AddTool(searchTool, s.handleSearchCode)

	clearTool := mcp.NewTool("clear_index",
		mcp.WithDescription("Remove a collection from the vector store and lexical index"),
		mcp.WithString("collection",
			mcp.Required(),
			mcp.Description("Collection to clear"),
		),
	)
	mcpServer.AddTool(clearTool, s.handleClearIndex)

	statusTool := mcp.NewTool("get_indexing_status",
		mcp.WithDescription("Report indexing counters, sync state, and provider health"),
	)
	mcpServer.AddTool(statusTool, s.handleIndexingStatus)
}

// checkRate consumes one rate limit token for the tool. A disallowed call
// returns a non-nil tool result carrying the rate_limited code.
func (s *Server) checkRate(ctx context.Context, tool string) *mcp.CallToolResult {
	if s.limiter == nil {
		return nil
	}
	result, err := s.limiter.Check(ctx, "mcp:"+tool)
	if err != nil {
		s.logger.Warn("rate limit check failed",
			slog.String("tool", tool),
			slog.String("error", err.Error()))
		return nil
	}
	if !result.Allowed {
		return toolError(errs.Newf(errs.KindRateLimited,
			"rate limit exceeded for %s, retry in %ds", tool, result.ResetInSeconds))
	}
	return nil
}

// toolError renders an error as a stable code plus message. Internal detail
// stays on the server side of the boundary.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", errs.Code(err), err.Error()))
}

func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := s.checkRate(ctx, "index_codebase"); denied != nil {
		return denied, nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path is required"), nil
	}
	collection := request.GetString("collection", DefaultCollection)

	stats, err := s.indexer.IndexCodebase(ctx, path, collection)
	if err != nil {
		s.logger.Error("index_codebase failed",
			slog.String("path", path),
			slog.String("collection", collection),
			slog.String("error", err.Error()))
		return toolError(err), nil
	}

	payload := struct {
		Collection string `json:"collection"`
		service.IndexingStats
	}{Collection: collection, IndexingStats: stats}
	return toolResult(payload)
}

func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := s.checkRate(ctx, "search_code"); denied != nil {
		return denied, nil
	}
	text, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := request.GetInt("limit", search.DefaultLimit)
	collection := request.GetString("collection", DefaultCollection)

	results, err := s.searcher.Query(ctx, search.NewQuery(text, limit, collection))
	if err != nil {
		s.logger.Error("search_code failed",
			slog.String("collection", collection),
			slog.String("error", err.Error()))
		return toolError(err), nil
	}

	type searchHit struct {
		ID        string  `json:"id"`
		FilePath  string  `json:"file_path"`
		StartLine int     `json:"start_line"`
		Language  string  `json:"language"`
		Score     float64 `json:"score"`
		Content   string  `json:"content"`
	}
	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{
			ID:        r.ID(),
			FilePath:  r.FilePath(),
			StartLine: r.StartLine(),
			Language:  r.Language().String(),
			Score:     r.Score(),
			Content:   r.Content(),
		}
	}
	return toolResult(hits)
}

func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := s.checkRate(ctx, "clear_index"); denied != nil {
		return denied, nil
	}
	collection, err := request.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError("collection is required"), nil
	}

	if err := s.indexer.ClearCollection(ctx, collection); err != nil {
		s.logger.Error("clear_index failed",
			slog.String("collection", collection),
			slog.String("error", err.Error()))
		return toolError(err), nil
	}
	return toolResult(map[string]string{"collection": collection, "state": "cleared"})
}

func (s *Server) handleIndexingStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := s.checkRate(ctx, "get_indexing_status"); denied != nil {
		return denied, nil
	}
	return toolResult(s.status.Report(ctx))
}

func toolResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// MCPServer returns the underlying server for transport wiring.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the protocol server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns a streamable HTTP transport for the protocol server.
// The handler streams responses after writing headers, which is incompatible
// with timeout middleware; mount it outside any Timeout group.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}
