package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/application/service"
	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/search"
	"github.com/mcb/mcp-context-browser/infrastructure/resilience"
)

type fakeIndexer struct {
	indexedRoot       string
	indexedCollection string
	cleared           []string
	err               error
}

func (f *fakeIndexer) IndexCodebase(_ context.Context, root, collection string) (service.IndexingStats, error) {
	if f.err != nil {
		return service.IndexingStats{}, f.err
	}
	f.indexedRoot = root
	f.indexedCollection = collection
	return service.IndexingStats{TotalFiles: 3, IndexedFiles: 3, TotalChunks: 12}, nil
}

func (f *fakeIndexer) ClearCollection(_ context.Context, collection string) error {
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, collection)
	return nil
}

type fakeSearcher struct {
	lastQuery search.Query
	results   []search.Result
	err       error
}

func (f *fakeSearcher) Query(_ context.Context, query search.Query) ([]search.Result, error) {
	f.lastQuery = query
	return f.results, f.err
}

type fakeStatus struct{}

func (fakeStatus) Report(_ context.Context, _ ...string) service.StatusReport {
	return service.StatusReport{Uptime: "5s"}
}

// callTool drives the server through its JSON-RPC entry point the way a
// transport would.
func callTool(t *testing.T, srv *Server, tool string, args map[string]any) mcp.CallToolResult {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      tool,
			"arguments": args,
		},
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	result := srv.MCPServer().HandleMessage(context.Background(), raw)
	resp, ok := result.(mcp.JSONRPCResponse)
	require.True(t, ok, "expected JSONRPCResponse, got %T: %+v", result, result)

	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var callResult mcp.CallToolResult
	require.NoError(t, json.Unmarshal(encoded, &callResult))
	return callResult
}

// toolText extracts the text of the first content item. It round-trips
// through JSON because in-process responses may hold the content as a map
// rather than a typed struct.
func toolText(t *testing.T, result mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	encoded, err := json.Marshal(result.Content[0])
	require.NoError(t, err)
	var tc struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(encoded, &tc))
	return tc.Text
}

func TestServer_ListsAllTools(t *testing.T) {
	srv := NewServer(&fakeIndexer{}, &fakeSearcher{}, fakeStatus{}, nil, "test", nil)

	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result := srv.MCPServer().HandleMessage(context.Background(), raw)
	resp, ok := result.(mcp.JSONRPCResponse)
	require.True(t, ok)

	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var listed mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(encoded, &listed))

	names := make([]string, len(listed.Tools))
	for i, tool := range listed.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{"index_codebase", "search_code", "clear_index", "get_indexing_status"}, names)
}

func TestServer_IndexCodebase(t *testing.T) {
	indexer := &fakeIndexer{}
	srv := NewServer(indexer, &fakeSearcher{}, fakeStatus{}, nil, "test", nil)

	result := callTool(t, srv, "index_codebase", map[string]any{"path": "/src/repo"})

	assert.False(t, result.IsError)
	assert.Equal(t, "/src/repo", indexer.indexedRoot)
	assert.Equal(t, DefaultCollection, indexer.indexedCollection)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &payload))
	assert.Equal(t, "default", payload["collection"])
	assert.Equal(t, float64(12), payload["total_chunks"])
}

func TestServer_IndexCodebaseRequiresPath(t *testing.T) {
	srv := NewServer(&fakeIndexer{}, &fakeSearcher{}, fakeStatus{}, nil, "test", nil)

	result := callTool(t, srv, "index_codebase", map[string]any{})
	assert.True(t, result.IsError)
}

func TestServer_SearchCode(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		search.NewResult("auth.go:10", "func AuthenticateUser() {}", "auth.go", 10, 0.91, chunk.LanguageGo),
	}}
	srv := NewServer(&fakeIndexer{}, searcher, fakeStatus{}, nil, "test", nil)

	result := callTool(t, srv, "search_code", map[string]any{
		"query":      "authenticate user",
		"limit":      5,
		"collection": "repo",
	})

	assert.False(t, result.IsError)
	assert.Equal(t, "authenticate user", searcher.lastQuery.Text())
	assert.Equal(t, 5, searcher.lastQuery.Limit())
	assert.Equal(t, "repo", searcher.lastQuery.Collection())

	var hits []map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "auth.go:10", hits[0]["id"])
	assert.Equal(t, "auth.go", hits[0]["file_path"])
	assert.Equal(t, float64(10), hits[0]["start_line"])
	assert.Equal(t, "go", hits[0]["language"])
}

func TestServer_SearchCodeDefaults(t *testing.T) {
	searcher := &fakeSearcher{}
	srv := NewServer(&fakeIndexer{}, searcher, fakeStatus{}, nil, "test", nil)

	result := callTool(t, srv, "search_code", map[string]any{"query": "parse config"})

	assert.False(t, result.IsError)
	assert.Equal(t, search.DefaultLimit, searcher.lastQuery.Limit())
	assert.Equal(t, DefaultCollection, searcher.lastQuery.Collection())
}

func TestServer_ErrorsCarryStableCodes(t *testing.T) {
	searcher := &fakeSearcher{err: errs.New(errs.KindEmbedding, "provider unavailable")}
	srv := NewServer(&fakeIndexer{}, searcher, fakeStatus{}, nil, "test", nil)

	result := callTool(t, srv, "search_code", map[string]any{"query": "anything"})

	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "embedding:")
}

func TestServer_ClearIndex(t *testing.T) {
	indexer := &fakeIndexer{}
	srv := NewServer(indexer, &fakeSearcher{}, fakeStatus{}, nil, "test", nil)

	result := callTool(t, srv, "clear_index", map[string]any{"collection": "repo"})

	assert.False(t, result.IsError)
	assert.Equal(t, []string{"repo"}, indexer.cleared)

	missing := callTool(t, srv, "clear_index", map[string]any{})
	assert.True(t, missing.IsError)
}

func TestServer_IndexingStatus(t *testing.T) {
	srv := NewServer(&fakeIndexer{}, &fakeSearcher{}, fakeStatus{}, nil, "test", nil)

	result := callTool(t, srv, "get_indexing_status", map[string]any{})

	assert.False(t, result.IsError)
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &report))
	assert.Equal(t, "5s", report["uptime"])
}

func TestServer_RateLimitsToolCalls(t *testing.T) {
	limiter := resilience.NewLocalRateLimiter(1, time.Minute)
	srv := NewServer(&fakeIndexer{}, &fakeSearcher{}, fakeStatus{}, limiter, "test", nil)

	first := callTool(t, srv, "search_code", map[string]any{"query": "one"})
	assert.False(t, first.IsError)

	second := callTool(t, srv, "search_code", map[string]any{"query": "two"})
	assert.True(t, second.IsError)
	assert.Contains(t, toolText(t, second), "rate_limited")
}
