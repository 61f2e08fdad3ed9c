package mcb_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcb "github.com/mcb/mcp-context-browser"
	"github.com/mcb/mcp-context-browser/domain/search"
	"github.com/mcb/mcp-context-browser/infrastructure/cache"
	infraprovider "github.com/mcb/mcp-context-browser/infrastructure/provider"
	"github.com/mcb/mcp-context-browser/infrastructure/vectorstore"
	"github.com/mcb/mcp-context-browser/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestCodebase writes a small multi-language source tree and returns
// its root.
func createTestCodebase(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "codebase")
	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	goCode := `package main

// Add adds two numbers and returns the result.
func Add(a, b int) int {
	return a + b
}

// Subtract subtracts b from a and returns the result.
func Subtract(a, b int) int {
	return a - b
}

func main() {
	println(Add(1, 2))
}
`
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "main.go"), []byte(goCode), 0o644))

	pythonCode := `"""Calculator module with basic operations."""

def multiply(a, b):
    """Multiply two numbers."""
    return a * b

def divide(a, b):
    """Divide a by b."""
    if b == 0:
        raise ValueError("Cannot divide by zero")
    return a / b
`
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "calculator.py"), []byte(pythonCode), 0o644))

	return root
}

// newInvalidConfig builds a config with fusion weights that do not sum
// to 1.
func newInvalidConfig() config.AppConfig {
	return config.NewAppConfig().
		WithHybridSearch(config.NewHybridSearchConfig().WithWeights(0.3, 0.3))
}

// newTestClient wires a fully offline client. Custom options apply first so
// the in-memory providers and temp data dir always win.
func newTestClient(t *testing.T, opts ...mcb.Option) *mcb.Client {
	t.Helper()

	base := []mcb.Option{
		mcb.WithDataDir(filepath.Join(t.TempDir(), "data")),
		mcb.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		mcb.WithEmbeddingProvider(infraprovider.NewNullProvider()),
		mcb.WithVectorStoreProvider(vectorstore.NewMemoryStore()),
		mcb.WithCacheProvider(cache.NewMemoryCache()),
	}
	client, err := mcb.New(append(opts, base...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_IndexAndSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newTestClient(t)
	root := createTestCodebase(t)
	ctx := context.Background()

	stats, err := client.Indexing.IndexCodebase(ctx, root, "calc")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Greater(t, stats.TotalChunks, 0)

	results, err := client.Search.Query(ctx, search.NewQuery("subtract numbers", 5, "calc"))
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content(), "Subtract")
	assert.Greater(t, results[0].Score(), 0.0)
}

func TestIntegration_SearchScopedToCollection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newTestClient(t)
	root := createTestCodebase(t)
	ctx := context.Background()

	_, err := client.Indexing.IndexCodebase(ctx, root, "calc")
	require.NoError(t, err)

	results, err := client.Search.Query(ctx, search.NewQuery("multiply", 5, "other"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIntegration_ClearCollection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newTestClient(t)
	root := createTestCodebase(t)
	ctx := context.Background()

	_, err := client.Indexing.IndexCodebase(ctx, root, "calc")
	require.NoError(t, err)
	require.NoError(t, client.Indexing.ClearCollection(ctx, "calc"))

	results, err := client.Search.Query(ctx, search.NewQuery("divide", 5, "calc"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIntegration_SyncDetectsChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	cfg := config.NewAppConfig().
		WithIndexing(config.NewIndexingConfig().WithDebounceInterval(time.Nanosecond))
	client := newTestClient(t, mcb.WithConfig(cfg))
	root := createTestCodebase(t)
	ctx := context.Background()

	first, err := client.Sync.Run(ctx, root, "calc")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)

	extra := filepath.Join(root, "src", "extra.go")
	require.NoError(t, os.WriteFile(extra, []byte("package main\n\nfunc Extra() int { return 42 }\n"), 0o644))

	second, err := client.Sync.Run(ctx, root, "calc")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Added)
	assert.Equal(t, 0, second.Removed)

	require.NoError(t, os.Remove(extra))
	third, err := client.Sync.Run(ctx, root, "calc")
	require.NoError(t, err)
	assert.Equal(t, 1, third.Removed)
}

func TestIntegration_StatusReportsProviders(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newTestClient(t)
	root := createTestCodebase(t)
	ctx := context.Background()

	_, err := client.Indexing.IndexCodebase(ctx, root, "calc")
	require.NoError(t, err)

	report := client.Status.Report(ctx, "calc")
	assert.NotEmpty(t, report.Uptime)
	assert.Greater(t, report.Indexing.FilesIndexed, uint64(0))

	ids := make([]string, 0, len(report.Providers))
	for _, p := range report.Providers {
		ids = append(ids, p.ProviderID)
	}
	assert.Contains(t, ids, "embedding:null")
	assert.Contains(t, ids, "vectorstore:memory")
	assert.Contains(t, ids, "cache:memory")
}

func TestIntegration_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestIntegration_RoutingMetrics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	client := newTestClient(t)
	root := createTestCodebase(t)
	ctx := context.Background()

	_, err := client.Indexing.IndexCodebase(ctx, root, "calc")
	require.NoError(t, err)

	metrics := client.RoutingMetrics()
	assert.Contains(t, metrics, "router")
	assert.Contains(t, metrics, "breakers")
	assert.Contains(t, metrics, "events_dropped")
}

func TestIntegration_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := mcb.WithConfig(newInvalidConfig())
	_, err := mcb.New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}
