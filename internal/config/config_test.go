package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()

	assert.Equal(t, "127.0.0.1:8080", cfg.Server().Addr())
	assert.Equal(t, "ollama", cfg.Embedding().Provider())
	assert.Equal(t, "nomic-embed-text", cfg.Embedding().Model())
	assert.Equal(t, "filesystem", cfg.VectorStore().Provider())
	assert.Equal(t, filepath.Join(cfg.DataDir(), "vectors"), cfg.VectorStore().Path())
	assert.Equal(t, "memory", cfg.Cache().Provider())
	assert.Equal(t, 64, cfg.Indexing().BatchSize())
	assert.InDelta(t, 1.5, cfg.HybridSearch().BM25K1(), 1e-9)
	assert.InDelta(t, 0.75, cfg.HybridSearch().BM25B(), 1e-9)
	assert.InDelta(t, 0.4, cfg.HybridSearch().BM25Weight(), 1e-9)
	assert.InDelta(t, 0.6, cfg.HybridSearch().SemanticWeight(), 1e-9)
	assert.Equal(t, "primary_only", cfg.Resilience().Strategy())
	assert.Equal(t, 30*time.Second, cfg.Resilience().ShutdownTimeout())
	assert.True(t, cfg.Indexing().ClearCacheOnCollectionClear())
	require.NoError(t, cfg.Validate())
}

func TestDefaultDataDir_HonoursXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "mcp-context-browser"), DefaultDataDir())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_AppliesSections(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 0.0.0.0
  port: 9090
data:
  dir: /var/lib/ctx
providers:
  embedding:
    provider: openai
    model: text-embedding-3-small
    api_key: sk-test
    timeout_seconds: 15
  vector_store:
    provider: memory
  cache:
    provider: redis
    address: localhost:6379
indexing:
  batch_size: 32
  excludes:
    - "*.min.js"
    - "generated/"
  debounce_seconds: 5
hybrid_search:
  bm25_weight: 0.3
  semantic_weight: 0.7
  default_limit: 25
security:
  encrypt_metadata: true
logging:
  level: DEBUG
  format: json
resilience:
  strategy: round_robin
  breaker:
    window_size: 4
    failure_threshold: 0.5
    recovery_seconds: 30
  rate_limit:
    backend: distributed
    limit: 50
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server().Addr())
	assert.Equal(t, "/var/lib/ctx", cfg.DataDir())
	assert.Equal(t, "openai", cfg.Embedding().Provider())
	assert.Equal(t, "sk-test", cfg.Embedding().APIKey())
	assert.Equal(t, 15*time.Second, cfg.Embedding().Timeout())
	assert.Equal(t, "memory", cfg.VectorStore().Provider())
	assert.Equal(t, "redis", cfg.Cache().Provider())
	assert.Equal(t, "localhost:6379", cfg.Cache().Address())
	assert.Equal(t, 32, cfg.Indexing().BatchSize())
	assert.Equal(t, []string{"*.min.js", "generated/"}, cfg.Indexing().Excludes())
	assert.Equal(t, 5*time.Second, cfg.Indexing().DebounceInterval())
	assert.InDelta(t, 0.3, cfg.HybridSearch().BM25Weight(), 1e-9)
	assert.Equal(t, 25, cfg.HybridSearch().DefaultLimit())
	assert.True(t, cfg.Security().EncryptMetadata())
	assert.Equal(t, "DEBUG", cfg.Logging().Level())
	assert.Equal(t, LogFormatJSON, cfg.Logging().Format())
	assert.Equal(t, "round_robin", cfg.Resilience().Strategy())
	assert.Equal(t, 4, cfg.Resilience().BreakerWindowSize())
	assert.Equal(t, "distributed", cfg.Resilience().RateLimitBackend())
	assert.Equal(t, int64(50), cfg.Resilience().RateLimit())
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 0.0.0.0
  listen_port: 9090
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_port")
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server().Addr())
}

func TestLoadFile_RejectsUnbalancedWeights(t *testing.T) {
	path := writeConfigFile(t, `
hybrid_search:
  bm25_weight: 0.3
  semantic_weight: 0.3
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

func TestLoadFile_RejectsUnknownStrategy(t *testing.T) {
	path := writeConfigFile(t, `
resilience:
  strategy: quantum
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
providers:
  embedding:
    provider: openai
    model: text-embedding-3-small
`)
	t.Setenv("MCP__SERVER__PORT", "7070")
	t.Setenv("MCP__PROVIDERS__EMBEDDING__API_KEY", "sk-env")
	t.Setenv("MCP__LOGGING__LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server().Port())
	assert.Equal(t, "openai", cfg.Embedding().Provider())
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding().Model())
	assert.Equal(t, "sk-env", cfg.Embedding().APIKey())
	assert.Equal(t, "ERROR", cfg.Logging().Level())
}

func TestEnvConfig_ProviderSwapKeepsSettings(t *testing.T) {
	t.Setenv("MCP__PROVIDERS__EMBEDDING__PROVIDER", "null")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "null", cfg.Embedding().Provider())
	assert.Equal(t, "nomic-embed-text", cfg.Embedding().Model())
}

func TestWithDataDir_MovesDefaultVectorPath(t *testing.T) {
	cfg := NewAppConfig().WithDataDir("/srv/ctx")
	assert.Equal(t, filepath.Join("/srv/ctx", "vectors"), cfg.VectorStore().Path())

	pinned := NewAppConfig().
		WithVectorStore(NewAppConfig().VectorStore().WithPath("/pinned")).
		WithDataDir("/srv/ctx")
	assert.Equal(t, "/pinned", pinned.VectorStore().Path())
}

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, LogFormatJSON, ParseLogFormat("JSON"))
	assert.Equal(t, LogFormatPretty, ParseLogFormat("pretty"))
	assert.Equal(t, LogFormatPretty, ParseLogFormat(""))
}

func TestWriteHistory(t *testing.T) {
	cfg := NewAppConfig().WithDataDir(t.TempDir())
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	path, err := WriteHistory(cfg, at)
	require.NoError(t, err)
	assert.Equal(t, cfg.HistoryDir(), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"embedding_provider": "ollama"`)
	assert.NotContains(t, string(data), "api_key\"")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MCP__DOTENV_PROBE=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MCP__DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("MCP__DOTENV_PROBE"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
