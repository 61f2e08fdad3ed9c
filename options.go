package mcb

import (
	"log/slog"

	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/internal/config"
)

// clientConfig holds configuration for Client construction. Defaults come
// from internal/config so the library and the CLI agree on them.
type clientConfig struct {
	app      config.AppConfig
	logger   *slog.Logger
	embedder provider.EmbeddingProvider
	store    provider.VectorStoreProvider
	cache    provider.CacheProvider
	fallback []provider.EmbeddingProvider
}

func newClientConfig() *clientConfig {
	return &clientConfig{app: config.NewAppConfig()}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig replaces the whole application config.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) { c.app = cfg }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) { c.app = c.app.WithDataDir(dir) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithEmbeddingConfig selects the embedding provider by config.
func WithEmbeddingConfig(cfg provider.Config) Option {
	return func(c *clientConfig) { c.app = c.app.WithEmbedding(cfg) }
}

// WithVectorStoreConfig selects the vector store by config.
func WithVectorStoreConfig(cfg provider.Config) Option {
	return func(c *clientConfig) { c.app = c.app.WithVectorStore(cfg) }
}

// WithCacheConfig selects the cache backend by config.
func WithCacheConfig(cfg provider.Config) Option {
	return func(c *clientConfig) { c.app = c.app.WithCache(cfg) }
}

// WithEmbeddingProvider injects a constructed embedding provider, bypassing
// the factory. Used by tests and embedders the registry does not know.
func WithEmbeddingProvider(p provider.EmbeddingProvider) Option {
	return func(c *clientConfig) { c.embedder = p }
}

// WithVectorStoreProvider injects a constructed vector store, bypassing the
// factory.
func WithVectorStoreProvider(p provider.VectorStoreProvider) Option {
	return func(c *clientConfig) { c.store = p }
}

// WithCacheProvider injects a constructed cache backend, bypassing the
// factory.
func WithCacheProvider(p provider.CacheProvider) Option {
	return func(c *clientConfig) { c.cache = p }
}

// WithFallbackEmbedders appends failover candidates behind the primary
// embedding provider. They must share the primary's dimensionality.
func WithFallbackEmbedders(providers ...provider.EmbeddingProvider) Option {
	return func(c *clientConfig) { c.fallback = append(c.fallback, providers...) }
}
