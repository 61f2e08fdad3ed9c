// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcb/mcp-context-browser/domain/provider"
)

// Default configuration values.
const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8080
	DefaultLogLevel = "INFO"

	DefaultEmbeddingProvider   = "ollama"
	DefaultEmbeddingModel      = "nomic-embed-text"
	DefaultVectorStoreProvider = "filesystem"
	DefaultCacheProvider       = "memory"

	DefaultBatchSize      = 64
	DefaultMinChunkLength = 10
	DefaultMaxFileSize    = 1 << 20

	DefaultBM25K1         = 1.5
	DefaultBM25B          = 0.75
	DefaultBM25Weight     = 0.4
	DefaultSemanticWeight = 0.6
	DefaultSearchLimit    = 10

	DefaultKeyID = "default"

	DefaultBreakerWindowSize       = 20
	DefaultBreakerFailureThreshold = 0.5
	DefaultBreakerRecovery         = 30 * time.Second
	DefaultBreakerHalfOpenRequests = 1

	DefaultProbeInterval          = 10 * time.Second
	DefaultProbeTimeout           = 5 * time.Second
	DefaultHealthFailureThreshold = 3

	DefaultRateLimitBackend = "local"
	DefaultRateLimit        = 120
	DefaultRateWindow       = time.Minute

	DefaultEventBusCapacity = 100
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultDebounceInterval = 60 * time.Second
	DefaultWatchSettle      = 2 * time.Second
)

// LogFormat is the log output format.
type LogFormat string

// Supported log formats.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// ParseLogFormat maps a format string onto a LogFormat, defaulting to pretty.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, string(LogFormatJSON)) {
		return LogFormatJSON
	}
	return LogFormatPretty
}

// ServerConfig configures the admin HTTP listener.
type ServerConfig struct {
	host string
	port int
}

// NewServerConfig creates a ServerConfig with defaults.
func NewServerConfig() ServerConfig {
	return ServerConfig{host: DefaultHost, port: DefaultPort}
}

// Host returns the host to bind to.
func (s ServerConfig) Host() string { return s.host }

// Port returns the port to listen on.
func (s ServerConfig) Port() int { return s.port }

// Addr returns the combined host:port address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.host, s.port) }

// WithHost returns a copy with the host set.
func (s ServerConfig) WithHost(host string) ServerConfig {
	if host != "" {
		s.host = host
	}
	return s
}

// WithPort returns a copy with the port set.
func (s ServerConfig) WithPort(port int) ServerConfig {
	if port > 0 {
		s.port = port
	}
	return s
}

// IndexingConfig configures discovery, chunking, and sync.
type IndexingConfig struct {
	batchSize                   int
	minChunkLength              int
	maxFileSize                 int64
	excludes                    []string
	debounceInterval            time.Duration
	watchSettle                 time.Duration
	clearCacheOnCollectionClear bool
}

// NewIndexingConfig creates an IndexingConfig with defaults.
func NewIndexingConfig() IndexingConfig {
	return IndexingConfig{
		batchSize:                   DefaultBatchSize,
		minChunkLength:              DefaultMinChunkLength,
		maxFileSize:                 DefaultMaxFileSize,
		debounceInterval:            DefaultDebounceInterval,
		watchSettle:                 DefaultWatchSettle,
		clearCacheOnCollectionClear: true,
	}
}

// BatchSize returns the number of chunks per indexing batch.
func (c IndexingConfig) BatchSize() int { return c.batchSize }

// MinChunkLength returns the merge threshold in lines.
func (c IndexingConfig) MinChunkLength() int { return c.minChunkLength }

// MaxFileSize returns the discovery size cutoff in bytes.
func (c IndexingConfig) MaxFileSize() int64 { return c.maxFileSize }

// Excludes returns the discovery exclusion patterns.
func (c IndexingConfig) Excludes() []string {
	out := make([]string, len(c.excludes))
	copy(out, c.excludes)
	return out
}

// DebounceInterval returns the minimum interval between syncs of one path.
func (c IndexingConfig) DebounceInterval() time.Duration { return c.debounceInterval }

// WatchSettle returns how long the watcher waits for events to settle.
func (c IndexingConfig) WatchSettle() time.Duration { return c.watchSettle }

// ClearCacheOnCollectionClear returns whether clearing a collection also
// drops its cache namespaces.
func (c IndexingConfig) ClearCacheOnCollectionClear() bool { return c.clearCacheOnCollectionClear }

// WithBatchSize returns a copy with the batch size set.
func (c IndexingConfig) WithBatchSize(n int) IndexingConfig {
	if n > 0 {
		c.batchSize = n
	}
	return c
}

// WithMinChunkLength returns a copy with the merge threshold set.
func (c IndexingConfig) WithMinChunkLength(n int) IndexingConfig {
	if n > 0 {
		c.minChunkLength = n
	}
	return c
}

// WithMaxFileSize returns a copy with the size cutoff set.
func (c IndexingConfig) WithMaxFileSize(n int64) IndexingConfig {
	if n > 0 {
		c.maxFileSize = n
	}
	return c
}

// WithExcludes returns a copy with the exclusion patterns set.
func (c IndexingConfig) WithExcludes(patterns []string) IndexingConfig {
	c.excludes = make([]string, len(patterns))
	copy(c.excludes, patterns)
	return c
}

// WithDebounceInterval returns a copy with the debounce interval set.
func (c IndexingConfig) WithDebounceInterval(d time.Duration) IndexingConfig {
	if d > 0 {
		c.debounceInterval = d
	}
	return c
}

// WithWatchSettle returns a copy with the watcher settle delay set.
func (c IndexingConfig) WithWatchSettle(d time.Duration) IndexingConfig {
	if d > 0 {
		c.watchSettle = d
	}
	return c
}

// WithClearCacheOnCollectionClear returns a copy with the cache-clear flag set.
func (c IndexingConfig) WithClearCacheOnCollectionClear(clear bool) IndexingConfig {
	c.clearCacheOnCollectionClear = clear
	return c
}

// HybridSearchConfig configures BM25 and score fusion.
type HybridSearchConfig struct {
	bm25K1         float64
	bm25B          float64
	bm25Weight     float64
	semanticWeight float64
	defaultLimit   int
}

// NewHybridSearchConfig creates a HybridSearchConfig with defaults.
func NewHybridSearchConfig() HybridSearchConfig {
	return HybridSearchConfig{
		bm25K1:         DefaultBM25K1,
		bm25B:          DefaultBM25B,
		bm25Weight:     DefaultBM25Weight,
		semanticWeight: DefaultSemanticWeight,
		defaultLimit:   DefaultSearchLimit,
	}
}

// BM25K1 returns the BM25 k1 parameter.
func (c HybridSearchConfig) BM25K1() float64 { return c.bm25K1 }

// BM25B returns the BM25 b parameter.
func (c HybridSearchConfig) BM25B() float64 { return c.bm25B }

// BM25Weight returns the lexical fusion weight.
func (c HybridSearchConfig) BM25Weight() float64 { return c.bm25Weight }

// SemanticWeight returns the semantic fusion weight.
func (c HybridSearchConfig) SemanticWeight() float64 { return c.semanticWeight }

// DefaultLimit returns the default search result limit.
func (c HybridSearchConfig) DefaultLimit() int { return c.defaultLimit }

// WithBM25Params returns a copy with the BM25 parameters set.
func (c HybridSearchConfig) WithBM25Params(k1, b float64) HybridSearchConfig {
	c.bm25K1 = k1
	c.bm25B = b
	return c
}

// WithWeights returns a copy with the fusion weights set.
func (c HybridSearchConfig) WithWeights(bm25, semantic float64) HybridSearchConfig {
	c.bm25Weight = bm25
	c.semanticWeight = semantic
	return c
}

// WithDefaultLimit returns a copy with the default limit set.
func (c HybridSearchConfig) WithDefaultLimit(n int) HybridSearchConfig {
	if n > 0 {
		c.defaultLimit = n
	}
	return c
}

// Validate checks that the fusion weights sum to one.
func (c HybridSearchConfig) Validate() error {
	sum := c.bm25Weight + c.semanticWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("fusion weights must sum to 1, got %.3f", sum)
	}
	return nil
}

// SecurityConfig configures metadata encryption.
type SecurityConfig struct {
	encryptMetadata bool
	keyID           string
}

// NewSecurityConfig creates a SecurityConfig with defaults.
func NewSecurityConfig() SecurityConfig {
	return SecurityConfig{keyID: DefaultKeyID}
}

// EncryptMetadata returns whether vector metadata is encrypted at rest.
func (c SecurityConfig) EncryptMetadata() bool { return c.encryptMetadata }

// KeyID returns the master key identifier.
func (c SecurityConfig) KeyID() string { return c.keyID }

// WithEncryptMetadata returns a copy with metadata encryption toggled.
func (c SecurityConfig) WithEncryptMetadata(encrypt bool) SecurityConfig {
	c.encryptMetadata = encrypt
	return c
}

// WithKeyID returns a copy with the key identifier set.
func (c SecurityConfig) WithKeyID(id string) SecurityConfig {
	if id != "" {
		c.keyID = id
	}
	return c
}

// MetricsConfig configures the metrics surface.
type MetricsConfig struct {
	enabled bool
}

// NewMetricsConfig creates a MetricsConfig with defaults.
func NewMetricsConfig() MetricsConfig {
	return MetricsConfig{enabled: true}
}

// Enabled returns whether /metrics is served.
func (c MetricsConfig) Enabled() bool { return c.enabled }

// WithEnabled returns a copy with the enabled flag set.
func (c MetricsConfig) WithEnabled(enabled bool) MetricsConfig {
	c.enabled = enabled
	return c
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	level  string
	format LogFormat
}

// NewLoggingConfig creates a LoggingConfig with defaults.
func NewLoggingConfig() LoggingConfig {
	return LoggingConfig{level: DefaultLogLevel, format: LogFormatPretty}
}

// Level returns the log verbosity level.
func (c LoggingConfig) Level() string { return c.level }

// Format returns the log output format.
func (c LoggingConfig) Format() LogFormat { return c.format }

// WithLevel returns a copy with the level set.
func (c LoggingConfig) WithLevel(level string) LoggingConfig {
	if level != "" {
		c.level = level
	}
	return c
}

// WithFormat returns a copy with the format set.
func (c LoggingConfig) WithFormat(format LogFormat) LoggingConfig {
	c.format = format
	return c
}

// ResilienceConfig configures circuit breaking, health probing, rate
// limiting, and shutdown.
type ResilienceConfig struct {
	strategy                string
	breakerWindowSize       int
	breakerFailureThreshold float64
	breakerRecovery         time.Duration
	breakerHalfOpenRequests int
	probeInterval           time.Duration
	probeTimeout            time.Duration
	healthFailureThreshold  int
	rateLimitBackend        string
	rateLimit               int64
	rateWindow              time.Duration
	eventBusCapacity        int
	shutdownTimeout         time.Duration
	persistBreakerState     bool
}

// NewResilienceConfig creates a ResilienceConfig with defaults.
func NewResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		strategy:                "primary_only",
		breakerWindowSize:       DefaultBreakerWindowSize,
		breakerFailureThreshold: DefaultBreakerFailureThreshold,
		breakerRecovery:         DefaultBreakerRecovery,
		breakerHalfOpenRequests: DefaultBreakerHalfOpenRequests,
		probeInterval:           DefaultProbeInterval,
		probeTimeout:            DefaultProbeTimeout,
		healthFailureThreshold:  DefaultHealthFailureThreshold,
		rateLimitBackend:        DefaultRateLimitBackend,
		rateLimit:               DefaultRateLimit,
		rateWindow:              DefaultRateWindow,
		eventBusCapacity:        DefaultEventBusCapacity,
		shutdownTimeout:         DefaultShutdownTimeout,
	}
}

// Strategy returns the router selection strategy.
func (c ResilienceConfig) Strategy() string { return c.strategy }

// BreakerWindowSize returns the rolling outcome window size.
func (c ResilienceConfig) BreakerWindowSize() int { return c.breakerWindowSize }

// BreakerFailureThreshold returns the failure-rate trip threshold.
func (c ResilienceConfig) BreakerFailureThreshold() float64 { return c.breakerFailureThreshold }

// BreakerRecovery returns the open-state recovery timeout.
func (c ResilienceConfig) BreakerRecovery() time.Duration { return c.breakerRecovery }

// BreakerHalfOpenRequests returns the half-open probe budget.
func (c ResilienceConfig) BreakerHalfOpenRequests() int { return c.breakerHalfOpenRequests }

// ProbeInterval returns the health probe interval.
func (c ResilienceConfig) ProbeInterval() time.Duration { return c.probeInterval }

// ProbeTimeout returns the per-probe timeout.
func (c ResilienceConfig) ProbeTimeout() time.Duration { return c.probeTimeout }

// HealthFailureThreshold returns the consecutive-failure unhealthy mark.
func (c ResilienceConfig) HealthFailureThreshold() int { return c.healthFailureThreshold }

// RateLimitBackend returns the rate limiter backend name.
func (c ResilienceConfig) RateLimitBackend() string { return c.rateLimitBackend }

// RateLimit returns the request budget per window.
func (c ResilienceConfig) RateLimit() int64 { return c.rateLimit }

// RateWindow returns the rate limit window.
func (c ResilienceConfig) RateWindow() time.Duration { return c.rateWindow }

// EventBusCapacity returns the per-subscriber event buffer size.
func (c ResilienceConfig) EventBusCapacity() int { return c.eventBusCapacity }

// ShutdownTimeout returns the graceful shutdown deadline.
func (c ResilienceConfig) ShutdownTimeout() time.Duration { return c.shutdownTimeout }

// PersistBreakerState returns whether circuit state survives restarts.
func (c ResilienceConfig) PersistBreakerState() bool { return c.persistBreakerState }

// WithStrategy returns a copy with the router strategy set.
func (c ResilienceConfig) WithStrategy(strategy string) ResilienceConfig {
	if strategy != "" {
		c.strategy = strategy
	}
	return c
}

// WithBreaker returns a copy with the circuit breaker parameters set.
func (c ResilienceConfig) WithBreaker(windowSize int, failureThreshold float64, recovery time.Duration, halfOpenRequests int) ResilienceConfig {
	if windowSize > 0 {
		c.breakerWindowSize = windowSize
	}
	if failureThreshold > 0 {
		c.breakerFailureThreshold = failureThreshold
	}
	if recovery > 0 {
		c.breakerRecovery = recovery
	}
	if halfOpenRequests > 0 {
		c.breakerHalfOpenRequests = halfOpenRequests
	}
	return c
}

// WithHealthProbing returns a copy with the health monitor parameters set.
func (c ResilienceConfig) WithHealthProbing(interval, timeout time.Duration, failureThreshold int) ResilienceConfig {
	if interval > 0 {
		c.probeInterval = interval
	}
	if timeout > 0 {
		c.probeTimeout = timeout
	}
	if failureThreshold > 0 {
		c.healthFailureThreshold = failureThreshold
	}
	return c
}

// WithRateLimit returns a copy with the rate limiter parameters set.
func (c ResilienceConfig) WithRateLimit(backend string, limit int64, window time.Duration) ResilienceConfig {
	if backend != "" {
		c.rateLimitBackend = backend
	}
	if limit > 0 {
		c.rateLimit = limit
	}
	if window > 0 {
		c.rateWindow = window
	}
	return c
}

// WithEventBusCapacity returns a copy with the event buffer size set.
func (c ResilienceConfig) WithEventBusCapacity(n int) ResilienceConfig {
	if n > 0 {
		c.eventBusCapacity = n
	}
	return c
}

// WithShutdownTimeout returns a copy with the shutdown deadline set.
func (c ResilienceConfig) WithShutdownTimeout(d time.Duration) ResilienceConfig {
	if d > 0 {
		c.shutdownTimeout = d
	}
	return c
}

// WithPersistBreakerState returns a copy with breaker persistence toggled.
func (c ResilienceConfig) WithPersistBreakerState(persist bool) ResilienceConfig {
	c.persistBreakerState = persist
	return c
}

// Validate checks the strategy and rate limiter backend names.
func (c ResilienceConfig) Validate() error {
	switch c.strategy {
	case "primary_only", "priority_list", "round_robin", "cost_biased":
	default:
		return fmt.Errorf("unknown routing strategy %q", c.strategy)
	}
	switch c.rateLimitBackend {
	case "local", "distributed", "disabled":
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.rateLimitBackend)
	}
	return nil
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	server      ServerConfig
	dataDir     string
	embedding   provider.Config
	vectorStore provider.Config
	cache       provider.Config
	indexing    IndexingConfig
	hybrid      HybridSearchConfig
	security    SecurityConfig
	metrics     MetricsConfig
	logging     LoggingConfig
	resilience  ResilienceConfig
}

// DefaultDataDir returns the default data directory, honouring XDG_DATA_HOME.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcp-context-browser")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mcp-context-browser"
	}
	return filepath.Join(home, ".local", "share", "mcp-context-browser")
}

// NewAppConfig creates an AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		server:  NewServerConfig(),
		dataDir: dataDir,
		embedding: provider.NewConfig(DefaultEmbeddingProvider).
			WithModel(DefaultEmbeddingModel),
		vectorStore: provider.NewConfig(DefaultVectorStoreProvider).
			WithPath(filepath.Join(dataDir, "vectors")),
		cache:      provider.NewConfig(DefaultCacheProvider),
		indexing:   NewIndexingConfig(),
		hybrid:     NewHybridSearchConfig(),
		security:   NewSecurityConfig(),
		metrics:    NewMetricsConfig(),
		logging:    NewLoggingConfig(),
		resilience: NewResilienceConfig(),
	}
}

// Server returns the admin listener config.
func (c AppConfig) Server() ServerConfig { return c.server }

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// Embedding returns the embedding provider config.
func (c AppConfig) Embedding() provider.Config { return c.embedding }

// VectorStore returns the vector store provider config.
func (c AppConfig) VectorStore() provider.Config { return c.vectorStore }

// Cache returns the cache provider config.
func (c AppConfig) Cache() provider.Config { return c.cache }

// Indexing returns the indexing config.
func (c AppConfig) Indexing() IndexingConfig { return c.indexing }

// HybridSearch returns the hybrid search config.
func (c AppConfig) HybridSearch() HybridSearchConfig { return c.hybrid }

// Security returns the security config.
func (c AppConfig) Security() SecurityConfig { return c.security }

// Metrics returns the metrics config.
func (c AppConfig) Metrics() MetricsConfig { return c.metrics }

// Logging returns the logging config.
func (c AppConfig) Logging() LoggingConfig { return c.logging }

// Resilience returns the resilience config.
func (c AppConfig) Resilience() ResilienceConfig { return c.resilience }

// SnapshotsDir returns the snapshot storage directory.
func (c AppConfig) SnapshotsDir() string { return filepath.Join(c.dataDir, "snapshots") }

// HistoryDir returns the config history directory.
func (c AppConfig) HistoryDir() string { return filepath.Join(c.dataDir, "config-history") }

// BreakersDir returns the circuit breaker persistence directory.
func (c AppConfig) BreakersDir() string { return filepath.Join(c.dataDir, "circuit-breakers") }

// EnsureDataDir creates the data directory if it does not exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// WithServer returns a copy with the server config set.
func (c AppConfig) WithServer(server ServerConfig) AppConfig { c.server = server; return c }

// WithDataDir returns a copy with the data directory set. A vector store
// path still pointing at the old default follows the move.
func (c AppConfig) WithDataDir(dir string) AppConfig {
	if dir == "" {
		return c
	}
	oldDefault := filepath.Join(c.dataDir, "vectors")
	c.dataDir = dir
	if c.vectorStore.Path() == "" || c.vectorStore.Path() == oldDefault {
		c.vectorStore = c.vectorStore.WithPath(filepath.Join(dir, "vectors"))
	}
	return c
}

// WithEmbedding returns a copy with the embedding provider config set.
func (c AppConfig) WithEmbedding(cfg provider.Config) AppConfig { c.embedding = cfg; return c }

// WithVectorStore returns a copy with the vector store provider config set.
func (c AppConfig) WithVectorStore(cfg provider.Config) AppConfig { c.vectorStore = cfg; return c }

// WithCache returns a copy with the cache provider config set.
func (c AppConfig) WithCache(cfg provider.Config) AppConfig { c.cache = cfg; return c }

// WithIndexing returns a copy with the indexing config set.
func (c AppConfig) WithIndexing(cfg IndexingConfig) AppConfig { c.indexing = cfg; return c }

// WithHybridSearch returns a copy with the hybrid search config set.
func (c AppConfig) WithHybridSearch(cfg HybridSearchConfig) AppConfig { c.hybrid = cfg; return c }

// WithSecurity returns a copy with the security config set.
func (c AppConfig) WithSecurity(cfg SecurityConfig) AppConfig { c.security = cfg; return c }

// WithMetrics returns a copy with the metrics config set.
func (c AppConfig) WithMetrics(cfg MetricsConfig) AppConfig { c.metrics = cfg; return c }

// WithLogging returns a copy with the logging config set.
func (c AppConfig) WithLogging(cfg LoggingConfig) AppConfig { c.logging = cfg; return c }

// WithResilience returns a copy with the resilience config set.
func (c AppConfig) WithResilience(cfg ResilienceConfig) AppConfig { c.resilience = cfg; return c }

// Validate checks every section. A config that fails validation is fatal at
// startup and rejected at reload.
func (c AppConfig) Validate() error {
	if err := c.embedding.Validate(); err != nil {
		return fmt.Errorf("providers.embedding: %w", err)
	}
	if err := c.vectorStore.Validate(); err != nil {
		return fmt.Errorf("providers.vector_store: %w", err)
	}
	if err := c.cache.Validate(); err != nil {
		return fmt.Errorf("providers.cache: %w", err)
	}
	if err := c.hybrid.Validate(); err != nil {
		return fmt.Errorf("hybrid_search: %w", err)
	}
	if err := c.resilience.Validate(); err != nil {
		return fmt.Errorf("resilience: %w", err)
	}
	return nil
}

// LogAttrs returns slog attributes describing the configuration. Secrets
// are reported as presence only.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("addr", c.server.Addr()),
		slog.String("data_dir", c.dataDir),
		slog.String("embedding_provider", c.embedding.Provider()),
		slog.String("embedding_model", c.embedding.Model()),
		slog.Bool("embedding_api_key_set", c.embedding.APIKey() != ""),
		slog.String("vector_store_provider", c.vectorStore.Provider()),
		slog.String("cache_provider", c.cache.Provider()),
		slog.Bool("encrypt_metadata", c.security.encryptMetadata),
		slog.String("routing_strategy", c.resilience.strategy),
		slog.String("log_level", c.logging.level),
		slog.String("log_format", string(c.logging.format)),
	}
}
