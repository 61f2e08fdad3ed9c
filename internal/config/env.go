package config

import (
	"github.com/kelseyhightower/envconfig"

	"github.com/mcb/mcp-context-browser/domain/provider"
)

// envPrefix combines with the double-underscore path separator so that
// overrides read as MCP__SERVER__PORT, MCP__PROVIDERS__EMBEDDING__API_KEY.
const envPrefix = "MCP_"

// EnvConfig holds environment-based overrides. Every variable carries the
// MCP__ prefix with double underscores separating path segments; unset
// variables leave the file or default value in place.
type EnvConfig struct {
	// Env: MCP__SERVER__HOST
	ServerHost string `envconfig:"SERVER__HOST"`

	// Env: MCP__SERVER__PORT
	ServerPort int `envconfig:"SERVER__PORT"`

	// Env: MCP__DATA__DIR
	DataDir string `envconfig:"DATA__DIR"`

	// Env: MCP__PROVIDERS__EMBEDDING__*
	Embedding ProviderEnv `envconfig:"PROVIDERS__EMBEDDING"`

	// Env: MCP__PROVIDERS__VECTOR_STORE__*
	VectorStore ProviderEnv `envconfig:"PROVIDERS__VECTOR_STORE"`

	// Env: MCP__PROVIDERS__CACHE__*
	Cache ProviderEnv `envconfig:"PROVIDERS__CACHE"`

	// Env: MCP__INDEXING__BATCH_SIZE
	IndexingBatchSize int `envconfig:"INDEXING__BATCH_SIZE"`

	// Env: MCP__INDEXING__DEBOUNCE_SECONDS
	IndexingDebounceSeconds float64 `envconfig:"INDEXING__DEBOUNCE_SECONDS"`

	// Env: MCP__HYBRID_SEARCH__BM25_WEIGHT
	BM25Weight float64 `envconfig:"HYBRID_SEARCH__BM25_WEIGHT"`

	// Env: MCP__HYBRID_SEARCH__SEMANTIC_WEIGHT
	SemanticWeight float64 `envconfig:"HYBRID_SEARCH__SEMANTIC_WEIGHT"`

	// Env: MCP__HYBRID_SEARCH__DEFAULT_LIMIT
	SearchLimit int `envconfig:"HYBRID_SEARCH__DEFAULT_LIMIT"`

	// Env: MCP__SECURITY__ENCRYPT_METADATA
	EncryptMetadata *bool `envconfig:"SECURITY__ENCRYPT_METADATA"`

	// Env: MCP__SECURITY__KEY_ID
	KeyID string `envconfig:"SECURITY__KEY_ID"`

	// Env: MCP__METRICS__ENABLED
	MetricsEnabled *bool `envconfig:"METRICS__ENABLED"`

	// Env: MCP__LOGGING__LEVEL
	LogLevel string `envconfig:"LOGGING__LEVEL"`

	// Env: MCP__LOGGING__FORMAT
	LogFormat string `envconfig:"LOGGING__FORMAT"`

	// Env: MCP__RESILIENCE__STRATEGY
	RoutingStrategy string `envconfig:"RESILIENCE__STRATEGY"`

	// Env: MCP__RESILIENCE__RATE_LIMIT__BACKEND
	RateLimitBackend string `envconfig:"RESILIENCE__RATE_LIMIT__BACKEND"`

	// Env: MCP__RESILIENCE__RATE_LIMIT__LIMIT
	RateLimit int64 `envconfig:"RESILIENCE__RATE_LIMIT__LIMIT"`

	// Env: MCP__RESILIENCE__SHUTDOWN_TIMEOUT_SECONDS
	ShutdownTimeoutSeconds float64 `envconfig:"RESILIENCE__SHUTDOWN_TIMEOUT_SECONDS"`
}

// ProviderEnv holds environment overrides for one provider section. The
// struct tag on the parent field contributes the section path; envconfig
// joins it with each field's suffix.
type ProviderEnv struct {
	// Env: *__PROVIDER
	Provider string `envconfig:"_PROVIDER"`

	// Env: *__MODEL
	Model string `envconfig:"_MODEL"`

	// Env: *__API_KEY
	APIKey string `envconfig:"_API_KEY"`

	// Env: *__BASE_URL
	BaseURL string `envconfig:"_BASE_URL"`

	// Env: *__ADDRESS
	Address string `envconfig:"_ADDRESS"`

	// Env: *__PATH
	Path string `envconfig:"_PATH"`

	// Env: *__TIMEOUT_SECONDS
	TimeoutSeconds float64 `envconfig:"_TIMEOUT_SECONDS"`
}

// LoadFromEnv reads the MCP__ override variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Apply layers the environment overrides on top of cfg. Environment values
// take precedence over file values.
func (e EnvConfig) Apply(cfg AppConfig) AppConfig {
	cfg = cfg.WithServer(cfg.Server().WithHost(e.ServerHost).WithPort(e.ServerPort))
	cfg = cfg.WithDataDir(e.DataDir)

	cfg = cfg.WithEmbedding(e.Embedding.apply(cfg.Embedding()))
	cfg = cfg.WithVectorStore(e.VectorStore.apply(cfg.VectorStore()))
	cfg = cfg.WithCache(e.Cache.apply(cfg.Cache()))

	cfg = cfg.WithIndexing(cfg.Indexing().
		WithBatchSize(e.IndexingBatchSize).
		WithDebounceInterval(seconds(e.IndexingDebounceSeconds)))

	hybrid := cfg.HybridSearch()
	if e.BM25Weight > 0 || e.SemanticWeight > 0 {
		hybrid = hybrid.WithWeights(e.BM25Weight, e.SemanticWeight)
	}
	cfg = cfg.WithHybridSearch(hybrid.WithDefaultLimit(e.SearchLimit))

	security := cfg.Security().WithKeyID(e.KeyID)
	if e.EncryptMetadata != nil {
		security = security.WithEncryptMetadata(*e.EncryptMetadata)
	}
	cfg = cfg.WithSecurity(security)

	if e.MetricsEnabled != nil {
		cfg = cfg.WithMetrics(cfg.Metrics().WithEnabled(*e.MetricsEnabled))
	}

	logging := cfg.Logging().WithLevel(e.LogLevel)
	if e.LogFormat != "" {
		logging = logging.WithFormat(ParseLogFormat(e.LogFormat))
	}
	cfg = cfg.WithLogging(logging)

	cfg = cfg.WithResilience(cfg.Resilience().
		WithStrategy(e.RoutingStrategy).
		WithRateLimit(e.RateLimitBackend, e.RateLimit, 0).
		WithShutdownTimeout(seconds(e.ShutdownTimeoutSeconds)))

	return cfg
}

func (e ProviderEnv) apply(cfg provider.Config) provider.Config {
	if e.Provider != "" {
		cfg = provider.NewConfig(e.Provider).
			WithModel(cfg.Model()).
			WithAPIKey(cfg.APIKey()).
			WithBaseURL(cfg.BaseURL()).
			WithAddress(cfg.Address()).
			WithPath(cfg.Path()).
			WithTimeout(cfg.Timeout())
	}
	return cfg.
		WithModel(valueOr(e.Model, cfg.Model())).
		WithAPIKey(valueOr(e.APIKey, cfg.APIKey())).
		WithBaseURL(valueOr(e.BaseURL, cfg.BaseURL())).
		WithAddress(valueOr(e.Address, cfg.Address())).
		WithPath(valueOr(e.Path, cfg.Path())).
		WithTimeout(seconds(e.TimeoutSeconds))
}

// Load builds the effective configuration: defaults, then the config file,
// then environment overrides, then validation.
func Load(path string) (AppConfig, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	env, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, err
	}
	cfg = env.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
