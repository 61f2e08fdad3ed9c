package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcb/mcp-context-browser/domain/provider"
)

// fileConfig is the on-disk YAML shape. Unknown keys anywhere in the
// document reject with a diagnostic.
type fileConfig struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Data struct {
		Dir string `yaml:"dir"`
	} `yaml:"data"`
	Providers struct {
		Embedding   providerFile `yaml:"embedding"`
		VectorStore providerFile `yaml:"vector_store"`
		Cache       providerFile `yaml:"cache"`
	} `yaml:"providers"`
	Indexing struct {
		BatchSize                   int      `yaml:"batch_size"`
		MinChunkLength              int      `yaml:"min_chunk_length"`
		MaxFileSize                 int64    `yaml:"max_file_size"`
		Excludes                    []string `yaml:"excludes"`
		DebounceSeconds             float64  `yaml:"debounce_seconds"`
		WatchSettleSeconds          float64  `yaml:"watch_settle_seconds"`
		ClearCacheOnCollectionClear *bool    `yaml:"clear_cache_on_collection_clear"`
	} `yaml:"indexing"`
	HybridSearch struct {
		BM25K1         float64 `yaml:"bm25_k1"`
		BM25B          float64 `yaml:"bm25_b"`
		BM25Weight     float64 `yaml:"bm25_weight"`
		SemanticWeight float64 `yaml:"semantic_weight"`
		DefaultLimit   int     `yaml:"default_limit"`
	} `yaml:"hybrid_search"`
	Security struct {
		EncryptMetadata bool   `yaml:"encrypt_metadata"`
		KeyID           string `yaml:"key_id"`
	} `yaml:"security"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Resilience struct {
		Strategy string `yaml:"strategy"`
		Breaker  struct {
			WindowSize       int     `yaml:"window_size"`
			FailureThreshold float64 `yaml:"failure_threshold"`
			RecoverySeconds  float64 `yaml:"recovery_seconds"`
			HalfOpenRequests int     `yaml:"half_open_requests"`
			Persist          bool    `yaml:"persist"`
		} `yaml:"breaker"`
		Health struct {
			ProbeIntervalSeconds float64 `yaml:"probe_interval_seconds"`
			ProbeTimeoutSeconds  float64 `yaml:"probe_timeout_seconds"`
			FailureThreshold     int     `yaml:"failure_threshold"`
		} `yaml:"health"`
		RateLimit struct {
			Backend       string  `yaml:"backend"`
			Limit         int64   `yaml:"limit"`
			WindowSeconds float64 `yaml:"window_seconds"`
		} `yaml:"rate_limit"`
		EventBusCapacity       int     `yaml:"event_bus_capacity"`
		ShutdownTimeoutSeconds float64 `yaml:"shutdown_timeout_seconds"`
	} `yaml:"resilience"`
}

type providerFile struct {
	Provider       string            `yaml:"provider"`
	Model          string            `yaml:"model"`
	APIKey         string            `yaml:"api_key"`
	BaseURL        string            `yaml:"base_url"`
	Address        string            `yaml:"address"`
	Path           string            `yaml:"path"`
	TimeoutSeconds float64           `yaml:"timeout_seconds"`
	Options        map[string]string `yaml:"options"`
}

// LoadFile reads a YAML config file and applies it on top of the defaults.
// A missing file is not an error; the defaults are returned.
func LoadFile(path string) (AppConfig, error) {
	cfg := NewAppConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config file: %w", err)
	}
	return applyFile(cfg, path, data)
}

func applyFile(cfg AppConfig, path string, data []byte) (AppConfig, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg = cfg.WithServer(cfg.Server().WithHost(fc.Server.Host).WithPort(fc.Server.Port))
	cfg = cfg.WithDataDir(fc.Data.Dir)

	cfg = cfg.WithEmbedding(fc.Providers.Embedding.apply(cfg.Embedding()))
	cfg = cfg.WithVectorStore(fc.Providers.VectorStore.apply(cfg.VectorStore()))
	cfg = cfg.WithCache(fc.Providers.Cache.apply(cfg.Cache()))

	idx := cfg.Indexing().
		WithBatchSize(fc.Indexing.BatchSize).
		WithMinChunkLength(fc.Indexing.MinChunkLength).
		WithMaxFileSize(fc.Indexing.MaxFileSize).
		WithDebounceInterval(seconds(fc.Indexing.DebounceSeconds)).
		WithWatchSettle(seconds(fc.Indexing.WatchSettleSeconds))
	if len(fc.Indexing.Excludes) > 0 {
		idx = idx.WithExcludes(fc.Indexing.Excludes)
	}
	if fc.Indexing.ClearCacheOnCollectionClear != nil {
		idx = idx.WithClearCacheOnCollectionClear(*fc.Indexing.ClearCacheOnCollectionClear)
	}
	cfg = cfg.WithIndexing(idx)

	hybrid := cfg.HybridSearch()
	if fc.HybridSearch.BM25K1 > 0 || fc.HybridSearch.BM25B > 0 {
		k1, b := hybrid.BM25K1(), hybrid.BM25B()
		if fc.HybridSearch.BM25K1 > 0 {
			k1 = fc.HybridSearch.BM25K1
		}
		if fc.HybridSearch.BM25B > 0 {
			b = fc.HybridSearch.BM25B
		}
		hybrid = hybrid.WithBM25Params(k1, b)
	}
	if fc.HybridSearch.BM25Weight > 0 || fc.HybridSearch.SemanticWeight > 0 {
		hybrid = hybrid.WithWeights(fc.HybridSearch.BM25Weight, fc.HybridSearch.SemanticWeight)
	}
	cfg = cfg.WithHybridSearch(hybrid.WithDefaultLimit(fc.HybridSearch.DefaultLimit))

	cfg = cfg.WithSecurity(cfg.Security().
		WithEncryptMetadata(fc.Security.EncryptMetadata).
		WithKeyID(fc.Security.KeyID))

	if fc.Metrics.Enabled != nil {
		cfg = cfg.WithMetrics(cfg.Metrics().WithEnabled(*fc.Metrics.Enabled))
	}

	logging := cfg.Logging().WithLevel(fc.Logging.Level)
	if fc.Logging.Format != "" {
		logging = logging.WithFormat(ParseLogFormat(fc.Logging.Format))
	}
	cfg = cfg.WithLogging(logging)

	res := cfg.Resilience().
		WithStrategy(fc.Resilience.Strategy).
		WithBreaker(
			fc.Resilience.Breaker.WindowSize,
			fc.Resilience.Breaker.FailureThreshold,
			seconds(fc.Resilience.Breaker.RecoverySeconds),
			fc.Resilience.Breaker.HalfOpenRequests,
		).
		WithHealthProbing(
			seconds(fc.Resilience.Health.ProbeIntervalSeconds),
			seconds(fc.Resilience.Health.ProbeTimeoutSeconds),
			fc.Resilience.Health.FailureThreshold,
		).
		WithRateLimit(
			fc.Resilience.RateLimit.Backend,
			fc.Resilience.RateLimit.Limit,
			seconds(fc.Resilience.RateLimit.WindowSeconds),
		).
		WithEventBusCapacity(fc.Resilience.EventBusCapacity).
		WithShutdownTimeout(seconds(fc.Resilience.ShutdownTimeoutSeconds))
	if fc.Resilience.Breaker.Persist {
		res = res.WithPersistBreakerState(true)
	}
	cfg = cfg.WithResilience(res)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

func (p providerFile) apply(cfg provider.Config) provider.Config {
	if p.Provider != "" {
		cfg = provider.NewConfig(p.Provider)
	}
	cfg = cfg.
		WithModel(valueOr(p.Model, cfg.Model())).
		WithAPIKey(valueOr(p.APIKey, cfg.APIKey())).
		WithBaseURL(valueOr(p.BaseURL, cfg.BaseURL())).
		WithAddress(valueOr(p.Address, cfg.Address())).
		WithPath(valueOr(p.Path, cfg.Path())).
		WithTimeout(seconds(p.TimeoutSeconds))
	for k, v := range p.Options {
		cfg = cfg.WithOption(k, v)
	}
	return cfg
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// historySnapshot is the JSON shape written to config-history on reload.
// Secrets are redacted to presence flags.
type historySnapshot struct {
	SavedAt             string   `json:"saved_at"`
	Addr                string   `json:"addr"`
	DataDir             string   `json:"data_dir"`
	EmbeddingProvider   string   `json:"embedding_provider"`
	EmbeddingModel      string   `json:"embedding_model"`
	EmbeddingKeySet     bool     `json:"embedding_api_key_set"`
	VectorStoreProvider string   `json:"vector_store_provider"`
	CacheProvider       string   `json:"cache_provider"`
	EncryptMetadata     bool     `json:"encrypt_metadata"`
	RoutingStrategy     string   `json:"routing_strategy"`
	LogLevel            string   `json:"log_level"`
	LogFormat           string   `json:"log_format"`
	Excludes            []string `json:"excludes,omitempty"`
}

// WriteHistory records the previous config under config-history/<ts>.json
// before a reload replaces it. It returns the path written.
func WriteHistory(cfg AppConfig, at time.Time) (string, error) {
	dir := cfg.HistoryDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}
	snap := historySnapshot{
		SavedAt:             at.UTC().Format(time.RFC3339),
		Addr:                cfg.Server().Addr(),
		DataDir:             cfg.DataDir(),
		EmbeddingProvider:   cfg.Embedding().Provider(),
		EmbeddingModel:      cfg.Embedding().Model(),
		EmbeddingKeySet:     cfg.Embedding().APIKey() != "",
		VectorStoreProvider: cfg.VectorStore().Provider(),
		CacheProvider:       cfg.Cache().Provider(),
		EncryptMetadata:     cfg.Security().EncryptMetadata(),
		RoutingStrategy:     cfg.Resilience().Strategy(),
		LogLevel:            cfg.Logging().Level(),
		LogFormat:           string(cfg.Logging().Format()),
		Excludes:            cfg.Indexing().Excludes(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode config history: %w", err)
	}
	path := filepath.Join(dir, at.UTC().Format("20060102T150405.000000000Z")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write config history: %w", err)
	}
	return path, nil
}
