// Package mcb provides a semantic code-search engine for source trees.
//
// It chunks code along AST boundaries, embeds the chunks through a pluggable
// embedding provider, stores the vectors in a pluggable vector store, and
// answers queries with combined BM25 and semantic ranking. Provider calls
// run behind a router with circuit breaking, health probing, rate gating,
// and connection draining.
//
// Basic usage:
//
//	client, err := mcb.New(
//	    mcb.WithDataDir(".mcb"),
//	    mcb.WithEmbeddingConfig(provider.NewConfig("openai").WithAPIKey(key)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	stats, err := client.Indexing.IndexCodebase(ctx, "/src/repo", "repo")
//	results, err := client.Search.Query(ctx, search.NewQuery("parse config", 10, "repo"))
package mcb

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mcb/mcp-context-browser/application/service"
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
	"github.com/mcb/mcp-context-browser/infrastructure/cache"
	"github.com/mcb/mcp-context-browser/infrastructure/chunking"
	"github.com/mcb/mcp-context-browser/infrastructure/crypto"
	"github.com/mcb/mcp-context-browser/infrastructure/discovery"
	"github.com/mcb/mcp-context-browser/infrastructure/events"
	"github.com/mcb/mcp-context-browser/infrastructure/hybrid"
	infraprovider "github.com/mcb/mcp-context-browser/infrastructure/provider"
	"github.com/mcb/mcp-context-browser/infrastructure/resilience"
	"github.com/mcb/mcp-context-browser/infrastructure/routing"
	"github.com/mcb/mcp-context-browser/infrastructure/snapshot"
	"github.com/mcb/mcp-context-browser/infrastructure/vectorstore"
	"github.com/mcb/mcp-context-browser/internal/config"
)

// Client is the main entry point for the library.
//
// Access operations via struct fields:
//
//	client.Indexing.IndexCodebase(ctx, root, collection)
//	client.Search.Query(ctx, query)
//	client.Sync.Run(ctx, root, collection)
type Client struct {
	Indexing *service.Indexing
	Search   *service.Search
	Sync     *service.Sync
	Status   *service.Status

	cfg         config.AppConfig
	logger      *slog.Logger
	bus         *events.Bus
	engine      *hybrid.Engine
	monitor     *routing.HealthMonitor
	tracker     *routing.ConnectionTracker
	router      *routing.Router
	breakers    *routing.BreakerStore
	limiter     resilience.RateLimiter
	coordinator *resilience.ShutdownCoordinator
	cache       provider.CacheProvider
	closed      atomic.Bool
}

// New creates a Client with the given options. Background tasks (health
// probing, parked-batch recovery) start immediately.
func New(opts ...Option) (*Client, error) {
	cc := newClientConfig()
	for _, opt := range opts {
		opt(cc)
	}
	app := cc.app
	if err := app.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindConfig, "validate config", err)
	}

	logger := cc.logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := app.EnsureDataDir(); err != nil {
		return nil, errs.Wrap(errs.KindIo, "create data directory", err)
	}

	res := app.Resilience()
	bus := events.NewBus(res.EventBusCapacity(), logger)

	cacheProvider, err := buildCache(cc, app, logger)
	if err != nil {
		bus.Close()
		return nil, err
	}
	store, err := buildVectorStore(cc, app)
	if err != nil {
		bus.Close()
		return nil, err
	}
	embedder, err := buildEmbedder(cc, app)
	if err != nil {
		bus.Close()
		return nil, err
	}

	tracker := routing.NewConnectionTracker()
	monitor := routing.NewHealthMonitor(
		routing.NewMonitorConfig().
			WithProbeInterval(res.ProbeInterval()).
			WithProbeTimeout(res.ProbeTimeout()).
			WithFailureThreshold(res.HealthFailureThreshold()),
		bus, logger)
	monitor.Register("vectorstore:"+store.ProviderName(), store.HealthCheck)
	monitor.Register("cache:"+cacheProvider.BackendType(), cacheProvider.HealthCheck)

	limiter, err := buildRateLimiter(res, cacheProvider)
	if err != nil {
		bus.Close()
		return nil, err
	}
	gate := func(ctx context.Context, providerID string) (bool, error) {
		result, err := limiter.Check(ctx, "provider:"+providerID)
		if err != nil {
			return false, err
		}
		return result.Allowed, nil
	}

	strategy, err := routing.ParseStrategy(res.Strategy())
	if err != nil {
		bus.Close()
		return nil, err
	}

	embedders := append([]provider.EmbeddingProvider{embedder}, cc.fallback...)
	candidates := make([]routing.Candidate, len(embedders))
	providerMap := make(map[string]provider.EmbeddingProvider, len(embedders))
	for i, p := range embedders {
		id := "embedding:" + p.ProviderName()
		candidates[i] = routing.Candidate{ID: id, Priority: i, Cost: float64(i)}
		providerMap[id] = p
		monitor.Register(id, p.HealthCheck)
	}

	router := routing.NewRouter(strategy, candidates, routing.NewBreakerConfig().
		WithWindowSize(res.BreakerWindowSize()).
		WithFailureThreshold(res.BreakerFailureThreshold()).
		WithRecoveryTimeout(res.BreakerRecovery()).
		WithHalfOpenMaxRequests(res.BreakerHalfOpenRequests()),
		monitor, tracker, gate, logger)

	var breakers *routing.BreakerStore
	if res.PersistBreakerState() {
		breakers, err = routing.NewBreakerStore(app.BreakersDir())
		if err != nil {
			bus.Close()
			return nil, err
		}
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		if err := breakers.RestoreAll(router, ids); err != nil {
			logger.Warn("restoring breaker state failed", slog.String("error", err.Error()))
		}
	}

	routed, err := routing.NewRoutedEmbedding(router, providerMap, candidates[0].ID, app.Embedding().Timeout())
	if err != nil {
		bus.Close()
		return nil, err
	}

	hybridCfg := app.HybridSearch()
	engine := hybrid.NewEngine(hybrid.NewConfig().
		WithK1(hybridCfg.BM25K1()).
		WithB(hybridCfg.BM25B()).
		WithWeights(search.NewWeights(hybridCfg.BM25Weight(), hybridCfg.SemanticWeight())),
		bus, logger)

	idx := app.Indexing()
	chunker := chunking.NewChunker(chunking.NewConfig().
		WithMinChunkLength(idx.MinChunkLength()).
		WithBatchSize(idx.BatchSize()),
		bus, logger)
	walker := discovery.NewWalker(discovery.NewConfig().
		WithExcludes(idx.Excludes()...).
		WithMaxFileSize(idx.MaxFileSize()),
		logger)

	snapshots, err := snapshot.NewStore(app.DataDir())
	if err != nil {
		engine.Close()
		bus.Close()
		return nil, err
	}
	builder := snapshot.NewBuilder(walker)
	debouncer := service.NewDebouncer(idx.DebounceInterval())

	indexing := service.NewIndexing(routed, store, engine, cacheProvider, chunker, walker, bus, logger, idx.ClearCacheOnCollectionClear())
	searchSvc := service.NewSearch(routed, store, engine, cacheProvider, logger)
	syncSvc := service.NewSync(builder, snapshots, indexing, chunker, debouncer, bus, logger)
	statusSvc := service.NewStatus(indexing, syncSvc, engine, monitor)

	coordinator := resilience.NewShutdownCoordinator(context.Background(), bus, logger)
	coordinator.RegisterDrainer(tracker)
	monitor.Start(coordinator.Context())
	indexing.Start(coordinator.Context(), bus)

	logger.Info("client ready",
		slog.String("embedding_provider", routed.ProviderName()),
		slog.String("vector_store", store.ProviderName()),
		slog.String("cache_backend", cacheProvider.BackendType()),
		slog.String("strategy", string(strategy)))

	return &Client{
		Indexing:    indexing,
		Search:      searchSvc,
		Sync:        syncSvc,
		Status:      statusSvc,
		cfg:         app,
		logger:      logger,
		bus:         bus,
		engine:      engine,
		monitor:     monitor,
		tracker:     tracker,
		router:      router,
		breakers:    breakers,
		limiter:     limiter,
		coordinator: coordinator,
		cache:       cacheProvider,
	}, nil
}

func buildCache(cc *clientConfig, app config.AppConfig, logger *slog.Logger) (provider.CacheProvider, error) {
	if cc.cache != nil {
		return cc.cache, nil
	}
	return cache.New(context.Background(), app.Cache())
}

func buildVectorStore(cc *clientConfig, app config.AppConfig) (provider.VectorStoreProvider, error) {
	if cc.store != nil {
		return cc.store, nil
	}
	security := app.Security()
	needsCrypto := security.EncryptMetadata() || app.VectorStore().Provider() == "encrypted"

	var aead provider.CryptoProvider
	if needsCrypto {
		keystore, err := crypto.NewKeystore(app.DataDir())
		if err != nil {
			return nil, err
		}
		key, err := keystore.LoadOrCreate(security.KeyID())
		if err != nil {
			return nil, err
		}
		aead, err = crypto.NewAESGCM(key)
		if err != nil {
			return nil, err
		}
	}

	store, err := vectorstore.New(app.VectorStore(), aead)
	if err != nil {
		return nil, err
	}
	if security.EncryptMetadata() && app.VectorStore().Provider() != "encrypted" {
		store = vectorstore.NewEncryptedStore(store, aead)
	}
	return store, nil
}

func buildEmbedder(cc *clientConfig, app config.AppConfig) (provider.EmbeddingProvider, error) {
	if cc.embedder != nil {
		return cc.embedder, nil
	}
	return infraprovider.New(app.Embedding())
}

func buildRateLimiter(res config.ResilienceConfig, cacheProvider provider.CacheProvider) (resilience.RateLimiter, error) {
	switch res.RateLimitBackend() {
	case "local":
		return resilience.NewLocalRateLimiter(res.RateLimit(), res.RateWindow()), nil
	case "distributed":
		return resilience.NewDistributedRateLimiter(cacheProvider, res.RateLimit(), res.RateWindow()), nil
	case "disabled":
		return resilience.NewDisabledRateLimiter(), nil
	default:
		return nil, errs.Newf(errs.KindConfig, "unknown rate limit backend %q", res.RateLimitBackend())
	}
}

// Config returns the effective application config.
func (c *Client) Config() config.AppConfig { return c.cfg }

// Cache returns the cache backend for the admin surface.
func (c *Client) Cache() provider.CacheProvider { return c.cache }

// RateLimiter returns the configured limiter for the protocol surface.
func (c *Client) RateLimiter() resilience.RateLimiter { return c.limiter }

// RoutingMetrics reports router, breaker, drain, and event bus counters for
// the admin metrics surface.
func (c *Client) RoutingMetrics() map[string]any {
	return map[string]any{
		"router":             c.router.Stats(),
		"breakers":           c.router.Snapshots(),
		"active_connections": c.tracker.TotalActive(),
		"events_dropped":     c.bus.Dropped(),
	}
}

// Watch starts a filesystem watcher that syncs root into collection until
// the client shuts down.
func (c *Client) Watch(root, collection string) error {
	watcher := service.NewWatcher(c.Sync, root, collection, c.cfg.Indexing().WatchSettle(), c.logger)
	return c.coordinator.Spawn("watch:"+root, func(ctx context.Context) {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("watcher stopped",
				slog.String("root", root),
				slog.String("error", err.Error()))
		}
	})
}

// Spawn runs a named background task under the client's shutdown coordinator.
func (c *Client) Spawn(name string, fn func(ctx context.Context)) error {
	return c.coordinator.Spawn(name, fn)
}

// ShutdownContext is cancelled when shutdown begins.
func (c *Client) ShutdownContext() context.Context { return c.coordinator.Context() }

// Shutdown stops background tasks, waits for in-flight provider calls to
// drain, persists breaker state, and releases every subsystem. A timeout
// waiting for tasks or drain is reported after cleanup completes.
func (c *Client) Shutdown(reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.coordinator.Shutdown(reason, c.cfg.Resilience().ShutdownTimeout())

	if c.breakers != nil {
		if saveErr := c.breakers.SaveAll(c.router); saveErr != nil {
			c.logger.Warn("persisting breaker state failed", slog.String("error", saveErr.Error()))
		}
	}
	c.monitor.Stop()
	c.engine.Close()
	c.bus.Close()

	if closer, ok := c.cache.(interface{ Close() error }); ok {
		if closeErr := closer.Close(); closeErr != nil {
			c.logger.Warn("closing cache backend failed", slog.String("error", closeErr.Error()))
		}
	}
	return err
}

// Close shuts the client down with the default reason.
func (c *Client) Close() error {
	return c.Shutdown("close")
}

// WaitForDrain blocks until in-flight provider calls finish or the timeout
// elapses.
func (c *Client) WaitForDrain(ctx context.Context, timeout time.Duration) error {
	return c.tracker.WaitForDrainAll(ctx, timeout)
}
