package routing

import (
	"context"
	"time"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// RoutedEmbedding sends every embedding call through a Router, so circuit
// breaking, health checks, rate gating, drain tracking, and failover apply
// to the live path. All registered providers must share one dimensionality;
// mixing dimensions would corrupt collections on failover.
type RoutedEmbedding struct {
	router    *Router
	providers map[string]provider.EmbeddingProvider
	primary   provider.EmbeddingProvider
	timeout   time.Duration
}

var _ provider.EmbeddingProvider = (*RoutedEmbedding)(nil)

// NewRoutedEmbedding creates the routed adapter. primary names the provider
// that answers Dimensions and ProviderName; it must be present in providers.
func NewRoutedEmbedding(router *Router, providers map[string]provider.EmbeddingProvider, primary string, timeout time.Duration) (*RoutedEmbedding, error) {
	p, ok := providers[primary]
	if !ok {
		return nil, errs.Newf(errs.KindConfig, "primary embedding provider %q is not registered", primary)
	}
	for id, candidate := range providers {
		if candidate.Dimensions() != p.Dimensions() {
			return nil, errs.Newf(errs.KindConfig,
				"embedding provider %q has %d dimensions, primary has %d",
				id, candidate.Dimensions(), p.Dimensions())
		}
	}
	if timeout <= 0 {
		timeout = provider.DefaultCallTimeout
	}
	return &RoutedEmbedding{
		router:    router,
		providers: providers,
		primary:   p,
		timeout:   timeout,
	}, nil
}

// Embed embeds one text via the first healthy candidate.
func (r *RoutedEmbedding) Embed(ctx context.Context, text string) (provider.Embedding, error) {
	var out provider.Embedding
	err := r.execute(ctx, "embed", func(ctx context.Context, p provider.EmbeddingProvider) error {
		embedding, err := p.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = embedding
		return nil
	})
	return out, err
}

// EmbedBatch embeds a batch via the first healthy candidate, preserving
// input order.
func (r *RoutedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([]provider.Embedding, error) {
	var out []provider.Embedding
	err := r.execute(ctx, "embed_batch", func(ctx context.Context, p provider.EmbeddingProvider) error {
		embeddings, err := p.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		out = embeddings
		return nil
	})
	return out, err
}

func (r *RoutedEmbedding) execute(ctx context.Context, operation string, fn func(ctx context.Context, p provider.EmbeddingProvider) error) error {
	return r.router.Execute(ctx, operation, func(ctx context.Context, providerID string) error {
		p, ok := r.providers[providerID]
		if !ok {
			return errs.Newf(errs.KindConfig, "embedding provider %q is not registered", providerID)
		}
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return fn(callCtx, p)
	})
}

// Dimensions returns the primary provider's dimensionality.
func (r *RoutedEmbedding) Dimensions() int { return r.primary.Dimensions() }

// ProviderName identifies the routed stack by its primary.
func (r *RoutedEmbedding) ProviderName() string { return "routed:" + r.primary.ProviderName() }

// HealthCheck probes the primary provider.
func (r *RoutedEmbedding) HealthCheck(ctx context.Context) error {
	return r.primary.HealthCheck(ctx)
}
