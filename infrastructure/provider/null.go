package provider

import (
	"context"

	"github.com/mcb/mcp-context-browser/domain/provider"
)

// NullDimensions is the dimensionality of null embeddings.
const NullDimensions = 8

// NullProvider returns zero vectors. It exists for explicit configuration
// in tests and offline runs; production config must name a real provider.
type NullProvider struct{}

var _ provider.EmbeddingProvider = NullProvider{}

// NewNullProvider creates a NullProvider.
func NewNullProvider() NullProvider { return NullProvider{} }

// ProviderName identifies the provider.
func (NullProvider) ProviderName() string { return "null" }

// Dimensions returns the null dimensionality.
func (NullProvider) Dimensions() int { return NullDimensions }

// Embed returns a zero vector.
func (NullProvider) Embed(ctx context.Context, text string) (provider.Embedding, error) {
	return provider.NewEmbedding(make([]float32, NullDimensions), "null"), nil
}

// EmbedBatch returns one zero vector per text.
func (p NullProvider) EmbedBatch(ctx context.Context, texts []string) ([]provider.Embedding, error) {
	embeddings := make([]provider.Embedding, len(texts))
	for i := range texts {
		embeddings[i], _ = p.Embed(ctx, texts[i])
	}
	return embeddings, nil
}

// HealthCheck always succeeds.
func (NullProvider) HealthCheck(ctx context.Context) error { return nil }
