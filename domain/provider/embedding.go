// Package provider defines the capability contracts implemented by
// embedding, vector-store, cache, and crypto backends. Concrete adapters
// live under infrastructure; the application layer depends only on these
// interfaces.
package provider

import (
	"context"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// Embedding is a dense vector representation of a text. Immutable once
// produced; vector length always equals Dimensions.
type Embedding struct {
	vector     []float32
	dimensions int
	model      string
}

// NewEmbedding creates an Embedding. Dimensions are derived from the vector.
func NewEmbedding(vector []float32, model string) Embedding {
	v := make([]float32, len(vector))
	copy(v, vector)
	return Embedding{vector: v, dimensions: len(v), model: model}
}

// Vector returns a copy of the embedding vector.
func (e Embedding) Vector() []float32 {
	v := make([]float32, len(e.vector))
	copy(v, e.vector)
	return v
}

// Dimensions returns the vector dimensionality.
func (e Embedding) Dimensions() int { return e.dimensions }

// Model returns the name of the model that produced the embedding.
func (e Embedding) Model() string { return e.model }

// Validate checks that the vector is non-empty and its length matches the
// declared dimensionality.
func (e Embedding) Validate() error {
	if len(e.vector) == 0 {
		return errs.New(errs.KindEmbedding, "embedding vector is empty")
	}
	if len(e.vector) != e.dimensions {
		return errs.Newf(errs.KindEmbedding, "vector length %d does not match dimensions %d", len(e.vector), e.dimensions)
	}
	return nil
}

// EmbeddingProvider produces embeddings for texts.
type EmbeddingProvider interface {
	// Embed produces an embedding for a single text.
	Embed(ctx context.Context, text string) (Embedding, error)

	// EmbedBatch produces embeddings for a batch of texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)

	// Dimensions returns the dimensionality this provider produces.
	Dimensions() int

	// ProviderName returns the registered provider name.
	ProviderName() string

	// HealthCheck probes the provider.
	HealthCheck(ctx context.Context) error
}
