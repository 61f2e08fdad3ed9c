package provider

import (
	"context"

	"github.com/mcb/mcp-context-browser/domain/search"
)

// Filter restricts a similarity search to vectors whose metadata matches
// every entry. An empty filter matches everything.
type Filter map[string]string

// Matches reports whether the metadata satisfies every filter entry.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, want := range f {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// VectorRecord pairs an embedding with the metadata stored alongside it.
type VectorRecord struct {
	id        string
	embedding Embedding
	metadata  map[string]string
}

// NewVectorRecord creates a VectorRecord.
func NewVectorRecord(id string, embedding Embedding, metadata map[string]string) VectorRecord {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return VectorRecord{id: id, embedding: embedding, metadata: meta}
}

// ID returns the record identifier.
func (r VectorRecord) ID() string { return r.id }

// Embedding returns the stored embedding.
func (r VectorRecord) Embedding() Embedding { return r.embedding }

// Metadata returns a copy of the stored metadata.
func (r VectorRecord) Metadata() map[string]string {
	result := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		result[k] = v
	}
	return result
}

// CollectionStats summarizes one collection inside a vector store.
type CollectionStats map[string]any

// VectorStoreProvider stores embeddings and answers similarity queries.
type VectorStoreProvider interface {
	// CreateCollection creates a named collection with a fixed dimensionality.
	// Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, name string, dimensions int) error

	// DeleteCollection removes a collection and all its vectors.
	DeleteCollection(ctx context.Context, name string) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// InsertVectors stores records and returns their ids in input order.
	InsertVectors(ctx context.Context, collection string, records []VectorRecord) ([]string, error)

	// SearchSimilar returns up to limit results ranked by cosine similarity,
	// restricted by the optional metadata filter.
	SearchSimilar(ctx context.Context, collection string, vector []float32, limit int, filter Filter) ([]search.Result, error)

	// DeleteByFilter removes every vector whose metadata matches the filter
	// and returns the number removed.
	DeleteByFilter(ctx context.Context, collection string, filter Filter) (int, error)

	// Stats returns collection statistics.
	Stats(ctx context.Context, collection string) (CollectionStats, error)

	// ProviderName returns the registered provider name.
	ProviderName() string

	// HealthCheck probes the store.
	HealthCheck(ctx context.Context) error
}
