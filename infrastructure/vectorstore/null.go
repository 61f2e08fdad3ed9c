package vectorstore

import (
	"context"

	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// NullStore accepts every write and returns nothing. It exists for explicit
// configuration only, never as a silent fallback.
type NullStore struct{}

var _ provider.VectorStoreProvider = NullStore{}

// NewNullStore creates a NullStore.
func NewNullStore() NullStore { return NullStore{} }

// ProviderName identifies the backend.
func (NullStore) ProviderName() string { return "null" }

// CreateCollection is a no-op.
func (NullStore) CreateCollection(ctx context.Context, name string, dimensions int) error { return nil }

// DeleteCollection is a no-op.
func (NullStore) DeleteCollection(ctx context.Context, name string) error { return nil }

// CollectionExists always reports true so callers skip creation.
func (NullStore) CollectionExists(ctx context.Context, name string) (bool, error) { return true, nil }

// InsertVectors discards the records and echoes their ids.
func (NullStore) InsertVectors(ctx context.Context, collection string, records []provider.VectorRecord) ([]string, error) {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	return ids, nil
}

// SearchSimilar returns no results.
func (NullStore) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int, filter provider.Filter) ([]search.Result, error) {
	return nil, nil
}

// DeleteByFilter removes nothing.
func (NullStore) DeleteByFilter(ctx context.Context, collection string, filter provider.Filter) (int, error) {
	return 0, nil
}

// Stats reports an empty collection.
func (NullStore) Stats(ctx context.Context, collection string) (provider.CollectionStats, error) {
	return provider.CollectionStats{
		"provider":     "null",
		"collection":   collection,
		"vector_count": 0,
	}, nil
}

// HealthCheck always succeeds.
func (NullStore) HealthCheck(ctx context.Context) error { return nil }
