package vectorstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

type memoryRecord struct {
	vector   []float32
	metadata map[string]string
}

type memoryCollection struct {
	dimensions int
	records    map[string]memoryRecord
}

// MemoryStore is a brute-force in-memory vector store. It is the default
// backend for tests and small corpora.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ provider.VectorStoreProvider = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]*memoryCollection{}}
}

// ProviderName identifies the backend.
func (s *MemoryStore) ProviderName() string { return "memory" }

// CreateCollection registers a collection with a fixed dimensionality.
// Creating an existing collection is a no-op when the dimensions match.
func (s *MemoryStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return errs.Newf(errs.KindVectorStore, "collection %q: dimensions must be positive", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[name]; ok {
		if existing.dimensions != dimensions {
			return errs.Newf(errs.KindVectorStore, "collection %q exists with %d dimensions, requested %d",
				name, existing.dimensions, dimensions)
		}
		return nil
	}
	s.collections[name] = &memoryCollection{
		dimensions: dimensions,
		records:    map[string]memoryRecord{},
	}
	return nil
}

// DeleteCollection removes a collection and its vectors. Deleting an absent
// collection is not an error.
func (s *MemoryStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// CollectionExists reports whether a collection is registered.
func (s *MemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// InsertVectors stores records in a collection and returns their ids,
// generating one for each record that arrived without.
func (s *MemoryStore) InsertVectors(ctx context.Context, collection string, records []provider.VectorRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, errs.Newf(errs.KindVectorStore, "collection %q does not exist", collection)
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		vector := r.Embedding().Vector()
		if len(vector) != col.dimensions {
			return nil, errs.Newf(errs.KindVectorStore,
				"collection %q: vector has %d dimensions, expected %d", collection, len(vector), col.dimensions)
		}
		id := r.ID()
		if id == "" {
			id = uuid.NewString()
		}
		col.records[id] = memoryRecord{vector: vector, metadata: r.Metadata()}
		ids = append(ids, id)
	}
	return ids, nil
}

// SearchSimilar returns the top-limit records by cosine similarity, most
// similar first. Filtered records are excluded before ranking.
func (s *MemoryStore) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int, filter provider.Filter) ([]search.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, errs.Newf(errs.KindVectorStore, "collection %q does not exist", collection)
	}
	if len(vector) != col.dimensions {
		return nil, errs.Newf(errs.KindVectorStore,
			"collection %q: query vector has %d dimensions, expected %d", collection, len(vector), col.dimensions)
	}
	results := make([]search.Result, 0, len(col.records))
	for id, rec := range col.records {
		if !filter.Matches(rec.metadata) {
			continue
		}
		score := similarityScore(cosineSimilarity(vector, rec.vector))
		results = append(results, resultFromMetadata(id, rec.metadata, score))
	}
	search.SortByScore(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByFilter removes every record whose metadata matches the filter and
// returns how many were removed.
func (s *MemoryStore) DeleteByFilter(ctx context.Context, collection string, filter provider.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return 0, errs.Newf(errs.KindVectorStore, "collection %q does not exist", collection)
	}
	removed := 0
	for id, rec := range col.records {
		if filter.Matches(rec.metadata) {
			delete(col.records, id)
			removed++
		}
	}
	return removed, nil
}

// Stats reports the record count and dimensionality of a collection.
func (s *MemoryStore) Stats(ctx context.Context, collection string) (provider.CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, errs.Newf(errs.KindVectorStore, "collection %q does not exist", collection)
	}
	return provider.CollectionStats{
		"provider":     s.ProviderName(),
		"collection":   collection,
		"vector_count": len(col.records),
		"dimensions":   col.dimensions,
	}, nil
}

// HealthCheck always succeeds for the in-memory backend.
func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }
