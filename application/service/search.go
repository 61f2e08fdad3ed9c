package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// candidateOversample widens the semantic fetch so fusion has lexical-only
// hits to rank against.
const candidateOversample = 3

// embeddingCacheTTL bounds how long a query embedding stays cached.
const embeddingCacheTTL = 10 * time.Minute

// Search answers queries by fetching semantic candidates from the vector
// store and handing them to the hybrid engine for score fusion.
type Search struct {
	embedder provider.EmbeddingProvider
	store    provider.VectorStoreProvider
	hybrid   provider.HybridSearchProvider
	cache    provider.CacheProvider
	logger   *slog.Logger
}

// NewSearch creates the search service. cache may be nil.
func NewSearch(
	embedder provider.EmbeddingProvider,
	store provider.VectorStoreProvider,
	hybrid provider.HybridSearchProvider,
	cache provider.CacheProvider,
	logger *slog.Logger,
) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{embedder: embedder, store: store, hybrid: hybrid, cache: cache, logger: logger}
}

// Query runs one hybrid search. An empty query yields no results; a
// collection with no vectors yields whatever the lexical index can serve.
func (s *Search) Query(ctx context.Context, query search.Query) ([]search.Result, error) {
	if query.Text() == "" {
		return nil, nil
	}

	candidates, err := s.semanticCandidates(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.hybrid.Search(ctx, query, candidates)
}

func (s *Search) semanticCandidates(ctx context.Context, query search.Query) ([]provider.SemanticCandidate, error) {
	exists, err := s.store.CollectionExists(ctx, query.Collection())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	vector, err := s.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.SearchSimilar(ctx, query.Collection(), vector, query.Limit()*candidateOversample, nil)
	if err != nil {
		return nil, err
	}
	candidates := make([]provider.SemanticCandidate, len(hits))
	for i, hit := range hits {
		candidates[i] = provider.NewSemanticCandidate(hit)
	}
	return candidates, nil
}

// queryVector embeds the query text, serving repeats from the cache. Cache
// faults are treated as misses.
func (s *Search) queryVector(ctx context.Context, query search.Query) ([]float32, error) {
	key := s.cacheKey(query.Text())
	namespace := "embeddings:" + query.Collection()

	if s.cache != nil {
		if data, found, err := s.cache.Get(ctx, namespace, key); err == nil && found {
			var vector []float32
			if json.Unmarshal(data, &vector) == nil && len(vector) > 0 {
				return vector, nil
			}
		}
	}

	embedding, err := s.embedder.Embed(ctx, query.Text())
	if err != nil {
		return nil, err
	}
	vector := embedding.Vector()

	if s.cache != nil {
		if data, err := json.Marshal(vector); err == nil {
			if err := s.cache.Set(ctx, namespace, key, data, embeddingCacheTTL); err != nil {
				s.logger.Debug("caching query embedding failed", slog.String("error", err.Error()))
			}
		}
	}
	return vector, nil
}

func (s *Search) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.embedder.ProviderName() + ":" + text))
	return hex.EncodeToString(sum[:])
}
