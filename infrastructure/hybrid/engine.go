// Package hybrid implements the lexical half of search: a per-collection
// BM25 index plus weighted score fusion with semantic candidates. All index
// state is owned by a single-writer actor, so the engine is safe for
// concurrent use without locks.
package hybrid

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/event"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// Config tunes the engine.
type Config struct {
	k1            float64
	b             float64
	weights       search.Weights
	queueCapacity int
}

// NewConfig returns an engine Config with default BM25 parameters, default
// fusion weights, and the default queue capacity.
func NewConfig() Config {
	return Config{
		k1:            DefaultK1,
		b:             DefaultB,
		weights:       search.DefaultWeights(),
		queueCapacity: DefaultQueueCapacity,
	}
}

// WithK1 returns a copy with the BM25 k1 parameter set.
func (c Config) WithK1(k1 float64) Config { c.k1 = k1; return c }

// WithB returns a copy with the BM25 b parameter set.
func (c Config) WithB(b float64) Config { c.b = b; return c }

// WithWeights returns a copy with the fusion weights set.
func (c Config) WithWeights(w search.Weights) Config { c.weights = w; return c }

// WithQueueCapacity returns a copy with the actor mailbox capacity set.
func (c Config) WithQueueCapacity(n int) Config { c.queueCapacity = n; return c }

// Engine is the hybrid search engine.
type Engine struct {
	actor   *actor
	weights search.Weights
	bus     event.Bus
	logger  *slog.Logger
}

var _ provider.HybridSearchProvider = (*Engine)(nil)

// NewEngine creates an Engine and starts its actor goroutine. Close releases
// it.
func NewEngine(cfg Config, bus event.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		actor:   newActor(cfg.k1, cfg.b, cfg.queueCapacity),
		weights: cfg.weights,
		bus:     bus,
		logger:  logger,
	}
}

// Close stops the actor after draining queued work.
func (e *Engine) Close() {
	e.actor.close()
}

// IndexChunks adds chunks to a collection's lexical index. The write is
// acknowledged once queued; a full queue fails with a backpressure error.
// Invalid chunks are skipped and logged, and do not fail the call.
func (e *Engine) IndexChunks(ctx context.Context, collection string, chunks []chunk.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	valid := make([]chunk.CodeChunk, 0, len(chunks))
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			e.logger.Warn("skipping invalid chunk",
				slog.String("collection", collection),
				slog.String("file_path", c.FilePath()),
				slog.String("error", err.Error()))
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil
	}
	return e.actor.send(func(st *state) {
		idx := st.index(collection)
		for _, c := range valid {
			idx.add(c)
		}
	})
}

// RemoveByFile drops every indexed chunk of one file from a collection.
func (e *Engine) RemoveByFile(ctx context.Context, collection, filePath string) error {
	return e.actor.send(func(st *state) {
		if idx, ok := st.indexes[collection]; ok {
			idx.removeByFile(filePath)
		}
	})
}

// Search fuses BM25 scores for the query with the semantic candidates.
// An empty query yields an empty result. A collection with no lexical index
// passes the semantic candidates through unchanged and reports the search as
// degraded.
func (e *Engine) Search(ctx context.Context, query search.Query, candidates []provider.SemanticCandidate) ([]search.Result, error) {
	queryTokens := Tokenize(query.Text())
	if len(queryTokens) == 0 {
		return nil, nil
	}

	var results []search.Result
	var degraded bool
	err := e.actor.call(ctx, func(st *state) {
		idx, ok := st.indexes[query.Collection()]
		if !ok || len(idx.docs) == 0 {
			degraded = true
			results = passthrough(candidates, query.Limit())
			return
		}
		idx.searches++
		raw := idx.score(queryTokens)
		results = fuse(idx, raw, candidates, e.weights, query.Limit())
	})
	if err != nil {
		return nil, err
	}
	if degraded && e.bus != nil {
		e.bus.Publish(event.NewSearchDegraded(time.Now(), query.Collection(), "no lexical index for collection"))
	}
	return results, nil
}

// ClearCollection drops a collection's lexical index.
func (e *Engine) ClearCollection(ctx context.Context, collection string) error {
	return e.actor.send(func(st *state) {
		delete(st.indexes, collection)
	})
}

// Stats returns index statistics for a collection.
func (e *Engine) Stats(ctx context.Context, collection string) (search.Stats, error) {
	var stats search.Stats
	var missing bool
	err := e.actor.call(ctx, func(st *state) {
		idx, ok := st.indexes[collection]
		if !ok {
			missing = true
			return
		}
		stats = idx.stats(collection)
	})
	if err != nil {
		return search.Stats{}, err
	}
	if missing {
		return search.NewStats(collection, 0, 0, 0, 0, 0), nil
	}
	return stats, nil
}

// Flush blocks until every message queued before the call has been
// processed. Tests use it to observe writes.
func (e *Engine) Flush(ctx context.Context) error {
	return e.actor.call(ctx, func(*state) {})
}
