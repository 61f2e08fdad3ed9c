package provider

import (
	"context"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// SemanticCandidate pairs a chunk id with its semantic similarity score,
// assumed already normalized to [0, 1].
type SemanticCandidate struct {
	result search.Result
}

// NewSemanticCandidate creates a SemanticCandidate from a vector search hit.
func NewSemanticCandidate(result search.Result) SemanticCandidate {
	return SemanticCandidate{result: result}
}

// Result returns the underlying vector search hit.
func (c SemanticCandidate) Result() search.Result { return c.result }

// HybridSearchProvider is the port over the hybrid search engine. It owns
// the per-collection BM25 state and fuses lexical scores with the semantic
// candidates supplied by the caller.
type HybridSearchProvider interface {
	// IndexChunks adds or replaces chunks in a collection's lexical index.
	// Indexing is best-effort: invalid chunks are skipped.
	IndexChunks(ctx context.Context, collection string, chunks []chunk.CodeChunk) error

	// RemoveByFile removes every indexed chunk of the given file.
	RemoveByFile(ctx context.Context, collection, filePath string) error

	// Search fuses BM25 scores for the query with the semantic candidates
	// and returns the fused top-k ranking.
	Search(ctx context.Context, query search.Query, candidates []SemanticCandidate) ([]search.Result, error)

	// ClearCollection drops a collection's lexical index.
	ClearCollection(ctx context.Context, collection string) error

	// Stats returns index statistics for a collection.
	Stats(ctx context.Context, collection string) (search.Stats, error)
}
