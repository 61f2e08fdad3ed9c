// Package vectorstore provides the vector store backends: a brute-force
// in-memory store, a JSON-file-backed store, a SQLite store, a null store,
// and an encrypting decorator. Backends are selected by name through the
// factory.
package vectorstore

import (
	"math"
	"strconv"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// Metadata keys written by the indexing service and read back into results.
const (
	MetaContent   = "content"
	MetaFilePath  = "file_path"
	MetaStartLine = "start_line"
	MetaLanguage  = "language"
)

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// similarityScore maps a cosine similarity in [-1, 1] onto [0, 1], the range
// the fusion stage expects.
func similarityScore(cos float64) float64 {
	s := (cos + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// resultFromMetadata rebuilds a search result from a stored metadata map.
func resultFromMetadata(id string, metadata map[string]string, score float64) search.Result {
	startLine, _ := strconv.Atoi(metadata[MetaStartLine])
	return search.NewResult(
		id,
		metadata[MetaContent],
		metadata[MetaFilePath],
		startLine,
		score,
		chunk.Language(metadata[MetaLanguage]),
	)
}
