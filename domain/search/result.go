// Package search defines the search domain model: queries, ranked results,
// and the statistics surfaces exposed by the hybrid engine.
package search

import (
	"sort"

	"github.com/mcb/mcp-context-browser/domain/chunk"
)

// Result is a single ranked search hit. Scores are normalized to [0, 1]
// within a response set.
type Result struct {
	id        string
	content   string
	filePath  string
	startLine int
	score     float64
	language  chunk.Language
}

// NewResult creates a Result.
func NewResult(id, content, filePath string, startLine int, score float64, language chunk.Language) Result {
	return Result{
		id:        id,
		content:   content,
		filePath:  filePath,
		startLine: startLine,
		score:     score,
		language:  language,
	}
}

// ID returns the chunk identifier of the hit.
func (r Result) ID() string { return r.id }

// Content returns the matched chunk content.
func (r Result) Content() string { return r.content }

// FilePath returns the source file path of the hit.
func (r Result) FilePath() string { return r.filePath }

// StartLine returns the 1-indexed first line of the matched chunk.
func (r Result) StartLine() int { return r.startLine }

// Score returns the normalized relevance score.
func (r Result) Score() float64 { return r.score }

// Language returns the language tag of the matched chunk.
func (r Result) Language() chunk.Language { return r.language }

// WithScore returns a copy of the result carrying the given score.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}

// SortByScore sorts results by score descending, in place.
// Ties break on id ascending so result ordering is deterministic.
func SortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
}
