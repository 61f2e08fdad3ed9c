package hybrid

import (
	"sort"

	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// fusedHit carries the intermediate scores for one candidate during fusion.
type fusedHit struct {
	result   search.Result
	bm25Norm float64
	semantic float64
	final    float64
}

// normalizeBM25 min-max normalizes raw BM25 scores over the candidate id
// set. Ids absent from the map count as 0. A flat score distribution
// normalizes to all zeros, which hands the ranking to the semantic side.
func normalizeBM25(raw map[string]float64, ids []string) map[string]float64 {
	normalized := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return normalized
	}
	min, max := raw[ids[0]], raw[ids[0]]
	for _, id := range ids[1:] {
		s := raw[id]
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	for _, id := range ids {
		if max > min {
			normalized[id] = (raw[id] - min) / (max - min)
		} else {
			normalized[id] = 0
		}
	}
	return normalized
}

// fuse combines raw BM25 scores with semantic candidates into a single
// ranking of at most limit results. The candidate set is the union of both
// sides; ties break on higher raw semantic score, then on id.
func fuse(idx *bm25Index, rawBM25 map[string]float64, candidates []provider.SemanticCandidate, weights search.Weights, limit int) []search.Result {
	hits := map[string]*fusedHit{}

	for _, c := range candidates {
		r := c.Result()
		hits[r.ID()] = &fusedHit{result: r, semantic: r.Score()}
	}
	for id := range rawBM25 {
		if _, ok := hits[id]; ok {
			continue
		}
		doc, ok := idx.lookup(id)
		if !ok {
			continue
		}
		hits[id] = &fusedHit{
			result: search.NewResult(doc.id, doc.content, doc.filePath, doc.startLine, 0, doc.language),
		}
	}

	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	bm25Norm := normalizeBM25(rawBM25, ids)

	ranked := make([]*fusedHit, 0, len(hits))
	for id, hit := range hits {
		hit.bm25Norm = bm25Norm[id]
		hit.final = weights.BM25()*hit.bm25Norm + weights.Semantic()*hit.semantic
		ranked = append(ranked, hit)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].final != ranked[j].final {
			return ranked[i].final > ranked[j].final
		}
		if ranked[i].semantic != ranked[j].semantic {
			return ranked[i].semantic > ranked[j].semantic
		}
		return ranked[i].result.ID() < ranked[j].result.ID()
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	results := make([]search.Result, len(ranked))
	for i, hit := range ranked {
		results[i] = hit.result.WithScore(hit.final)
	}
	return results
}

// passthrough returns the semantic candidates as results, sorted by their
// own scores. Used when a collection has no lexical index.
func passthrough(candidates []provider.SemanticCandidate, limit int) []search.Result {
	results := make([]search.Result, len(candidates))
	for i, c := range candidates {
		results[i] = c.Result()
	}
	search.SortByScore(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
