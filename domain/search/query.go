package search

// DefaultCollection is used when a caller does not name a collection.
const DefaultCollection = "default"

// DefaultLimit caps result sets when a caller does not supply one.
const DefaultLimit = 10

// Query describes one search request against a collection.
type Query struct {
	text       string
	limit      int
	collection string
}

// NewQuery creates a Query, applying defaults for limit and collection.
func NewQuery(text string, limit int, collection string) Query {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return Query{text: text, limit: limit, collection: collection}
}

// Text returns the raw query text.
func (q Query) Text() string { return q.text }

// Limit returns the maximum number of results to return.
func (q Query) Limit() int { return q.limit }

// Collection returns the collection the query targets.
func (q Query) Collection() string { return q.collection }

// Weights holds the hybrid score fusion weights. BM25Weight + SemanticWeight
// must equal 1.
type Weights struct {
	bm25     float64
	semantic float64
}

// NewWeights creates fusion weights. Out-of-range or inconsistent values
// fall back to the defaults (0.4 BM25, 0.6 semantic).
func NewWeights(bm25, semantic float64) Weights {
	const epsilon = 1e-9
	if bm25 < 0 || semantic < 0 || diff(bm25+semantic, 1) > epsilon {
		return DefaultWeights()
	}
	return Weights{bm25: bm25, semantic: semantic}
}

// DefaultWeights returns the default fusion weights.
func DefaultWeights() Weights {
	return Weights{bm25: 0.4, semantic: 0.6}
}

// BM25 returns the lexical weight.
func (w Weights) BM25() float64 { return w.bm25 }

// Semantic returns the semantic weight.
func (w Weights) Semantic() float64 { return w.semantic }

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Stats summarizes the state of one collection's lexical index.
type Stats struct {
	collection     string
	documentCount  int
	termCount      int
	averageDocLen  float64
	totalTokens    int
	searchesServed uint64
}

// NewStats creates a Stats snapshot.
func NewStats(collection string, documentCount, termCount int, averageDocLen float64, totalTokens int, searchesServed uint64) Stats {
	return Stats{
		collection:     collection,
		documentCount:  documentCount,
		termCount:      termCount,
		averageDocLen:  averageDocLen,
		totalTokens:    totalTokens,
		searchesServed: searchesServed,
	}
}

// Collection returns the collection name.
func (s Stats) Collection() string { return s.collection }

// DocumentCount returns the number of indexed documents.
func (s Stats) DocumentCount() int { return s.documentCount }

// TermCount returns the number of distinct terms.
func (s Stats) TermCount() int { return s.termCount }

// AverageDocLen returns the mean document length in tokens.
func (s Stats) AverageDocLen() float64 { return s.averageDocLen }

// TotalTokens returns the total token count across documents.
func (s Stats) TotalTokens() int { return s.totalTokens }

// SearchesServed returns the number of searches answered.
func (s Stats) SearchesServed() uint64 { return s.searchesServed }
