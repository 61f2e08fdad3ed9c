package hybrid

import (
	"math"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

type document struct {
	id        string
	content   string
	filePath  string
	startLine int
	language  chunk.Language
	termFreq  map[string]int
	length    int
}

// bm25Index is the per-collection lexical index. It is not safe for
// concurrent use; the actor serializes all access.
type bm25Index struct {
	k1 float64
	b  float64

	// Documents keyed by (file_path, start_line).
	docs map[string]*document
	// Same documents keyed by chunk id, for candidate joins during fusion.
	byID        map[string]*document
	docFreq     map[string]int
	totalTokens int
	searches    uint64
}

func newBM25Index(k1, b float64) *bm25Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return &bm25Index{
		k1:      k1,
		b:       b,
		docs:    map[string]*document{},
		byID:    map[string]*document{},
		docFreq: map[string]int{},
	}
}

// add indexes one chunk, replacing any prior entry with the same dedupe key
// and updating the derived statistics.
func (idx *bm25Index) add(c chunk.CodeChunk) {
	key := c.DedupeKey()
	if existing, ok := idx.docs[key]; ok {
		idx.remove(existing, key)
	}

	tokens := Tokenize(c.Content())
	doc := &document{
		id:        c.ID(),
		content:   c.Content(),
		filePath:  c.FilePath(),
		startLine: c.StartLine(),
		language:  c.Language(),
		termFreq:  make(map[string]int, len(tokens)),
		length:    len(tokens),
	}
	for _, t := range tokens {
		doc.termFreq[t]++
	}
	for t := range doc.termFreq {
		idx.docFreq[t]++
	}
	idx.docs[key] = doc
	idx.byID[doc.id] = doc
	idx.totalTokens += doc.length
}

func (idx *bm25Index) remove(doc *document, key string) {
	for t := range doc.termFreq {
		if idx.docFreq[t] <= 1 {
			delete(idx.docFreq, t)
		} else {
			idx.docFreq[t]--
		}
	}
	idx.totalTokens -= doc.length
	delete(idx.docs, key)
	delete(idx.byID, doc.id)
}

// removeByFile drops every document of the given file.
func (idx *bm25Index) removeByFile(filePath string) int {
	removed := 0
	for key, doc := range idx.docs {
		if doc.filePath == filePath {
			idx.remove(doc, key)
			removed++
		}
	}
	return removed
}

func (idx *bm25Index) avgDocLen() float64 {
	if len(idx.docs) == 0 {
		return 0
	}
	return float64(idx.totalTokens) / float64(len(idx.docs))
}

func (idx *bm25Index) idf(term string) float64 {
	df := idx.docFreq[term]
	n := len(idx.docs)
	return math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// score computes raw BM25 scores for the query tokens over every document
// containing at least one of them.
func (idx *bm25Index) score(queryTokens []string) map[string]float64 {
	scores := map[string]float64{}
	if len(idx.docs) == 0 {
		return scores
	}
	avgLen := idx.avgDocLen()
	for _, term := range queryTokens {
		if idx.docFreq[term] == 0 {
			continue
		}
		idf := idx.idf(term)
		for _, doc := range idx.docs {
			tf := doc.termFreq[term]
			if tf == 0 {
				continue
			}
			f := float64(tf)
			norm := idx.k1 * (1 - idx.b + idx.b*float64(doc.length)/avgLen)
			scores[doc.id] += idf * (f * (idx.k1 + 1)) / (f + norm)
		}
	}
	return scores
}

func (idx *bm25Index) lookup(id string) (*document, bool) {
	doc, ok := idx.byID[id]
	return doc, ok
}

func (idx *bm25Index) stats(collection string) search.Stats {
	return search.NewStats(
		collection,
		len(idx.docs),
		len(idx.docFreq),
		idx.avgDocLen(),
		idx.totalTokens,
		idx.searches,
	)
}
