package search

import "testing"

func TestNewQuery_Defaults(t *testing.T) {
	q := NewQuery("auth handler", 0, "")
	if q.Limit() != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, q.Limit())
	}
	if q.Collection() != DefaultCollection {
		t.Errorf("expected default collection, got %q", q.Collection())
	}
}

func TestNewWeights_FallsBackOnInvalid(t *testing.T) {
	cases := []struct {
		name           string
		bm25, semantic float64
		wantBM25       float64
	}{
		{"valid", 0.3, 0.7, 0.3},
		{"sum above one", 0.8, 0.8, 0.4},
		{"negative", -0.2, 1.2, 0.4},
		{"defaults", 0.4, 0.6, 0.4},
	}
	for _, tc := range cases {
		w := NewWeights(tc.bm25, tc.semantic)
		if w.BM25() != tc.wantBM25 {
			t.Errorf("%s: expected bm25 weight %v, got %v", tc.name, tc.wantBM25, w.BM25())
		}
	}
}

func TestSortByScore_TiesBreakByID(t *testing.T) {
	results := []Result{
		NewResult("b", "x", "b.go", 1, 0.5, "go"),
		NewResult("c", "x", "c.go", 1, 0.9, "go"),
		NewResult("a", "x", "a.go", 1, 0.5, "go"),
	}
	SortByScore(results)

	wantIDs := []string{"c", "a", "b"}
	for i, want := range wantIDs {
		if results[i].ID() != want {
			t.Errorf("position %d: expected %q, got %q", i, want, results[i].ID())
		}
	}
}
