package snapshot

import (
	"testing"
	"time"
)

func file(hash string) FileSnapshot {
	return FileSnapshot{Hash: hash, Size: 10, Modified: time.Unix(1000, 0), Extension: ".go"}
}

func TestCompare_PartitionsPaths(t *testing.T) {
	now := time.Now()

	previous := New("/repo", now)
	previous.Add("kept.go", file("aaa"))
	previous.Add("changed.go", file("bbb"))
	previous.Add("gone.go", file("ccc"))

	current := New("/repo", now)
	current.Add("kept.go", file("aaa"))
	current.Add("changed.go", file("ddd"))
	current.Add("new.go", file("eee"))

	diff := Compare(previous, current)

	if len(diff.Added) != 1 || diff.Added[0] != "new.go" {
		t.Errorf("added: expected [new.go], got %v", diff.Added)
	}
	if len(diff.Modified) != 1 || diff.Modified[0] != "changed.go" {
		t.Errorf("modified: expected [changed.go], got %v", diff.Modified)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "gone.go" {
		t.Errorf("removed: expected [gone.go], got %v", diff.Removed)
	}
	if len(diff.Unchanged) != 1 || diff.Unchanged[0] != "kept.go" {
		t.Errorf("unchanged: expected [kept.go], got %v", diff.Unchanged)
	}
	if diff.ChangedCount() != 3 {
		t.Errorf("expected 3 changed paths, got %d", diff.ChangedCount())
	}
}

func TestCompare_EveryPathInExactlyOneBucket(t *testing.T) {
	now := time.Now()

	previous := New("/repo", now)
	current := New("/repo", now)
	paths := []string{"a.go", "b.go", "c.go", "d.go"}
	previous.Add(paths[0], file("h0"))
	previous.Add(paths[1], file("h1"))
	current.Add(paths[1], file("h1x"))
	current.Add(paths[2], file("h2"))
	current.Add(paths[3], file("h3"))

	diff := Compare(previous, current)

	seen := map[string]int{}
	for _, bucket := range [][]string{diff.Added, diff.Modified, diff.Removed, diff.Unchanged} {
		for _, p := range bucket {
			seen[p]++
		}
	}
	for _, p := range paths {
		if seen[p] != 1 {
			t.Errorf("path %q appears in %d buckets, expected 1", p, seen[p])
		}
	}
}

func TestCompare_IdenticalSnapshotsAreEmpty(t *testing.T) {
	now := time.Now()
	previous := New("/repo", now)
	previous.Add("a.go", file("aaa"))
	current := New("/repo", now.Add(time.Minute))
	current.Add("a.go", file("aaa"))

	diff := Compare(previous, current)
	if !diff.Empty() {
		t.Errorf("expected empty diff, got %+v", diff)
	}
}

func TestCompare_HashDecidesModification(t *testing.T) {
	now := time.Now()
	previous := New("/repo", now)
	previous.Add("a.go", FileSnapshot{Hash: "same", Size: 10, Modified: time.Unix(1000, 0)})
	current := New("/repo", now)
	// Same hash but different size and mtime: still unchanged.
	current.Add("a.go", FileSnapshot{Hash: "same", Size: 99, Modified: time.Unix(2000, 0)})

	diff := Compare(previous, current)
	if len(diff.Modified) != 0 {
		t.Errorf("expected no modifications, got %v", diff.Modified)
	}
	if len(diff.Unchanged) != 1 {
		t.Errorf("expected a.go unchanged, got %v", diff.Unchanged)
	}
}

func TestCompare_AgainstEmptyPrevious(t *testing.T) {
	now := time.Now()
	current := New("/repo", now)
	current.Add("a.go", file("aaa"))
	current.Add("b.go", file("bbb"))

	diff := Compare(New("/repo", now), current)
	if len(diff.Added) != 2 {
		t.Errorf("expected every file added, got %v", diff.Added)
	}
	if diff.Added[0] != "a.go" || diff.Added[1] != "b.go" {
		t.Errorf("expected sorted output, got %v", diff.Added)
	}
}
