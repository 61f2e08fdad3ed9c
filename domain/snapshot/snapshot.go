// Package snapshot models point-in-time views of an indexed directory tree
// and the pure comparison between two such views. Snapshots drive
// incremental sync: only files whose content hash changed are re-indexed.
package snapshot

import (
	"sort"
	"time"
)

// FileSnapshot records one file's identity at capture time. The hash is the
// lowercase hex SHA-256 of the file content.
type FileSnapshot struct {
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	Modified  time.Time `json:"modified"`
	Extension string    `json:"extension"`
}

// Snapshot is a point-in-time view of a directory tree. Files are keyed by
// path relative to RootPath, using forward slashes.
type Snapshot struct {
	RootPath  string                  `json:"root_path"`
	CreatedAt time.Time               `json:"created_at"`
	Files     map[string]FileSnapshot `json:"files"`
}

// New creates an empty Snapshot for a root path captured at now.
func New(rootPath string, now time.Time) Snapshot {
	return Snapshot{
		RootPath:  rootPath,
		CreatedAt: now,
		Files:     map[string]FileSnapshot{},
	}
}

// Add records a file in the snapshot.
func (s Snapshot) Add(relPath string, file FileSnapshot) {
	s.Files[relPath] = file
}

// Len returns the number of files in the snapshot.
func (s Snapshot) Len() int { return len(s.Files) }

// Diff partitions the paths of two snapshots. Every path in either snapshot
// lands in exactly one bucket: present only in current is added, present
// only in previous is removed, present in both with differing hashes is
// modified, otherwise unchanged. Slices are sorted for deterministic output.
type Diff struct {
	Added     []string
	Modified  []string
	Removed   []string
	Unchanged []string
}

// ChangedCount returns how many paths require index work.
func (d Diff) ChangedCount() int {
	return len(d.Added) + len(d.Modified) + len(d.Removed)
}

// Empty reports whether the two snapshots were identical.
func (d Diff) Empty() bool { return d.ChangedCount() == 0 }

// Compare diffs current against previous. Only the content hash decides
// modification; size and mtime are informational.
func Compare(previous, current Snapshot) Diff {
	var diff Diff
	for path, file := range current.Files {
		prev, ok := previous.Files[path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, path)
		case prev.Hash != file.Hash:
			diff.Modified = append(diff.Modified, path)
		default:
			diff.Unchanged = append(diff.Unchanged, path)
		}
	}
	for path := range previous.Files {
		if _, ok := current.Files[path]; !ok {
			diff.Removed = append(diff.Removed, path)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Unchanged)
	return diff
}
