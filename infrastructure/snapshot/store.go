package snapshot

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/snapshot"
)

// Store persists one snapshot per collection as JSON under
// {dataDir}/snapshots.
type Store struct {
	dir string
}

// NewStore creates the snapshot directory if needed.
func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrapf(errs.KindIo, err, "creating snapshot directory %q", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, url.PathEscape(collection)+".json")
}

// Load returns the stored snapshot for a collection. A collection that was
// never synced yields found=false.
func (s *Store) Load(collection string) (snapshot.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path(collection))
	if os.IsNotExist(err) {
		return snapshot.Snapshot{}, false, nil
	}
	if err != nil {
		return snapshot.Snapshot{}, false, errs.Wrapf(errs.KindIo, err, "reading snapshot for %q", collection)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot.Snapshot{}, false, errs.Wrapf(errs.KindIo, err, "decoding snapshot for %q", collection)
	}
	return snap, true, nil
}

// Save writes the snapshot atomically.
func (s *Store) Save(collection string, snap snapshot.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errs.Wrapf(errs.KindIo, err, "encoding snapshot for %q", collection)
	}
	target := s.path(collection)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrapf(errs.KindIo, err, "writing snapshot for %q", collection)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return errs.Wrapf(errs.KindIo, err, "replacing snapshot for %q", collection)
	}
	return nil
}

// Delete removes the stored snapshot. Missing files are not an error.
func (s *Store) Delete(collection string) error {
	err := os.Remove(s.path(collection))
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(errs.KindIo, err, "deleting snapshot for %q", collection)
	}
	return nil
}
