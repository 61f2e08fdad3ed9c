package routing

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// BreakerStore persists circuit state to <dir>/<provider>.json so an open
// circuit survives a restart instead of hammering a still-broken provider.
type BreakerStore struct {
	dir string
}

// NewBreakerStore creates a store rooted at dir, creating it if needed.
func NewBreakerStore(dir string) (*BreakerStore, error) {
	if dir == "" {
		return nil, errs.New(errs.KindConfig, "breaker store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindIo, "create breaker store directory", err)
	}
	return &BreakerStore{dir: dir}, nil
}

func (s *BreakerStore) path(providerID string) string {
	return filepath.Join(s.dir, url.PathEscape(providerID)+".json")
}

// Save writes one provider's breaker snapshot atomically.
func (s *BreakerStore) Save(providerID string, snap BreakerSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindIo, "encode breaker state", err)
	}
	path := s.path(providerID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.KindIo, "write breaker state", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindIo, "replace breaker state", err)
	}
	return nil
}

// Load reads one provider's persisted snapshot. found is false when no state
// was persisted.
func (s *BreakerStore) Load(providerID string) (snap BreakerSnapshot, found bool, err error) {
	data, err := os.ReadFile(s.path(providerID))
	if os.IsNotExist(err) {
		return BreakerSnapshot{}, false, nil
	}
	if err != nil {
		return BreakerSnapshot{}, false, errs.Wrap(errs.KindIo, "read breaker state", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return BreakerSnapshot{}, false, errs.Wrap(errs.KindIo, "decode breaker state", err)
	}
	return snap, true, nil
}

// SaveAll persists the router's current breaker states.
func (s *BreakerStore) SaveAll(router *Router) error {
	for id, snap := range router.Snapshots() {
		if err := s.Save(id, snap); err != nil {
			return err
		}
	}
	return nil
}

// RestoreAll applies persisted state to the named candidates. Missing files
// leave the breaker closed.
func (s *BreakerStore) RestoreAll(router *Router, providerIDs []string) error {
	for _, id := range providerIDs {
		snap, found, err := s.Load(id)
		if err != nil {
			return err
		}
		if found {
			router.Breaker(id).Restore(snap.State, snap.OpenedAt)
		}
	}
	return nil
}
