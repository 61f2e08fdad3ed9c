package vectorstore

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

type persistedRecord struct {
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata"`
}

type persistedCollection struct {
	Dimensions int                        `json:"dimensions"`
	Records    map[string]persistedRecord `json:"records"`
}

// FilesystemStore is a vector store persisted as one JSON file per
// collection under a root directory. All reads are served from memory; every
// mutation rewrites the collection file.
type FilesystemStore struct {
	mu   sync.Mutex
	root string
	mem  *MemoryStore
}

var _ provider.VectorStoreProvider = (*FilesystemStore)(nil)

// NewFilesystemStore opens or creates a store rooted at dir and loads every
// persisted collection.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if dir == "" {
		return nil, errs.New(errs.KindConfig, "filesystem vector store requires a path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrapf(errs.KindIo, err, "creating vector store directory %s", dir)
	}
	s := &FilesystemStore{root: dir, mem: NewMemoryStore()}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// ProviderName identifies the backend.
func (s *FilesystemStore) ProviderName() string { return "filesystem" }

func (s *FilesystemStore) collectionFile(name string) string {
	return filepath.Join(s.root, url.PathEscape(name)+".json")
}

func (s *FilesystemStore) loadAll() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return errs.Wrapf(errs.KindIo, err, "reading vector store directory %s", s.root)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			return errs.Wrapf(errs.KindIo, err, "reading collection file %s", entry.Name())
		}
		var persisted persistedCollection
		if err := json.Unmarshal(data, &persisted); err != nil {
			return errs.Wrapf(errs.KindVectorStore, err, "decoding collection file %s", entry.Name())
		}
		col := &memoryCollection{
			dimensions: persisted.Dimensions,
			records:    make(map[string]memoryRecord, len(persisted.Records)),
		}
		for id, rec := range persisted.Records {
			col.records[id] = memoryRecord{vector: rec.Vector, metadata: rec.Metadata}
		}
		s.mem.collections[name] = col
	}
	return nil
}

// persist must be called with s.mu held.
func (s *FilesystemStore) persist(name string) error {
	col, ok := s.mem.collections[name]
	if !ok {
		return os.Remove(s.collectionFile(name))
	}
	persisted := persistedCollection{
		Dimensions: col.dimensions,
		Records:    make(map[string]persistedRecord, len(col.records)),
	}
	for id, rec := range col.records {
		persisted.Records[id] = persistedRecord{Vector: rec.vector, Metadata: rec.metadata}
	}
	data, err := json.Marshal(persisted)
	if err != nil {
		return errs.Wrapf(errs.KindVectorStore, err, "encoding collection %q", name)
	}
	path := s.collectionFile(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrapf(errs.KindIo, err, "writing collection file for %q", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrapf(errs.KindIo, err, "replacing collection file for %q", name)
	}
	return nil
}

// CreateCollection creates a collection and its backing file.
func (s *FilesystemStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.CreateCollection(ctx, name, dimensions); err != nil {
		return err
	}
	return s.persist(name)
}

// DeleteCollection removes a collection and deletes its file.
func (s *FilesystemStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.DeleteCollection(ctx, name); err != nil {
		return err
	}
	if err := s.persist(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CollectionExists reports whether the collection exists.
func (s *FilesystemStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.mem.CollectionExists(ctx, name)
}

// InsertVectors stores records and rewrites the collection file.
func (s *FilesystemStore) InsertVectors(ctx context.Context, collection string, records []provider.VectorRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.mem.InsertVectors(ctx, collection, records)
	if err != nil {
		return nil, err
	}
	if err := s.persist(collection); err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchSimilar serves the query from the in-memory view.
func (s *FilesystemStore) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int, filter provider.Filter) ([]search.Result, error) {
	return s.mem.SearchSimilar(ctx, collection, vector, limit, filter)
}

// DeleteByFilter removes matching records and rewrites the collection file.
func (s *FilesystemStore) DeleteByFilter(ctx context.Context, collection string, filter provider.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.mem.DeleteByFilter(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if err := s.persist(collection); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// Stats reports collection statistics plus the backing path.
func (s *FilesystemStore) Stats(ctx context.Context, collection string) (provider.CollectionStats, error) {
	stats, err := s.mem.Stats(ctx, collection)
	if err != nil {
		return nil, err
	}
	stats["provider"] = s.ProviderName()
	stats["path"] = s.collectionFile(collection)
	return stats, nil
}

// HealthCheck verifies the root directory is still writable.
func (s *FilesystemStore) HealthCheck(ctx context.Context) error {
	probe := filepath.Join(s.root, ".health")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return errs.Wrap(errs.KindIo, "vector store directory is not writable", err)
	}
	return os.Remove(probe)
}
