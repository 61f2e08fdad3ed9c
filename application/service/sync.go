package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/event"
	domainsnapshot "github.com/mcb/mcp-context-browser/domain/snapshot"
	infrasnapshot "github.com/mcb/mcp-context-browser/infrastructure/snapshot"
)

// SyncResult reports the outcome of one sync run.
type SyncResult struct {
	Skipped    bool  `json:"skipped"`
	Added      int   `json:"added"`
	Modified   int   `json:"modified"`
	Removed    int   `json:"removed"`
	Unchanged  int   `json:"unchanged"`
	DurationMS int64 `json:"duration_ms"`
}

// SyncStats are the coordinator's cumulative counters.
type SyncStats struct {
	Attempts  uint64  `json:"attempts"`
	Successes uint64  `json:"successes"`
	Skips     uint64  `json:"skips"`
	Failures  uint64  `json:"failures"`
	SkipRate  float64 `json:"skip_rate"`
}

// Sync runs debounced, snapshot-diffed incremental reindexes. One sync per
// path is in flight at a time.
type Sync struct {
	builder   *infrasnapshot.Builder
	snapshots *infrasnapshot.Store
	indexing  *Indexing
	chunker   chunkSource
	debouncer *Debouncer
	bus       event.Bus
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	attempts  atomic.Uint64
	successes atomic.Uint64
	skips     atomic.Uint64
	failures  atomic.Uint64
}

// chunkSource is the slice of the chunker the coordinator needs.
type chunkSource interface {
	ChunkFile(ctx context.Context, filePath string, source []byte, language chunk.Language) ([]chunk.CodeChunk, error)
	Batch(chunks []chunk.CodeChunk) [][]chunk.CodeChunk
}

// NewSync creates the sync coordinator.
func NewSync(
	builder *infrasnapshot.Builder,
	snapshots *infrasnapshot.Store,
	indexing *Indexing,
	chunker chunkSource,
	debouncer *Debouncer,
	bus event.Bus,
	logger *slog.Logger,
) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		builder:   builder,
		snapshots: snapshots,
		indexing:  indexing,
		chunker:   chunker,
		debouncer: debouncer,
		bus:       bus,
		logger:    logger,
		locks:     map[string]*sync.Mutex{},
	}
}

func (s *Sync) pathLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}

// Run performs one incremental sync of root into collection.
func (s *Sync) Run(ctx context.Context, root, collection string) (SyncResult, error) {
	s.attempts.Add(1)
	if s.debouncer.ShouldDebounce(root) {
		s.skips.Add(1)
		s.logger.Debug("sync debounced", slog.String("root", root))
		return SyncResult{Skipped: true}, nil
	}

	lock := s.pathLock(root)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result, err := s.run(ctx, root, collection)
	result.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		s.failures.Add(1)
		return result, err
	}

	s.successes.Add(1)
	s.debouncer.RecordSync(root)
	if s.bus != nil {
		s.bus.Publish(event.NewSyncCompleted(time.Now(), event.SyncCompleted{
			Collection: collection,
			Path:       root,
			Added:      result.Added,
			Modified:   result.Modified,
			Removed:    result.Removed,
			Unchanged:  result.Unchanged,
			Duration:   time.Duration(result.DurationMS) * time.Millisecond,
		}))
	}
	s.logger.Info("sync completed",
		slog.String("root", root),
		slog.String("collection", collection),
		slog.Int("added", result.Added),
		slog.Int("modified", result.Modified),
		slog.Int("removed", result.Removed))
	return result, nil
}

func (s *Sync) run(ctx context.Context, root, collection string) (SyncResult, error) {
	var result SyncResult

	current, err := s.builder.Build(ctx, root)
	if err != nil {
		return result, err
	}
	previous, _, err := s.snapshots.Load(collection)
	if err != nil {
		return result, err
	}

	diff := domainsnapshot.Compare(previous, current)
	result.Added = len(diff.Added)
	result.Modified = len(diff.Modified)
	result.Removed = len(diff.Removed)
	result.Unchanged = len(diff.Unchanged)

	for _, rel := range diff.Removed {
		if err := s.indexing.RemoveFile(ctx, collection, rel); err != nil {
			return result, err
		}
	}

	var pending []chunk.CodeChunk
	for _, rel := range append(append([]string{}, diff.Added...), diff.Modified...) {
		chunks, err := s.chunkPath(ctx, root, rel, current)
		if err != nil {
			s.logger.Warn("skipping file during sync",
				slog.String("path", rel),
				slog.String("error", err.Error()))
			continue
		}
		// A modified file's old chunks must not survive under stale ids.
		if err := s.indexing.RemoveFile(ctx, collection, rel); err != nil {
			return result, err
		}
		pending = append(pending, chunks...)
	}
	for _, batch := range s.chunker.Batch(pending) {
		if err := s.indexing.IndexBatch(ctx, collection, batch); err != nil {
			return result, err
		}
	}

	if err := s.snapshots.Save(collection, current); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Sync) chunkPath(ctx context.Context, root, rel string, snap domainsnapshot.Snapshot) ([]chunk.CodeChunk, error) {
	source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, errs.Wrapf(errs.KindIo, err, "reading %q", rel)
	}
	language := chunk.LanguageFromExtension(snap.Files[rel].Extension)
	return s.chunker.ChunkFile(ctx, rel, source, language)
}

// Stats returns the cumulative sync counters.
func (s *Sync) Stats() SyncStats {
	attempts := s.attempts.Load()
	skips := s.skips.Load()
	stats := SyncStats{
		Attempts:  attempts,
		Successes: s.successes.Load(),
		Skips:     skips,
		Failures:  s.failures.Load(),
	}
	if attempts > 0 {
		stats.SkipRate = float64(skips) / float64(attempts)
	}
	return stats
}
