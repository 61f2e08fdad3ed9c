package service

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/event"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/infrastructure/chunking"
	"github.com/mcb/mcp-context-browser/infrastructure/discovery"
	"github.com/mcb/mcp-context-browser/infrastructure/vectorstore"
)

// IndexingStats reports the outcome of one indexing run.
type IndexingStats struct {
	TotalFiles   int   `json:"total_files"`
	IndexedFiles int   `json:"indexed_files"`
	TotalChunks  int   `json:"total_chunks"`
	DurationMS   int64 `json:"duration_ms"`
}

// IndexingTotals are the service's cumulative counters.
type IndexingTotals struct {
	FilesIndexed  uint64 `json:"files_indexed"`
	ChunksIndexed uint64 `json:"chunks_indexed"`
	BatchesParked uint64 `json:"batches_parked"`
	Failures      uint64 `json:"failures"`
}

type parkedBatch struct {
	collection string
	chunks     []chunk.CodeChunk
}

// Indexing turns source trees into embedded, searchable chunks. A batch is
// durable only after embedding, vector insert, and lexical indexing all
// succeed; batches refused by an open circuit are parked and retried when
// the provider recovers.
type Indexing struct {
	embedder provider.EmbeddingProvider
	store    provider.VectorStoreProvider
	hybrid   provider.HybridSearchProvider
	cache    provider.CacheProvider
	chunker  *chunking.Chunker
	walker   *discovery.Walker
	bus      event.Bus
	logger   *slog.Logger

	clearCacheOnClear bool

	mu     sync.Mutex
	parked []parkedBatch

	filesIndexed  atomic.Uint64
	chunksIndexed atomic.Uint64
	batchesParked atomic.Uint64
	failures      atomic.Uint64
}

// NewIndexing creates the indexing service. cache may be nil when no cache
// backend is configured.
func NewIndexing(
	embedder provider.EmbeddingProvider,
	store provider.VectorStoreProvider,
	hybrid provider.HybridSearchProvider,
	cache provider.CacheProvider,
	chunker *chunking.Chunker,
	walker *discovery.Walker,
	bus event.Bus,
	logger *slog.Logger,
	clearCacheOnClear bool,
) *Indexing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexing{
		embedder:          embedder,
		store:             store,
		hybrid:            hybrid,
		cache:             cache,
		chunker:           chunker,
		walker:            walker,
		bus:               bus,
		logger:            logger,
		clearCacheOnClear: clearCacheOnClear,
	}
}

// IndexCodebase walks root, chunks every discovered file, and indexes the
// chunks into the collection. Files that fail to read or chunk are skipped.
func (s *Indexing) IndexCodebase(ctx context.Context, root, collection string) (IndexingStats, error) {
	start := time.Now()
	var stats IndexingStats

	var all []chunk.CodeChunk
	err := s.walker.Walk(ctx, root, func(f discovery.File) error {
		stats.TotalFiles++
		source, err := os.ReadFile(f.AbsPath)
		if err != nil {
			s.logger.Warn("skipping unreadable file",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			return nil
		}
		chunks, err := s.chunker.ChunkFile(ctx, f.Path, source, f.Language)
		if err != nil {
			s.logger.Warn("skipping unchunkable file",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			return nil
		}
		if len(chunks) == 0 {
			return nil
		}
		stats.IndexedFiles++
		all = append(all, chunks...)
		return nil
	})
	if err != nil {
		return stats, err
	}

	for _, batch := range s.chunker.Batch(all) {
		if err := s.IndexBatch(ctx, collection, batch); err != nil {
			stats.DurationMS = time.Since(start).Milliseconds()
			return stats, err
		}
		stats.TotalChunks += len(batch)
	}

	s.filesIndexed.Add(uint64(stats.IndexedFiles))
	stats.DurationMS = time.Since(start).Milliseconds()
	s.logger.Info("codebase indexed",
		slog.String("root", root),
		slog.String("collection", collection),
		slog.Int("files", stats.IndexedFiles),
		slog.Int("chunks", stats.TotalChunks),
		slog.Int64("duration_ms", stats.DurationMS))
	return stats, nil
}

// IndexBatch embeds one batch and writes it to the vector store and the
// lexical index. The whole batch is retried once on a retryable provider
// fault; an open circuit parks the batch instead of failing it.
func (s *Indexing) IndexBatch(ctx context.Context, collection string, chunks []chunk.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := s.indexBatchOnce(ctx, collection, chunks)
	if err != nil && errs.Retryable(err) && !errs.IsKind(err, errs.KindCircuitOpen) {
		s.logger.Warn("retrying batch after provider fault",
			slog.String("collection", collection),
			slog.String("error", err.Error()))
		err = s.indexBatchOnce(ctx, collection, chunks)
	}
	if err == nil {
		s.chunksIndexed.Add(uint64(len(chunks)))
		return nil
	}
	if errs.IsKind(err, errs.KindCircuitOpen) {
		s.park(collection, chunks)
		return nil
	}
	s.failures.Add(1)
	return err
}

func (s *Indexing) indexBatchOnce(ctx context.Context, collection string, chunks []chunk.CodeChunk) error {
	if err := s.store.CreateCollection(ctx, collection, s.embedder.Dimensions()); err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, ck := range chunks {
		texts[i] = ck.Content()
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(chunks) {
		return errs.Newf(errs.KindEmbedding, "expected %d embeddings, got %d", len(chunks), len(embeddings))
	}

	records := make([]provider.VectorRecord, len(chunks))
	for i, ck := range chunks {
		records[i] = provider.NewVectorRecord(ck.ID(), embeddings[i], chunkMetadata(ck))
	}
	if _, err := s.store.InsertVectors(ctx, collection, records); err != nil {
		return err
	}
	return s.hybrid.IndexChunks(ctx, collection, chunks)
}

func chunkMetadata(ck chunk.CodeChunk) map[string]string {
	meta := ck.Metadata()
	meta[vectorstore.MetaContent] = ck.Content()
	meta[vectorstore.MetaFilePath] = ck.FilePath()
	meta[vectorstore.MetaStartLine] = strconv.Itoa(ck.StartLine())
	meta[vectorstore.MetaLanguage] = ck.Language().String()
	return meta
}

func (s *Indexing) park(collection string, chunks []chunk.CodeChunk) {
	s.mu.Lock()
	s.parked = append(s.parked, parkedBatch{collection: collection, chunks: chunks})
	s.mu.Unlock()
	s.batchesParked.Add(1)
	s.logger.Warn("parked batch behind open circuit",
		slog.String("collection", collection),
		slog.Int("chunks", len(chunks)))
}

// ParkedBatches returns the number of batches waiting on provider recovery.
func (s *Indexing) ParkedBatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parked)
}

// RetryParked re-attempts every parked batch. Batches that fail again are
// re-parked or dropped per IndexBatch semantics.
func (s *Indexing) RetryParked(ctx context.Context) {
	s.mu.Lock()
	pending := s.parked
	s.parked = nil
	s.mu.Unlock()

	for _, batch := range pending {
		if err := s.IndexBatch(ctx, batch.collection, batch.chunks); err != nil {
			s.logger.Warn("parked batch retry failed",
				slog.String("collection", batch.collection),
				slog.String("error", err.Error()))
		}
	}
}

// Start subscribes to provider recovery events and retries parked batches
// until ctx is cancelled.
func (s *Indexing) Start(ctx context.Context, sub event.Subscriber) {
	ch, cancel := sub.Subscribe(event.TypeProviderRecovered)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.RetryParked(ctx)
			}
		}
	}()
}

// RemoveFile deletes a file's chunks from both stores. Removing from a
// collection that never received an insert is a no-op.
func (s *Indexing) RemoveFile(ctx context.Context, collection, filePath string) error {
	exists, err := s.store.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		if _, err := s.store.DeleteByFilter(ctx, collection, provider.Filter{vectorstore.MetaFilePath: filePath}); err != nil {
			return err
		}
	}
	return s.hybrid.RemoveByFile(ctx, collection, filePath)
}

// ClearCollection drops a collection from the vector store, the lexical
// index, and (when configured) its cache namespaces.
func (s *Indexing) ClearCollection(ctx context.Context, collection string) error {
	if err := s.store.DeleteCollection(ctx, collection); err != nil {
		return err
	}
	if err := s.hybrid.ClearCollection(ctx, collection); err != nil {
		return err
	}
	if s.clearCacheOnClear && s.cache != nil {
		for _, ns := range collectionNamespaces(collection) {
			if err := s.cache.Clear(ctx, ns); err != nil {
				s.logger.Warn("clearing cache namespace failed",
					slog.String("namespace", ns),
					slog.String("error", err.Error()))
			}
		}
	}
	s.logger.Info("collection cleared", slog.String("collection", collection))
	return nil
}

// collectionNamespaces lists the cache namespaces a collection owns.
func collectionNamespaces(collection string) []string {
	return []string{"embeddings:" + collection, "search:" + collection}
}

// Totals returns the cumulative indexing counters.
func (s *Indexing) Totals() IndexingTotals {
	return IndexingTotals{
		FilesIndexed:  s.filesIndexed.Load(),
		ChunksIndexed: s.chunksIndexed.Load(),
		BatchesParked: s.batchesParked.Load(),
		Failures:      s.failures.Load(),
	}
}
