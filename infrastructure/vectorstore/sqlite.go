package vectorstore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// Float32Slice stores a vector as JSON in SQLite.
type Float32Slice []float32

// Scan implements sql.Scanner.
func (f *Float32Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float32Slice", value)
	}
	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer.
func (f Float32Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// MetadataMap stores record metadata as JSON in SQLite.
type MetadataMap map[string]string

// Scan implements sql.Scanner.
func (m *MetadataMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MetadataMap", value)
	}
	return json.Unmarshal(data, m)
}

// Value implements driver.Valuer.
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

type collectionEntity struct {
	Name       string `gorm:"column:name;primaryKey"`
	Dimensions int    `gorm:"column:dimensions"`
}

func (collectionEntity) TableName() string { return "mcb_collections" }

type vectorEntity struct {
	ID         string       `gorm:"column:id;primaryKey"`
	Collection string       `gorm:"column:collection;primaryKey;index"`
	Embedding  Float32Slice `gorm:"column:embedding;type:json"`
	Metadata   MetadataMap  `gorm:"column:metadata;type:json"`
}

func (vectorEntity) TableName() string { return "mcb_vectors" }

// SQLiteStore persists vectors in SQLite. Embeddings are stored as JSON and
// similarity is computed in-process after loading the candidate set, which
// is adequate for single-node corpora.
type SQLiteStore struct {
	db *gorm.DB
}

var _ provider.VectorStoreProvider = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and migrates the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errs.New(errs.KindConfig, "sqlite vector store requires a path")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errs.Wrapf(errs.KindVectorStore, err, "opening sqlite database %s", path)
	}
	if err := db.AutoMigrate(&collectionEntity{}, &vectorEntity{}); err != nil {
		return nil, errs.Wrap(errs.KindVectorStore, "migrating vector store schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// ProviderName identifies the backend.
func (s *SQLiteStore) ProviderName() string { return "sqlite" }

func (s *SQLiteStore) collection(ctx context.Context, name string) (collectionEntity, error) {
	var col collectionEntity
	err := s.db.WithContext(ctx).First(&col, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return col, errs.Newf(errs.KindVectorStore, "collection %q does not exist", name)
	}
	if err != nil {
		return col, errs.Wrapf(errs.KindVectorStore, err, "loading collection %q", name)
	}
	return col, nil
}

// CreateCollection registers a collection. Re-creating with the same
// dimensionality is a no-op.
func (s *SQLiteStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return errs.Newf(errs.KindVectorStore, "collection %q: dimensions must be positive", name)
	}
	var existing collectionEntity
	err := s.db.WithContext(ctx).First(&existing, "name = ?", name).Error
	if err == nil {
		if existing.Dimensions != dimensions {
			return errs.Newf(errs.KindVectorStore, "collection %q exists with %d dimensions, requested %d",
				name, existing.Dimensions, dimensions)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Wrapf(errs.KindVectorStore, err, "loading collection %q", name)
	}
	created := collectionEntity{Name: name, Dimensions: dimensions}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return errs.Wrapf(errs.KindVectorStore, err, "creating collection %q", name)
	}
	return nil
}

// DeleteCollection removes a collection and its vectors.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&vectorEntity{}, "collection = ?", name).Error; err != nil {
			return errs.Wrapf(errs.KindVectorStore, err, "deleting vectors of %q", name)
		}
		if err := tx.Delete(&collectionEntity{}, "name = ?", name).Error; err != nil {
			return errs.Wrapf(errs.KindVectorStore, err, "deleting collection %q", name)
		}
		return nil
	})
}

// CollectionExists reports whether the collection is registered.
func (s *SQLiteStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&collectionEntity{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, errs.Wrapf(errs.KindVectorStore, err, "checking collection %q", name)
	}
	return count > 0, nil
}

// InsertVectors upserts records and returns their ids in input order.
func (s *SQLiteStore) InsertVectors(ctx context.Context, collection string, records []provider.VectorRecord) ([]string, error) {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	entities := make([]vectorEntity, 0, len(records))
	for _, r := range records {
		vector := r.Embedding().Vector()
		if len(vector) != col.Dimensions {
			return nil, errs.Newf(errs.KindVectorStore,
				"collection %q: vector has %d dimensions, expected %d", collection, len(vector), col.Dimensions)
		}
		id := r.ID()
		if id == "" {
			id = uuid.NewString()
		}
		ids = append(ids, id)
		entities = append(entities, vectorEntity{
			ID:         id,
			Collection: collection,
			Embedding:  Float32Slice(vector),
			Metadata:   MetadataMap(r.Metadata()),
		})
	}
	if len(entities) == 0 {
		return ids, nil
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entities {
			if err := tx.Save(&entities[i]).Error; err != nil {
				return errs.Wrapf(errs.KindVectorStore, err, "saving vector %s", entities[i].ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchSimilar loads the collection's vectors and ranks them by cosine
// similarity in-process.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int, filter provider.Filter) ([]search.Result, error) {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != col.Dimensions {
		return nil, errs.Newf(errs.KindVectorStore,
			"collection %q: query vector has %d dimensions, expected %d", collection, len(vector), col.Dimensions)
	}
	var entities []vectorEntity
	if err := s.db.WithContext(ctx).Where("collection = ?", collection).Find(&entities).Error; err != nil {
		return nil, errs.Wrapf(errs.KindVectorStore, err, "loading vectors of %q", collection)
	}
	results := make([]search.Result, 0, len(entities))
	for _, e := range entities {
		metadata := map[string]string(e.Metadata)
		if !filter.Matches(metadata) {
			continue
		}
		score := similarityScore(cosineSimilarity(vector, e.Embedding))
		results = append(results, resultFromMetadata(e.ID, metadata, score))
	}
	search.SortByScore(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByFilter removes matching vectors and returns how many were removed.
// Filtering happens in-process because metadata is stored as opaque JSON.
func (s *SQLiteStore) DeleteByFilter(ctx context.Context, collection string, filter provider.Filter) (int, error) {
	if _, err := s.collection(ctx, collection); err != nil {
		return 0, err
	}
	var entities []vectorEntity
	if err := s.db.WithContext(ctx).Where("collection = ?", collection).Find(&entities).Error; err != nil {
		return 0, errs.Wrapf(errs.KindVectorStore, err, "loading vectors of %q", collection)
	}
	var ids []string
	for _, e := range entities {
		if filter.Matches(map[string]string(e.Metadata)) {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", collection, ids).
		Delete(&vectorEntity{}).Error
	if err != nil {
		return 0, errs.Wrapf(errs.KindVectorStore, err, "deleting vectors of %q", collection)
	}
	return len(ids), nil
}

// Stats reports the record count and dimensionality of a collection.
func (s *SQLiteStore) Stats(ctx context.Context, collection string) (provider.CollectionStats, error) {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&vectorEntity{}).Where("collection = ?", collection).Count(&count).Error; err != nil {
		return nil, errs.Wrapf(errs.KindVectorStore, err, "counting vectors of %q", collection)
	}
	return provider.CollectionStats{
		"provider":     s.ProviderName(),
		"collection":   collection,
		"vector_count": int(count),
		"dimensions":   col.Dimensions,
	}, nil
}

// HealthCheck pings the underlying database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return errs.Wrap(errs.KindVectorStore, "accessing sqlite handle", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return errs.Wrap(errs.KindVectorStore, "pinging sqlite database", err)
	}
	return nil
}
