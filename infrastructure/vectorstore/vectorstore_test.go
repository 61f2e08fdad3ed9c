package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/infrastructure/crypto"
)

func record(id string, vector []float32, filePath, content string, startLine string) provider.VectorRecord {
	return provider.NewVectorRecord(id, provider.NewEmbedding(vector, "test-model"), map[string]string{
		MetaContent:   content,
		MetaFilePath:  filePath,
		MetaStartLine: startLine,
		MetaLanguage:  "go",
	})
}

func seedStore(t *testing.T, store provider.VectorStoreProvider) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateCollection(ctx, "default", 3))
	_, err := store.InsertVectors(ctx, "default", []provider.VectorRecord{
		record("a.go:1", []float32{1, 0, 0}, "a.go", "func alpha()", "1"),
		record("b.go:1", []float32{0, 1, 0}, "b.go", "func beta()", "1"),
		record("c.go:1", []float32{0.9, 0.1, 0}, "c.go", "func gamma()", "1"),
	})
	require.NoError(t, err)
}

func assertStoreBehavior(t *testing.T, store provider.VectorStoreProvider) {
	t.Helper()
	ctx := context.Background()
	seedStore(t, store)

	// Most similar to the query axis first.
	results, err := store.SearchSimilar(ctx, "default", []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go:1", results[0].ID())
	assert.Equal(t, "c.go:1", results[1].ID())
	assert.Equal(t, "func alpha()", results[0].Content())
	assert.Equal(t, "a.go", results[0].FilePath())
	assert.Equal(t, 1, results[0].StartLine())
	assert.GreaterOrEqual(t, results[0].Score(), results[1].Score())
	assert.LessOrEqual(t, results[0].Score(), 1.0)

	// Metadata filter restricts the candidate set.
	results, err = store.SearchSimilar(ctx, "default", []float32{1, 0, 0}, 10,
		provider.Filter{MetaFilePath: "b.go"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.go:1", results[0].ID())

	// Delete by file path.
	removed, err := store.DeleteByFilter(ctx, "default", provider.Filter{MetaFilePath: "a.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := store.Stats(ctx, "default")
	require.NoError(t, err)
	assert.NotNil(t, stats)

	exists, err := store.CollectionExists(ctx, "default")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.DeleteCollection(ctx, "default"))
	exists, err = store.CollectionExists(ctx, "default")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.HealthCheck(ctx))
}

func TestMemoryStore_Behavior(t *testing.T) {
	assertStoreBehavior(t, NewMemoryStore())
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "default", 3))

	_, err := store.InsertVectors(ctx, "default", []provider.VectorRecord{
		record("x", []float32{1, 0}, "x.go", "x", "1"),
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindVectorStore))

	_, err = store.SearchSimilar(ctx, "default", []float32{1, 0}, 5, nil)
	assert.Error(t, err)
}

func TestMemoryStore_MissingCollection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.InsertVectors(ctx, "absent", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindVectorStore))
}

func TestMemoryStore_GeneratesIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateCollection(ctx, "default", 2))

	ids, err := store.InsertVectors(ctx, "default", []provider.VectorRecord{
		record("", []float32{1, 0}, "a.go", "x", "1"),
		record("", []float32{0, 1}, "b.go", "y", "1"),
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestFilesystemStore_Behavior(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	assertStoreBehavior(t, store)
}

func TestFilesystemStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	seedStore(t, first)

	second, err := NewFilesystemStore(dir)
	require.NoError(t, err)

	results, err := second.SearchSimilar(ctx, "default", []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go:1", results[0].ID())
}

func TestSQLiteStore_Behavior(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	assertStoreBehavior(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	seedStore(t, first)

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	results, err := second.SearchSimilar(ctx, "default", []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.go:1", results[0].ID())
}

func newEncrypted(t *testing.T) *EncryptedStore {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	aead, err := crypto.NewAESGCM(key)
	require.NoError(t, err)
	return NewEncryptedStore(NewMemoryStore(), aead)
}

func TestEncryptedStore_Behavior(t *testing.T) {
	assertStoreBehavior(t, newEncrypted(t))
}

func TestEncryptedStore_InnerMetadataIsOpaque(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	aead, err := crypto.NewAESGCM(key)
	require.NoError(t, err)
	inner := NewMemoryStore()
	store := NewEncryptedStore(inner, aead)

	require.NoError(t, store.CreateCollection(ctx, "default", 2))
	_, err = store.InsertVectors(ctx, "default", []provider.VectorRecord{
		record("a.go:1", []float32{1, 0}, "a.go", "secret content", "1"),
	})
	require.NoError(t, err)

	// Reading through the inner store must not expose the plaintext.
	raw, err := inner.SearchSimilar(ctx, "default", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.NotContains(t, raw[0].Content(), "secret")
	assert.Empty(t, raw[0].FilePath())

	// Reading through the decorator round-trips.
	results, err := store.SearchSimilar(ctx, "default", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "secret content", results[0].Content())
	assert.Equal(t, "a.go", results[0].FilePath())
}

func TestEncryptedStore_StatsMergeInner(t *testing.T) {
	ctx := context.Background()
	store := newEncrypted(t)
	seedStore(t, store)

	stats, err := store.Stats(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "encrypted", stats["provider"])
	assert.Equal(t, "memory", stats["encrypted_inner_name"])
	assert.Equal(t, 3, stats["inner_vector_count"])
}

func TestFactory(t *testing.T) {
	store, err := New(provider.NewConfig("memory"), nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", store.ProviderName())

	store, err = New(provider.NewConfig("null"), nil)
	require.NoError(t, err)
	assert.Equal(t, "null", store.ProviderName())

	_, err = New(provider.NewConfig("bogus"), nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfig))

	_, err = New(provider.NewConfig("encrypted"), nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfig))
}

func TestNullStore_ReturnsNothing(t *testing.T) {
	ctx := context.Background()
	store := NewNullStore()

	require.NoError(t, store.CreateCollection(ctx, "default", 8))
	ids, err := store.InsertVectors(ctx, "default", []provider.VectorRecord{
		record("a", []float32{1}, "a.go", "x", "1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	results, err := store.SearchSimilar(ctx, "default", []float32{1}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
