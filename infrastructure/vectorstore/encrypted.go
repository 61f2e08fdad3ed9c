package vectorstore

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
	"github.com/mcb/mcp-context-browser/domain/search"
)

// EncryptedStore is a decorator that encrypts record metadata before
// delegating to an inner store and decrypts it on read. Vectors pass through
// in the clear so similarity search still works.
//
// The whole metadata map is sealed into one ciphertext blob carried through
// the inner store's content field. Metadata filters are therefore applied on
// this side, after decryption.
type EncryptedStore struct {
	inner  provider.VectorStoreProvider
	crypto provider.CryptoProvider
}

var _ provider.VectorStoreProvider = (*EncryptedStore)(nil)

// NewEncryptedStore wraps inner with metadata encryption.
func NewEncryptedStore(inner provider.VectorStoreProvider, crypto provider.CryptoProvider) *EncryptedStore {
	return &EncryptedStore{inner: inner, crypto: crypto}
}

// ProviderName identifies the decorator.
func (s *EncryptedStore) ProviderName() string { return "encrypted" }

// seal encrypts a metadata map into a base64 blob of nonce followed by
// ciphertext.
func (s *EncryptedStore) seal(metadata map[string]string) (string, error) {
	plaintext, err := json.Marshal(metadata)
	if err != nil {
		return "", errs.Wrap(errs.KindCrypto, "encoding metadata", err)
	}
	sealed, err := s.crypto.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	blob := append(sealed.Nonce(), sealed.Ciphertext()...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// open reverses seal.
func (s *EncryptedStore) open(blob string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "decoding metadata blob", err)
	}
	const nonceSize = 12
	if len(raw) < nonceSize {
		return nil, errs.New(errs.KindCrypto, "metadata blob is truncated")
	}
	plaintext, err := s.crypto.Decrypt(provider.NewEncryptedData(raw[nonceSize:], raw[:nonceSize]))
	if err != nil {
		return nil, err
	}
	var metadata map[string]string
	if err := json.Unmarshal(plaintext, &metadata); err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "decoding metadata", err)
	}
	return metadata, nil
}

// CreateCollection delegates to the inner store.
func (s *EncryptedStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	return s.inner.CreateCollection(ctx, name, dimensions)
}

// DeleteCollection delegates to the inner store.
func (s *EncryptedStore) DeleteCollection(ctx context.Context, name string) error {
	return s.inner.DeleteCollection(ctx, name)
}

// CollectionExists delegates to the inner store.
func (s *EncryptedStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.inner.CollectionExists(ctx, name)
}

// InsertVectors seals each record's metadata and delegates.
func (s *EncryptedStore) InsertVectors(ctx context.Context, collection string, records []provider.VectorRecord) ([]string, error) {
	sealed := make([]provider.VectorRecord, 0, len(records))
	for _, r := range records {
		blob, err := s.seal(r.Metadata())
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, provider.NewVectorRecord(r.ID(), r.Embedding(), map[string]string{
			MetaContent: blob,
		}))
	}
	return s.inner.InsertVectors(ctx, collection, sealed)
}

// SearchSimilar runs the similarity query on the inner store without a
// filter, decrypts each hit's metadata, then filters and truncates here.
func (s *EncryptedStore) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int, filter provider.Filter) ([]search.Result, error) {
	hits, err := s.inner.SearchSimilar(ctx, collection, vector, 0, nil)
	if err != nil {
		return nil, err
	}
	results := make([]search.Result, 0, len(hits))
	for _, hit := range hits {
		metadata, err := s.open(hit.Content())
		if err != nil {
			return nil, err
		}
		if !filter.Matches(metadata) {
			continue
		}
		results = append(results, resultFromMetadata(hit.ID(), metadata, hit.Score()))
	}
	search.SortByScore(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByFilter decrypts every record's metadata to find matches, then
// removes each match by its unique ciphertext blob. The blob is unique
// because every Encrypt call draws a fresh nonce.
func (s *EncryptedStore) DeleteByFilter(ctx context.Context, collection string, filter provider.Filter) (int, error) {
	dims, err := s.dimensions(ctx, collection)
	if err != nil {
		return 0, err
	}
	hits, err := s.inner.SearchSimilar(ctx, collection, make([]float32, dims), 0, nil)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, hit := range hits {
		metadata, err := s.open(hit.Content())
		if err != nil {
			return removed, err
		}
		if !filter.Matches(metadata) {
			continue
		}
		n, err := s.inner.DeleteByFilter(ctx, collection, provider.Filter{MetaContent: hit.Content()})
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (s *EncryptedStore) dimensions(ctx context.Context, collection string) (int, error) {
	stats, err := s.inner.Stats(ctx, collection)
	if err != nil {
		return 0, err
	}
	if dims, ok := stats["dimensions"].(int); ok {
		return dims, nil
	}
	return 0, errs.Newf(errs.KindVectorStore, "collection %q: inner store does not report dimensions", collection)
}

// Stats merges the decorator's identity with the inner store's statistics,
// which are re-keyed under an inner_ prefix.
func (s *EncryptedStore) Stats(ctx context.Context, collection string) (provider.CollectionStats, error) {
	innerStats, err := s.inner.Stats(ctx, collection)
	if err != nil {
		return nil, err
	}
	stats := provider.CollectionStats{
		"provider":             s.ProviderName(),
		"collection":           collection,
		"encrypted_algorithm":  "aes-256-gcm",
		"encrypted_inner_name": s.inner.ProviderName(),
	}
	for k, v := range innerStats {
		stats["inner_"+k] = v
	}
	return stats, nil
}

// HealthCheck probes the inner store.
func (s *EncryptedStore) HealthCheck(ctx context.Context) error {
	return s.inner.HealthCheck(ctx)
}
