package vectorstore

import (
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// New builds a vector store from its config. The crypto provider is only
// required for the encrypted decorator, which wraps the inner store named by
// the "inner" option (default memory).
func New(cfg provider.Config, crypto provider.CryptoProvider) (provider.VectorStoreProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider() {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		return NewFilesystemStore(cfg.Path())
	case "sqlite":
		return NewSQLiteStore(cfg.Path())
	case "null":
		return NewNullStore(), nil
	case "encrypted":
		if crypto == nil {
			return nil, errs.New(errs.KindConfig, "encrypted vector store requires a crypto provider")
		}
		innerName := cfg.Option("inner")
		if innerName == "" {
			innerName = "memory"
		}
		if innerName == "encrypted" {
			return nil, errs.New(errs.KindConfig, "encrypted vector store cannot wrap itself")
		}
		inner, err := New(provider.NewConfig(innerName).WithPath(cfg.Path()), nil)
		if err != nil {
			return nil, err
		}
		return NewEncryptedStore(inner, crypto), nil
	default:
		return nil, errs.Newf(errs.KindConfig, "unknown vector store provider %q", cfg.Provider())
	}
}
