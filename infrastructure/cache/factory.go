package cache

import (
	"context"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// New builds a cache backend from its config.
func New(ctx context.Context, cfg provider.Config) (provider.CacheProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider() {
	case "memory":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(ctx, cfg.Address())
	case "null":
		return NewNullCache(), nil
	default:
		return nil, errs.Newf(errs.KindConfig, "unknown cache provider %q", cfg.Provider())
	}
}
