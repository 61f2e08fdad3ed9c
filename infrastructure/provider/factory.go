package provider

import (
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// New builds an embedding provider from its config. "ollama" is an alias for
// the OpenAI-compatible adapter pointed at a local server.
func New(cfg provider.Config) (provider.EmbeddingProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider() {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "ollama":
		base := cfg.BaseURL()
		if base == "" {
			base = "http://localhost:11434/v1"
		}
		key := cfg.APIKey()
		if key == "" {
			key = "ollama"
		}
		return NewOpenAIProvider(cfg.WithBaseURL(base).WithAPIKey(key))
	case "null":
		return NewNullProvider(), nil
	default:
		return nil, errs.Newf(errs.KindConfig, "unknown embedding provider %q", cfg.Provider())
	}
}
