// Package provider implements the embedding backends: the OpenAI-compatible
// API adapter and a null provider for explicit opt-out. Backends are
// selected by name through the factory.
package provider

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// DefaultEmbeddingModel is used when the config does not name a model.
const DefaultEmbeddingModel = "text-embedding-3-small"

// DefaultDimensions matches text-embedding-3-small.
const DefaultDimensions = 1536

// modelDimensions maps known embedding models to their dimensionality.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIProvider produces embeddings through an OpenAI-compatible API.
// A custom base URL points it at self-hosted servers speaking the same
// protocol.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
}

var _ provider.EmbeddingProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider from its config.
func NewOpenAIProvider(cfg provider.Config) (*OpenAIProvider, error) {
	if cfg.APIKey() == "" {
		return nil, errs.New(errs.KindConfig, "openai embedding provider requires an api key")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey())
	if cfg.BaseURL() != "" {
		clientConfig.BaseURL = cfg.BaseURL()
	}
	if cfg.Timeout() > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout()}
	}

	model := cfg.Model()
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimensions, ok := modelDimensions[model]
	if !ok {
		dimensions = DefaultDimensions
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// ProviderName identifies the provider.
func (p *OpenAIProvider) ProviderName() string { return "openai" }

// Dimensions returns the embedding dimensionality of the configured model.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Embed produces an embedding for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (provider.Embedding, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return provider.Embedding{}, err
	}
	if len(embeddings) != 1 {
		return provider.Embedding{}, errs.Newf(errs.KindEmbedding,
			"expected 1 embedding, got %d", len(embeddings))
	}
	return embeddings[0], nil
}

// EmbedBatch produces embeddings for a batch of texts, preserving input
// order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]provider.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "embedding request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.Newf(errs.KindEmbedding,
			"embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([]provider.Embedding, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, errs.Newf(errs.KindEmbedding, "embedding response index %d out of range", item.Index)
		}
		embeddings[item.Index] = provider.NewEmbedding(item.Embedding, p.model)
	}
	for i, e := range embeddings {
		if err := e.Validate(); err != nil {
			return nil, errs.Wrapf(errs.KindEmbedding, err, "embedding %d is invalid", i)
		}
	}
	return embeddings, nil
}

// HealthCheck embeds a short probe text.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Embed(ctx, "ping")
	return err
}
