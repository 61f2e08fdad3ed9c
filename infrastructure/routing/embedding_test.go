package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

type stubEmbedder struct {
	name  string
	dims  int
	fail  error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (provider.Embedding, error) {
	s.calls++
	if s.fail != nil {
		return provider.Embedding{}, s.fail
	}
	vector := make([]float32, s.dims)
	for i := range vector {
		vector[i] = float32(len(text))
	}
	return provider.NewEmbedding(vector, s.name), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]provider.Embedding, error) {
	out := make([]provider.Embedding, 0, len(texts))
	for _, text := range texts {
		e, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int                     { return s.dims }
func (s *stubEmbedder) ProviderName() string                { return s.name }
func (s *stubEmbedder) HealthCheck(_ context.Context) error { return s.fail }

func TestRoutedEmbedding_FailsOverToSecondary(t *testing.T) {
	primary := &stubEmbedder{name: "openai", dims: 3, fail: errs.New(errs.KindNetwork, "connection refused")}
	secondary := &stubEmbedder{name: "ollama", dims: 3}

	router := NewRouter(StrategyPriorityList, []Candidate{
		{ID: "openai", Priority: 0},
		{ID: "ollama", Priority: 1},
	}, NewBreakerConfig(), nil, nil, nil, nil)

	routed, err := NewRoutedEmbedding(router, map[string]provider.EmbeddingProvider{
		"openai": primary,
		"ollama": secondary,
	}, "openai", 0)
	require.NoError(t, err)

	embedding, err := routed.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ollama", embedding.Model())
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestRoutedEmbedding_BatchPreservesOrder(t *testing.T) {
	primary := &stubEmbedder{name: "openai", dims: 3}
	router := NewRouter(StrategyPrimaryOnly, []Candidate{{ID: "openai"}}, NewBreakerConfig(), nil, nil, nil, nil)

	routed, err := NewRoutedEmbedding(router, map[string]provider.EmbeddingProvider{"openai": primary}, "openai", 0)
	require.NoError(t, err)

	embeddings, err := routed.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, embeddings, 3)
	assert.Equal(t, float32(1), embeddings[0].Vector()[0])
	assert.Equal(t, float32(3), embeddings[2].Vector()[0])
}

func TestRoutedEmbedding_RejectsDimensionMismatch(t *testing.T) {
	router := NewRouter(StrategyPrimaryOnly, []Candidate{{ID: "a"}}, NewBreakerConfig(), nil, nil, nil, nil)

	_, err := NewRoutedEmbedding(router, map[string]provider.EmbeddingProvider{
		"a": &stubEmbedder{name: "a", dims: 3},
		"b": &stubEmbedder{name: "b", dims: 5},
	}, "a", 0)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfig))
}

func TestRoutedEmbedding_RequiresRegisteredPrimary(t *testing.T) {
	router := NewRouter(StrategyPrimaryOnly, nil, NewBreakerConfig(), nil, nil, nil, nil)

	_, err := NewRoutedEmbedding(router, map[string]provider.EmbeddingProvider{}, "missing", 0)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfig))
}

func TestRoutedEmbedding_ProviderName(t *testing.T) {
	router := NewRouter(StrategyPrimaryOnly, []Candidate{{ID: "openai"}}, NewBreakerConfig(), nil, nil, nil, nil)
	routed, err := NewRoutedEmbedding(router, map[string]provider.EmbeddingProvider{
		"openai": &stubEmbedder{name: "openai", dims: 3},
	}, "openai", 0)
	require.NoError(t, err)

	assert.Equal(t, "routed:openai", routed.ProviderName())
	assert.Equal(t, 3, routed.Dimensions())
}
