package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	c.calls++
	return []float32{1}, nil
}

func TestNewEmbedderProviders(t *testing.T) {
	ctx := context.Background()

	emb, err := NewEmbedder(ctx, EmbedderConfig{Provider: ProviderOllama, BaseURL: "http://localhost:1234"})
	require.NoError(t, err)
	assert.NotNil(t, emb)

	emb, err = NewEmbedder(ctx, EmbedderConfig{Provider: ProviderOllama, RateLimit: 2})
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, emb)

	_, err = NewEmbedder(ctx, EmbedderConfig{Provider: ProviderGemini})
	assert.Error(t, err)

	_, err = NewEmbedder(ctx, EmbedderConfig{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestRateLimitedHonoursContext(t *testing.T) {
	next := &countingEmbedder{}
	r := NewRateLimited(next, 0.001)

	_, err := r.EmbedQuery(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.EmbedQuery(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestGeminiEmbedderBatches(t *testing.T) {
	var batches []int
	var tasks []string
	fake := func(_ context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		assert.Equal(t, "text-embedding-004", model)
		batches = append(batches, len(contents))
		tasks = append(tasks, cfg.TaskType)
		resp := &genai.EmbedContentResponse{}
		for range contents {
			resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{0.1, 0.2}})
		}
		return resp, nil
	}

	g := newGeminiEmbedder(fake, "", 2)
	vecs, err := g.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, []int{2, 1}, batches)

	q, err := g.EmbedQuery(context.Background(), "go engineer")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, q)
	assert.Equal(t, []string{"RETRIEVAL_DOCUMENT", "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY"}, tasks)
}

func TestGeminiEmbedderErrors(t *testing.T) {
	failing := func(context.Context, string, []*genai.Content, *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		return nil, errors.New("quota exceeded")
	}
	_, err := newGeminiEmbedder(failing, "m", 0).EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "quota exceeded")

	short := func(context.Context, string, []*genai.Content, *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		return &genai.EmbedContentResponse{}, nil
	}
	_, err = newGeminiEmbedder(short, "m", 0).EmbedDocuments(context.Background(), []string{"a"})
	assert.Error(t, err)
	_, err = newGeminiEmbedder(short, "m", 0).EmbedQuery(context.Background(), "a")
	assert.Error(t, err)
}
