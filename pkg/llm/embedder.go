package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/xhad/screener/internal/types"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL or OpenAI-compatible endpoint
	APIKey    string
	BatchSize int
	// RateLimit caps embedding requests per second; zero means unlimited.
	RateLimit float64
}

// NewEmbedder builds the configured embedding backend.
func NewEmbedder(ctx context.Context, config EmbedderConfig) (types.Embedder, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 16
	}

	var (
		emb types.Embedder
		err error
	)
	switch config.Provider {
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "bge-m3"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		var client *ollama.LLM
		client, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err == nil {
			emb, err = embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
		}
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		var client *openai.LLM
		client, err = openai.New(opts...)
		if err == nil {
			emb, err = embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
		}
	case ProviderGemini:
		emb, err = NewGeminiEmbedder(ctx, config.APIKey, config.Model, config.BatchSize)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if config.RateLimit > 0 {
		emb = NewRateLimited(emb, config.RateLimit)
	}
	return emb, nil
}

// RateLimited throttles calls to an underlying embedder.
type RateLimited struct {
	next    types.Embedder
	limiter *rate.Limiter
}

func NewRateLimited(next types.Embedder, perSecond float64) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (r *RateLimited) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedDocuments(ctx, texts)
}

func (r *RateLimited) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedQuery(ctx, text)
}
