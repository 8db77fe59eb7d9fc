package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xhad/screener/internal/logger"
	"github.com/xhad/screener/internal/models"
	"github.com/xhad/screener/internal/types"
	"github.com/xhad/screener/pkg/store"
)

const DefaultTopK = 5

type RetrieverConfig struct {
	Embedder types.Embedder
	Index    *store.Index
	TopK     int
	Logger   *zap.Logger
}

// Retriever runs similarity queries that are scoped to one position unless
// the caller explicitly asks for a global search.
type Retriever struct {
	config RetrieverConfig
	logger *zap.Logger
}

func NewRetriever(config RetrieverConfig) (*Retriever, error) {
	if config.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if config.Index == nil {
		return nil, errors.New("index is required")
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Retriever{config: config, logger: config.Logger}, nil
}

// Retrieve returns the topK passages of positionID most similar to query.
// Failures are logged and yield an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, positionID int64, topK int) []models.RetrievedPassage {
	if positionID < 1 {
		r.logger.Warn("retrieval rejected", zap.Int64("position_id", positionID), zap.Error(ErrInvalidPosition))
		return []models.RetrievedPassage{}
	}
	return r.retrieve(ctx, query, &models.TenantFilter{PositionID: positionID}, topK)
}

// RetrieveGlobal searches every position.
func (r *Retriever) RetrieveGlobal(ctx context.Context, query string, topK int) []models.RetrievedPassage {
	return r.retrieve(ctx, query, nil, topK)
}

func (r *Retriever) retrieve(ctx context.Context, query string, filter *models.TenantFilter, topK int) []models.RetrievedPassage {
	passages, err := r.Search(ctx, query, filter, topK)
	if err != nil {
		r.logger.Error("retrieval failed",
			zap.String("query", logger.Truncate(query, 80)),
			zap.Error(err),
		)
		return []models.RetrievedPassage{}
	}
	return passages
}

// Search is the error-returning form of Retrieve. A nil filter searches
// every position.
func (r *Retriever) Search(ctx context.Context, query string, filter *models.TenantFilter, topK int) ([]models.RetrievedPassage, error) {
	if topK <= 0 {
		topK = r.config.TopK
	}

	vec, err := r.config.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	passages, err := r.config.Index.Search(ctx, vec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	if passages == nil {
		passages = []models.RetrievedPassage{}
	}

	fields := []zap.Field{
		zap.String("query", logger.Truncate(query, 80)),
		zap.Int("top_k", topK),
		zap.Int("results", len(passages)),
	}
	if filter != nil {
		fields = append(fields, zap.Int64("position_id", filter.PositionID))
	}
	r.logger.Info("retrieved passages", fields...)
	return passages, nil
}
