package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xhad/screener/internal/models"
	"github.com/xhad/screener/internal/types"
	"github.com/xhad/screener/pkg/extractor"
	"github.com/xhad/screener/pkg/processor"
	"github.com/xhad/screener/pkg/store"
)

var (
	// ErrNoNodes is returned when a file yields no non-empty résumé text.
	ErrNoNodes = errors.New("no resume nodes produced")
	// ErrInvalidPosition is returned for position IDs below 1.
	ErrInvalidPosition = errors.New("position id must be >= 1")
)

type PipelineConfig struct {
	Loader    types.DocumentLoader
	Extractor *extractor.Extractor
	Builder   *processor.NodeBuilder
	Embedder  types.Embedder
	Index     *store.Index
	Logger    *zap.Logger
}

// Pipeline reads résumé files and appends one embedded node per file to the index.
type Pipeline struct {
	config PipelineConfig
	logger *zap.Logger
}

func NewWithConfig(config PipelineConfig) (*Pipeline, error) {
	if config.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if config.Index == nil {
		return nil, errors.New("index is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Loader == nil {
		config.Loader = extractor.NewLoader(config.Logger)
	}
	if config.Extractor == nil {
		config.Extractor = extractor.NewWithConfig(extractor.ExtractorConfig{
			Loader: config.Loader,
			Logger: config.Logger,
		})
	}
	if config.Builder == nil {
		config.Builder = processor.NewWithConfig(processor.ProcessorConfig{Logger: config.Logger})
	}

	return &Pipeline{config: config, logger: config.Logger}, nil
}

// Ingest is IngestFile for callers that only need success or failure.
// Failures are logged, never returned.
func (p *Pipeline) Ingest(ctx context.Context, path string, positionID int64, candidateName string) bool {
	n, err := p.IngestFile(ctx, path, positionID, candidateName)
	if err != nil {
		p.logger.Error("ingestion failed",
			zap.String("file", path),
			zap.Int64("position_id", positionID),
			zap.Error(err),
		)
		return false
	}
	return n > 0
}

// IngestFile reads path and indexes it under positionID. It returns the
// number of nodes written. Re-ingesting a file appends another node.
func (p *Pipeline) IngestFile(ctx context.Context, path string, positionID int64, candidateName string) (int, error) {
	if positionID < 1 {
		return 0, ErrInvalidPosition
	}

	docs, err := p.config.Loader.Load(ctx, path)
	if err != nil || strings.TrimSpace(extractor.JoinDocuments(docs)) == "" {
		p.logger.Warn("reader produced no text, trying fallback extraction",
			zap.String("file", path),
			zap.Error(err),
		)
		res := p.config.Extractor.Extract(ctx, path)
		if !res.Success {
			return 0, fmt.Errorf("failed to extract %s: %w", path, ErrNoNodes)
		}
		docs = []models.RawDocument{extractor.TextDocument(res.Text, path)}
	}

	return p.IngestDocuments(ctx, docs, positionID, candidateName)
}

// IngestDocuments indexes already loaded pages under positionID.
func (p *Pipeline) IngestDocuments(ctx context.Context, docs []models.RawDocument, positionID int64, candidateName string) (int, error) {
	if positionID < 1 {
		return 0, ErrInvalidPosition
	}

	nodes := p.config.Builder.Build(docs, positionID, candidateName)
	if len(nodes) == 0 {
		return 0, ErrNoNodes
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}
	vectors, err := p.config.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(nodes) {
		return 0, fmt.Errorf("failed to create embeddings: got %d vectors for %d nodes", len(vectors), len(nodes))
	}

	embedded := make([]models.EmbeddedNode, len(nodes))
	for i, n := range nodes {
		embedded[i] = models.EmbeddedNode{ResumeNode: n, Embedding: vectors[i]}
	}

	if err := p.config.Index.Insert(ctx, positionID, embedded); err != nil {
		return 0, fmt.Errorf("failed to index nodes: %w", err)
	}

	p.logger.Info("ingested resume",
		zap.Int64("position_id", positionID),
		zap.Int("nodes", len(embedded)),
	)
	return len(embedded), nil
}
