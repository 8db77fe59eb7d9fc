package types

import (
	"context"

	"github.com/xhad/screener/internal/models"
)

// Core interfaces

// Embedder matches langchaingo's embeddings.Embedder so its implementations plug in directly.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists embedded nodes and runs filtered similarity search.
// Stores expose no delete-by-filter operation; see Rebuildable.
type VectorStore interface {
	Upsert(ctx context.Context, nodes []models.EmbeddedNode) error
	Search(ctx context.Context, query []float32, limit int, filter *models.TenantFilter) ([]models.RetrievedPassage, error)
	Close()
}

// Rebuildable stores can be read back in full and rewritten in one step.
type Rebuildable interface {
	VectorStore
	Scan(ctx context.Context) ([]models.EmbeddedNode, error)
	Rewrite(ctx context.Context, nodes []models.EmbeddedNode) error
}

// DocumentLoader is the general-purpose structured-document reader.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]models.RawDocument, error)
}
