package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/xhad/screener/internal/models"
)

// MemoryStore is a process-local vector store using brute-force cosine similarity.
type MemoryStore struct {
	mu    sync.RWMutex
	dim   int
	nodes []models.EmbeddedNode
	index map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (s *MemoryStore) Upsert(_ context.Context, nodes []models.EmbeddedNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			return fmt.Errorf("node %s has no embedding", n.ID)
		}
		if dim == 0 {
			dim = len(n.Embedding)
		}
		if len(n.Embedding) != dim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(n.Embedding), dim)
		}
	}
	s.dim = dim

	for _, n := range nodes {
		if i, ok := s.index[n.ID]; ok {
			s.nodes[i] = n
			continue
		}
		s.index[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query []float32, limit int, filter *models.TenantFilter) ([]models.RetrievedPassage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim != 0 && len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), s.dim)
	}

	var results []models.RetrievedPassage
	for _, n := range s.nodes {
		if !filter.Matches(n.Metadata) {
			continue
		}
		results = append(results, passageOf(n, cosine(query, n.Embedding)))
	}
	return rankTopK(results, limit), nil
}

func (s *MemoryStore) Scan(_ context.Context) ([]models.EmbeddedNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.EmbeddedNode, len(s.nodes))
	copy(out, s.nodes)
	return out, nil
}

func (s *MemoryStore) Rewrite(_ context.Context, nodes []models.EmbeddedNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make([]models.EmbeddedNode, 0, len(nodes))
	s.index = make(map[string]int, len(nodes))
	for _, n := range nodes {
		s.index[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}
	if len(s.nodes) == 0 {
		s.dim = 0
	}
	return nil
}

func (s *MemoryStore) Close() {}
