package store

import (
	"math"
	"sort"

	"github.com/xhad/screener/internal/models"
)

// cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or their dimensions differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankTopK orders passages by descending score and keeps the first k.
// Equal scores keep their scan order.
func rankTopK(passages []models.RetrievedPassage, k int) []models.RetrievedPassage {
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if k > 0 && len(passages) > k {
		passages = passages[:k]
	}
	return passages
}

func passageOf(n models.EmbeddedNode, score float64) models.RetrievedPassage {
	return models.RetrievedPassage{
		NodeID:   n.ID,
		Text:     n.Text,
		Score:    score,
		Metadata: n.Metadata,
	}
}
