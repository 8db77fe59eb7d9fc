package processor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xhad/screener/internal/models"
)

type ProcessorConfig struct {
	Logger *zap.Logger
	// NewID generates node IDs; defaults to random UUIDs.
	NewID func() string
}

// NodeBuilder turns the pages of résumé files into whole-résumé nodes.
// A résumé is never split: each source file yields at most one node.
type NodeBuilder struct {
	config ProcessorConfig
	logger *zap.Logger
}

func NewWithConfig(config ProcessorConfig) *NodeBuilder {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}

	return &NodeBuilder{
		config: config,
		logger: config.Logger,
	}
}

// BuildNodes merges docs per file and scopes every node to positionID.
func (b *NodeBuilder) BuildNodes(docs []models.RawDocument, positionID int64) []models.ResumeNode {
	return b.Build(docs, positionID, "")
}

// Build is BuildNodes with an explicit candidate name. An empty name falls
// back to the file stem.
func (b *NodeBuilder) Build(docs []models.RawDocument, positionID int64, candidateName string) []models.ResumeNode {
	var order []string
	groups := make(map[string][]models.RawDocument)
	for _, doc := range docs {
		key := sourcePath(doc)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], doc)
	}

	var nodes []models.ResumeNode
	for _, path := range order {
		parts := groups[path]
		sort.SliceStable(parts, func(i, j int) bool {
			return pageOrdinal(parts[i].Page) < pageOrdinal(parts[j].Page)
		})

		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			texts = append(texts, strings.TrimSpace(sanitizeUTF8(p.Content)))
		}
		fullText := strings.Join(texts, "\n\n")

		// Skip empty documents
		if strings.TrimSpace(fullText) == "" {
			b.logger.Debug("skipping empty resume", zap.String("file", path))
			continue
		}

		name := candidateName
		if name == "" {
			name = fileStem(path)
		}

		node := models.ResumeNode{
			ID:   b.config.NewID(),
			Text: fullText,
			Metadata: models.NodeMetadata{
				PositionID:    positionID,
				CandidateName: name,
				ChunkType:     models.ChunkTypeFullResume,
				ResumeLength:  utf8.RuneCountInString(fullText),
				FilePath:      path,
				FileName:      filepath.Base(path),
				Source:        stringify(parts[0].Metadata),
			},
		}
		nodes = append(nodes, node)

		b.logger.Info("built resume node",
			zap.String("candidate", name),
			zap.Int64("position_id", positionID),
			zap.Int("pages", len(parts)),
			zap.Int("length", node.Metadata.ResumeLength),
		)
	}

	return nodes
}

func sourcePath(doc models.RawDocument) string {
	if doc.FilePath != "" {
		return doc.FilePath
	}
	if p, ok := doc.Metadata["file_path"].(string); ok {
		return p
	}
	return ""
}

// pageOrdinal parses a page label; missing or unparseable labels sort as 0.
func pageOrdinal(label string) int {
	n, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil {
		return 0
	}
	return n
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func stringify(md map[string]interface{}) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
