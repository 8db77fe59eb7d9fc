package models

// ChunkTypeFullResume marks a node that holds one whole, unsplit résumé.
const ChunkTypeFullResume = "full_resume"

// RawDocument is one page (or the whole file) emitted by a format reader.
type RawDocument struct {
	Content  string
	FilePath string
	Page     string
	Metadata map[string]interface{}
}

// NodeMetadata is the fixed metadata record attached to every indexed résumé.
type NodeMetadata struct {
	PositionID    int64             `json:"position_id"`
	CandidateName string            `json:"candidate_name"`
	ChunkType     string            `json:"chunk_type"`
	ResumeLength  int               `json:"resume_length"`
	FilePath      string            `json:"file_path"`
	FileName      string            `json:"file_name"`
	Source        map[string]string `json:"source,omitempty"`
}

// ResumeNode is the indexable unit: exactly one per source file.
type ResumeNode struct {
	ID       string
	Text     string
	Metadata NodeMetadata
}

type EmbeddedNode struct {
	ResumeNode
	Embedding []float32
}

// TenantFilter scopes a similarity search to a single position.
type TenantFilter struct {
	PositionID int64
}

// Matches reports whether the metadata belongs to the filtered tenant.
// A nil filter matches everything.
func (f *TenantFilter) Matches(md NodeMetadata) bool {
	return f == nil || md.PositionID == f.PositionID
}

type RetrievedPassage struct {
	NodeID   string       `json:"node_id"`
	Text     string       `json:"text"`
	Score    float64      `json:"score"`
	Metadata NodeMetadata `json:"metadata"`
}
