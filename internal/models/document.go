package models

import "time"

// SourceType identifies where a document came from. The stable document
// identity rules in internal/source are keyed by this type.
type SourceType string

const (
	SourceFilesystem SourceType = "filesystem"
	SourceWeb        SourceType = "web"
	SourceText       SourceType = "text"
)

// Document is a parsed input document ready for chunking.
type Document struct {
	// DocID is the stable, source-type-specific identity used as the
	// provenance key for chunks and extracted entities. It must survive
	// renames/moves of the underlying object.
	DocID string `json:"doc_id"`

	Source   SourceType     `json:"source"`
	Name     string         `json:"name"`
	Path     string         `json:"path"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk is a bounded text window from a source document. Immutable once the
// embedding has been attached.
type Chunk struct {
	ID       string `json:"id"` // docID + ordinal, stable across re-ingestion
	DocID    string `json:"doc_id"`
	JobID    string `json:"job_id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Ordinal  int    `json:"ordinal"`
	Text     string `json:"text"`

	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
