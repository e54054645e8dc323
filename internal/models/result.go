package models

// Modality identifies one retrieval/index mechanism.
type Modality string

const (
	ModalityVector   Modality = "vector"
	ModalityFullText Modality = "fulltext"
	ModalityGraph    Modality = "graph"
)

// Hit is one ranked retrieval result from a single modality.
type Hit struct {
	Text     string   `json:"text"`
	DocID    string   `json:"doc_id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Score    float64  `json:"score"`
	Modality Modality `json:"modality"`
}

// IngestResult summarizes a completed ingestion job.
type IngestResult struct {
	DocsProcessed    int      `json:"docs_processed"`
	DocsFailed       int      `json:"docs_failed"`
	ChunksIndexed    int      `json:"chunks_indexed"`
	EntitiesCreated  int      `json:"entities_created"`
	RelationsCreated int      `json:"relations_created"`
	ReadyFeatures    []string `json:"ready_features"`
	Errors           []string `json:"errors,omitempty"`
}
