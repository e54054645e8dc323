package models

// Entity is a node extracted from chunk text by the knowledge-graph
// extraction controller. Label is always non-empty after sanitization.
type Entity struct {
	Label       string         `json:"label"`
	Type        string         `json:"type,omitempty"`
	Description string         `json:"description,omitempty"`
	// DocID is the provenance key copied from the source chunk so that
	// delete/update-by-document works after re-ingestion.
	DocID      string         `json:"doc_id"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Relation is a directed edge between two entity labels.
type Relation struct {
	Label       string `json:"label"` // relation type, e.g. "depends_on"
	Subject     string `json:"subject"`
	SubjectType string `json:"subject_type,omitempty"`
	Object      string `json:"object"`
	ObjectType  string `json:"object_type,omitempty"`
	Description string `json:"description,omitempty"`
	DocID       string `json:"doc_id"`
}

// Triple names a permitted (subject type, relation, object type) combination
// for schema-guided extraction in strict mode.
type Triple struct {
	SubjectType string `json:"subject_type"`
	Relation    string `json:"relation"`
	ObjectType  string `json:"object_type"`
}
