// Package source provides document producers for the supported source types
// and the stable-document-identity rules that key provenance.
package source

import (
	"context"
	"fmt"

	"github.com/mkessel/trident/internal/models"
)

// Progress reports discovery progress: current/total items and the item
// currently being read. Total may be 0 when the source cannot count ahead.
type Progress func(current, total int, message, currentItem string)

// Producer yields parsed documents for one source type.
type Producer interface {
	// Type returns the source type this producer serves.
	Type() models.SourceType

	// Iterate emits documents for the given source config. Documents are
	// delivered through emit in discovery order; a non-nil error from emit
	// stops iteration (used for cooperative cancellation).
	Iterate(ctx context.Context, cfg Config, emit func(models.Document) error, progress Progress) error
}

// Config carries source-specific parameters for one ingestion run.
type Config struct {
	// Path is a directory or file path (filesystem source).
	Path string `json:"path,omitempty"`
	// URL is a page address (web source).
	URL string `json:"url,omitempty"`
	// Text is inline document content (text source).
	Text string `json:"text,omitempty"`
	// Name is a display name for non-file sources.
	Name string `json:"name,omitempty"`
	// Recursive processes subdirectories (filesystem source).
	Recursive bool `json:"recursive,omitempty"`
}

// Registry maps source types to producers.
type Registry struct {
	producers map[models.SourceType]Producer
}

// NewRegistry builds a registry from the given producers.
func NewRegistry(producers ...Producer) *Registry {
	r := &Registry{producers: make(map[models.SourceType]Producer, len(producers))}
	for _, p := range producers {
		r.producers[p.Type()] = p
	}
	return r
}

// Lookup returns the producer for a source type.
func (r *Registry) Lookup(st models.SourceType) (Producer, error) {
	p, ok := r.producers[st]
	if !ok {
		return nil, fmt.Errorf("unsupported source type: %s", st)
	}
	return p, nil
}
