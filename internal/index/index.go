// Package index defines the index backend capability consumed by the
// dispatcher and retrieval, plus the manager that guards backend handles.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mkessel/trident/internal/models"
)

// ErrIndexNotFound indicates a backend's index object is missing. At query
// time this is degraded capability, not a fatal error.
var ErrIndexNotFound = errors.New("index not found")

// VectorIndex stores embedded chunks and serves similarity retrieval.
type VectorIndex interface {
	Append(ctx context.Context, chunks []models.Chunk) error
	Retrieve(ctx context.Context, embedding []float32, topK int) ([]models.Hit, error)
	DeleteByDocID(ctx context.Context, docID string) error
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
}

// SearchIndex stores chunk text and serves keyword retrieval.
type SearchIndex interface {
	Append(ctx context.Context, chunks []models.Chunk) error
	Retrieve(ctx context.Context, query string, topK int) ([]models.Hit, error)
	DeleteByDocID(ctx context.Context, docID string) error
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
}

// GraphIndex stores extracted entities/relations and serves graph retrieval.
type GraphIndex interface {
	Commit(ctx context.Context, entities []models.Entity, relations []models.Relation) error
	Retrieve(ctx context.Context, query string, topK int) ([]models.Hit, error)
	DeleteByDocID(ctx context.Context, docID string) error
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
}

// State is the derived system state consulted by the consistency guard.
type State struct {
	HasVector   bool
	HasFullText bool
	HasGraph    bool
	// GraphSkipped records a per-run skip-graph override: vector/full-text
	// may serve alone without the system counting as inconsistent.
	GraphSkipped bool
}

// Ready lists the modalities currently able to serve queries.
func (s State) Ready() []models.Modality {
	var out []models.Modality
	if s.HasVector {
		out = append(out, models.ModalityVector)
	}
	if s.HasFullText {
		out = append(out, models.ModalityFullText)
	}
	if s.HasGraph {
		out = append(out, models.ModalityGraph)
	}
	return out
}

// Factories build backend handles on first use.
type Factories struct {
	Vector   func(ctx context.Context) (VectorIndex, error)
	FullText func(ctx context.Context) (SearchIndex, error)
	Graph    func(ctx context.Context) (GraphIndex, error)
}

// Manager owns the backend handles for one corpus. Handles are created once
// and shared by all jobs; creation is guarded so concurrent ingestions never
// double-create the same backend object.
type Manager struct {
	mu        sync.Mutex
	enabled   Enabled
	factories Factories

	vector   VectorIndex
	fulltext SearchIndex
	graph    GraphIndex

	graphSkipped bool
}

// Enabled mirrors the modality configuration; read-only after start.
type Enabled struct {
	Vector   bool
	FullText bool
	Graph    bool
}

// NewManager creates a manager for the enabled modalities.
func NewManager(enabled Enabled, factories Factories) *Manager {
	return &Manager{enabled: enabled, factories: factories}
}

// EnabledModalities returns the static modality configuration.
func (m *Manager) EnabledModalities() Enabled {
	return m.enabled
}

// Vector returns the vector handle, creating it on first use. Returns
// ErrIndexNotFound when the modality is disabled.
func (m *Manager) Vector(ctx context.Context) (VectorIndex, error) {
	if !m.enabled.Vector {
		return nil, fmt.Errorf("%w: vector modality disabled", ErrIndexNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vector == nil {
		v, err := m.factories.Vector(ctx)
		if err != nil {
			return nil, fmt.Errorf("create vector index: %w", err)
		}
		m.vector = v
		slog.Info("vector index created")
	}
	return m.vector, nil
}

// FullText returns the full-text handle, creating it on first use.
func (m *Manager) FullText(ctx context.Context) (SearchIndex, error) {
	if !m.enabled.FullText {
		return nil, fmt.Errorf("%w: fulltext modality disabled", ErrIndexNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fulltext == nil {
		s, err := m.factories.FullText(ctx)
		if err != nil {
			return nil, fmt.Errorf("create fulltext index: %w", err)
		}
		m.fulltext = s
		slog.Info("fulltext index created")
	}
	return m.fulltext, nil
}

// Graph returns the graph handle, creating it on first use.
func (m *Manager) Graph(ctx context.Context) (GraphIndex, error) {
	if !m.enabled.Graph {
		return nil, fmt.Errorf("%w: graph modality disabled", ErrIndexNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph == nil {
		g, err := m.factories.Graph(ctx)
		if err != nil {
			return nil, fmt.Errorf("create graph index: %w", err)
		}
		m.graph = g
		slog.Info("graph index created")
	}
	return m.graph, nil
}

// SetGraphSkipped records the per-run skip-graph override. Distinct from
// disabling the modality: prior graph content is kept, and consistency
// checks stop requiring graph coverage for the active corpus.
func (m *Manager) SetGraphSkipped(skipped bool) {
	m.mu.Lock()
	m.graphSkipped = skipped
	m.mu.Unlock()
}

// State derives the current system state from handle presence and backend
// existence checks.
func (m *Manager) State(ctx context.Context) State {
	m.mu.Lock()
	vector, fulltext, graph := m.vector, m.fulltext, m.graph
	skipped := m.graphSkipped
	m.mu.Unlock()

	st := State{GraphSkipped: skipped}
	if vector != nil {
		if ok, err := vector.Exists(ctx); err == nil && ok {
			st.HasVector = true
		}
	}
	if fulltext != nil {
		if ok, err := fulltext.Exists(ctx); err == nil && ok {
			st.HasFullText = true
		}
	}
	if graph != nil && !skipped {
		if ok, err := graph.Exists(ctx); err == nil && ok {
			st.HasGraph = true
		}
	}
	return st
}

// ClearAll drops every handle reference. Invoked by the consistency guard
// when modality coverage is inconsistent: a half-built corpus is not trusted
// for partial answers, so everything is cleared and reingestion required.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	m.vector = nil
	m.fulltext = nil
	m.graph = nil
	m.graphSkipped = false
	m.mu.Unlock()
	slog.Warn("all index handles cleared, reingestion required")
}
