package index

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/mkessel/trident/internal/models"
)

// MemoryVector is an in-memory vector index. Used in tests and as a fallback
// when no Postgres DSN is configured. Appends upsert by chunk ID so
// reingesting the same document replaces rather than duplicates.
type MemoryVector struct {
	mu      sync.RWMutex
	chunks  map[string]models.Chunk
	created bool
}

// NewMemoryVector creates an empty in-memory vector index.
func NewMemoryVector() *MemoryVector {
	return &MemoryVector{chunks: make(map[string]models.Chunk)}
}

// Append implements VectorIndex.
func (m *MemoryVector) Append(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	m.created = true
	return nil
}

// Retrieve implements VectorIndex using brute-force cosine similarity.
func (m *MemoryVector) Retrieve(ctx context.Context, embedding []float32, topK int) ([]models.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil, ErrIndexNotFound
	}

	hits := make([]models.Hit, 0, len(m.chunks))
	for _, c := range m.chunks {
		score := cosineSimilarity(embedding, c.Embedding)
		hits = append(hits, models.Hit{
			Text:     c.Text,
			DocID:    c.DocID,
			Name:     c.Name,
			Score:    score,
			Modality: models.ModalityVector,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByDocID implements VectorIndex.
func (m *MemoryVector) DeleteByDocID(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocID == docID {
			delete(m.chunks, id)
		}
	}
	return nil
}

// Exists implements VectorIndex.
func (m *MemoryVector) Exists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created, nil
}

// Delete implements VectorIndex.
func (m *MemoryVector) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string]models.Chunk)
	m.created = false
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MemoryGraph is an in-memory graph index. Entities merge by label; relations
// accumulate. Retrieval is term overlap against labels and descriptions.
type MemoryGraph struct {
	mu        sync.RWMutex
	entities  map[string]models.Entity
	relations []models.Relation
	created   bool
}

// NewMemoryGraph creates an empty in-memory graph index.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{entities: make(map[string]models.Entity)}
}

// Commit implements GraphIndex.
func (m *MemoryGraph) Commit(ctx context.Context, entities []models.Entity, relations []models.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		key := strings.ToLower(e.Label)
		if prev, ok := m.entities[key]; ok && e.Description == "" {
			e.Description = prev.Description
		}
		m.entities[key] = e
	}
	m.relations = append(m.relations, relations...)
	m.created = true
	return nil
}

// Retrieve implements GraphIndex. Entity and relation facts that share terms
// with the query are rendered as text hits.
func (m *MemoryGraph) Retrieve(ctx context.Context, query string, topK int) ([]models.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil, ErrIndexNotFound
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []models.Hit
	for _, e := range m.entities {
		score := termOverlap(terms, e.Label+" "+e.Description)
		if score == 0 {
			continue
		}
		hits = append(hits, models.Hit{
			Text:     entityFact(e),
			DocID:    e.DocID,
			Name:     e.Label,
			Score:    score,
			Modality: models.ModalityGraph,
		})
	}
	for _, r := range m.relations {
		score := termOverlap(terms, r.Subject+" "+r.Label+" "+r.Object+" "+r.Description)
		if score == 0 {
			continue
		}
		hits = append(hits, models.Hit{
			Text:     relationFact(r),
			DocID:    r.DocID,
			Name:     r.Subject,
			Score:    score,
			Modality: models.ModalityGraph,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByDocID implements GraphIndex.
func (m *MemoryGraph) DeleteByDocID(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entities {
		if e.DocID == docID {
			delete(m.entities, key)
		}
	}
	kept := m.relations[:0]
	for _, r := range m.relations {
		if r.DocID != docID {
			kept = append(kept, r)
		}
	}
	m.relations = kept
	return nil
}

// Exists implements GraphIndex.
func (m *MemoryGraph) Exists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created, nil
}

// Delete implements GraphIndex.
func (m *MemoryGraph) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[string]models.Entity)
	m.relations = nil
	m.created = false
	return nil
}

func entityFact(e models.Entity) string {
	var b strings.Builder
	b.WriteString(e.Label)
	if e.Type != "" {
		b.WriteString(" (" + e.Type + ")")
	}
	if e.Description != "" {
		b.WriteString(": " + e.Description)
	}
	return b.String()
}

func relationFact(r models.Relation) string {
	var b strings.Builder
	b.WriteString(r.Subject + " " + r.Label + " " + r.Object)
	if r.Description != "" {
		b.WriteString(": " + r.Description)
	}
	return b.String()
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func termOverlap(terms []string, text string) float64 {
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
