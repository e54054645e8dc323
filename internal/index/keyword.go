package index

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/mkessel/trident/internal/models"
)

// MemorySearch is the accumulative full-text index: chunk text plus per-term
// frequencies, scored at query time with TF-IDF and length normalization.
type MemorySearch struct {
	mu      sync.RWMutex
	chunks  map[string]models.Chunk
	terms   map[string]map[string]int // term -> chunk ID -> count
	lengths map[string]int            // chunk ID -> token count
	created bool
}

// NewMemorySearch creates an empty full-text index.
func NewMemorySearch() *MemorySearch {
	return &MemorySearch{
		chunks:  make(map[string]models.Chunk),
		terms:   make(map[string]map[string]int),
		lengths: make(map[string]int),
	}
}

// Append implements SearchIndex. Re-appending a chunk ID replaces its
// previous postings.
func (m *MemorySearch) Append(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if _, ok := m.chunks[c.ID]; ok {
			m.removeLocked(c.ID)
		}
		m.chunks[c.ID] = c
		tokens := tokenize(c.Text)
		m.lengths[c.ID] = len(tokens)
		for _, t := range tokens {
			postings, ok := m.terms[t]
			if !ok {
				postings = make(map[string]int)
				m.terms[t] = postings
			}
			postings[c.ID]++
		}
	}
	m.created = true
	return nil
}

// Retrieve implements SearchIndex.
func (m *MemorySearch) Retrieve(ctx context.Context, query string, topK int) ([]models.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil, ErrIndexNotFound
	}

	scores := make(map[string]float64)
	total := float64(len(m.chunks))
	for _, t := range tokenize(query) {
		postings, ok := m.terms[t]
		if !ok {
			continue
		}
		idf := math.Log(1 + total/float64(len(postings)))
		for id, count := range postings {
			tf := float64(count) / float64(m.lengths[id])
			scores[id] += tf * idf
		}
	}

	hits := make([]models.Hit, 0, len(scores))
	for id, score := range scores {
		c := m.chunks[id]
		hits = append(hits, models.Hit{
			Text:     c.Text,
			DocID:    c.DocID,
			Name:     c.Name,
			Score:    score,
			Modality: models.ModalityFullText,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteByDocID implements SearchIndex.
func (m *MemorySearch) DeleteByDocID(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocID == docID {
			m.removeLocked(id)
		}
	}
	return nil
}

// Exists implements SearchIndex.
func (m *MemorySearch) Exists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created, nil
}

// Delete implements SearchIndex.
func (m *MemorySearch) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string]models.Chunk)
	m.terms = make(map[string]map[string]int)
	m.lengths = make(map[string]int)
	m.created = false
	return nil
}

func (m *MemorySearch) removeLocked(id string) {
	delete(m.chunks, id)
	delete(m.lengths, id)
	for t, postings := range m.terms {
		delete(postings, id)
		if len(postings) == 0 {
			delete(m.terms, t)
		}
	}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
