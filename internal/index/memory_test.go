package index

import (
	"context"
	"errors"
	"testing"

	"github.com/mkessel/trident/internal/models"
)

func TestMemoryVector_RetrieveBeforeCreate(t *testing.T) {
	v := NewMemoryVector()
	_, err := v.Retrieve(context.Background(), []float32{1, 0}, 5)
	if !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestMemoryVector_CosineOrdering(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryVector()

	err := v.Append(ctx, []models.Chunk{
		{ID: "d1#0000", DocID: "d1", Text: "close match", Embedding: []float32{1, 0.1}},
		{ID: "d1#0001", DocID: "d1", Text: "orthogonal", Embedding: []float32{0, 1}},
		{ID: "d2#0000", DocID: "d2", Text: "exact match", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	hits, err := v.Retrieve(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Text != "exact match" {
		t.Errorf("best hit = %q, want the exact-direction chunk", hits[0].Text)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not sorted by descending score")
	}
	if hits[0].Modality != models.ModalityVector {
		t.Errorf("modality = %s, want vector", hits[0].Modality)
	}
}

func TestMemoryVector_UpsertByChunkID(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryVector()

	_ = v.Append(ctx, []models.Chunk{{ID: "d1#0000", DocID: "d1", Text: "v1", Embedding: []float32{1, 0}}})
	_ = v.Append(ctx, []models.Chunk{{ID: "d1#0000", DocID: "d1", Text: "v2", Embedding: []float32{1, 0}}})

	hits, err := v.Retrieve(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("re-appending same chunk ID duplicated: %d hits", len(hits))
	}
	if hits[0].Text != "v2" {
		t.Errorf("upsert did not replace text: %q", hits[0].Text)
	}
}

func TestMemoryVector_DeleteByDocID(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryVector()

	_ = v.Append(ctx, []models.Chunk{
		{ID: "d1#0000", DocID: "d1", Embedding: []float32{1, 0}},
		{ID: "d1#0001", DocID: "d1", Embedding: []float32{0, 1}},
		{ID: "d2#0000", DocID: "d2", Embedding: []float32{1, 1}},
	})
	if err := v.DeleteByDocID(ctx, "d1"); err != nil {
		t.Fatalf("DeleteByDocID: %v", err)
	}

	hits, _ := v.Retrieve(ctx, []float32{1, 0}, 10)
	if len(hits) != 1 || hits[0].DocID != "d2" {
		t.Errorf("expected only d2 to survive, got %+v", hits)
	}
}

func TestMemoryVector_ExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryVector()

	if ok, _ := v.Exists(ctx); ok {
		t.Error("fresh index should not exist")
	}
	_ = v.Append(ctx, []models.Chunk{{ID: "d1#0000", DocID: "d1", Embedding: []float32{1}}})
	if ok, _ := v.Exists(ctx); !ok {
		t.Error("index should exist after append")
	}
	_ = v.Delete(ctx)
	if ok, _ := v.Exists(ctx); ok {
		t.Error("index should not exist after delete")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryGraph_CommitAndRetrieve(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	err := g.Commit(ctx,
		[]models.Entity{
			{Label: "Billing Service", Type: "service", Description: "handles invoices", DocID: "d1"},
			{Label: "Postgres", Type: "database", DocID: "d1"},
		},
		[]models.Relation{
			{Label: "depends_on", Subject: "Billing Service", Object: "Postgres", DocID: "d1"},
		},
	)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	hits, err := g.Retrieve(ctx, "billing invoices", 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits for matching terms")
	}
	if hits[0].Modality != models.ModalityGraph {
		t.Errorf("modality = %s, want graph", hits[0].Modality)
	}
	// The entity matching both terms must outrank the relation matching one.
	if hits[0].Text != "Billing Service (service): handles invoices" {
		t.Errorf("unexpected top fact: %q", hits[0].Text)
	}
}

func TestMemoryGraph_EntityMergeKeepsDescription(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	_ = g.Commit(ctx, []models.Entity{
		{Label: "Redis", Type: "cache", Description: "session cache", DocID: "d1"},
	}, nil)
	// A later mention without a description must not erase the earlier one.
	_ = g.Commit(ctx, []models.Entity{
		{Label: "redis", Type: "cache", DocID: "d2"},
	}, nil)

	hits, _ := g.Retrieve(ctx, "session cache", 10)
	if len(hits) != 1 {
		t.Fatalf("entities should merge case-insensitively, got %d hits", len(hits))
	}
}

func TestMemoryGraph_DeleteByDocID(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	_ = g.Commit(ctx,
		[]models.Entity{
			{Label: "Alpha", Description: "alpha thing", DocID: "d1"},
			{Label: "Beta", Description: "beta thing", DocID: "d2"},
		},
		[]models.Relation{
			{Label: "uses", Subject: "Alpha", Object: "Beta", DocID: "d1"},
		},
	)
	if err := g.DeleteByDocID(ctx, "d1"); err != nil {
		t.Fatalf("DeleteByDocID: %v", err)
	}

	hits, _ := g.Retrieve(ctx, "alpha", 10)
	if len(hits) != 0 {
		t.Errorf("d1 facts should be gone, got %+v", hits)
	}
	hits, _ = g.Retrieve(ctx, "beta", 10)
	if len(hits) != 1 {
		t.Errorf("d2 facts should survive, got %d hits", len(hits))
	}
}

func TestMemoryGraph_RetrieveBeforeCreate(t *testing.T) {
	g := NewMemoryGraph()
	_, err := g.Retrieve(context.Background(), "anything", 5)
	if !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}
