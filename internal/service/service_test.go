package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkessel/trident/internal/config"
	"github.com/mkessel/trident/internal/extract"
	"github.com/mkessel/trident/internal/index"
	"github.com/mkessel/trident/internal/jobs"
	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/models"
	"github.com/mkessel/trident/internal/source"
)

// letterEmbedder produces deterministic letter-frequency embeddings. Texts
// sharing vocabulary score high on cosine similarity, which is enough for
// pipeline tests.
type letterEmbedder struct {
	mu    sync.Mutex
	gate  chan struct{} // when non-nil, EmbedBatch blocks until closed
	calls int
}

func (e *letterEmbedder) embed(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if 'a' <= r && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (e *letterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *letterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	gate := e.gate
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

// echoAnswerer reports how much context it was given.
type echoAnswerer struct{}

func (echoAnswerer) SynthesizeAnswer(ctx context.Context, query, searchContext string) (string, error) {
	return fmt.Sprintf("answer for %q from %d sources", query, strings.Count(searchContext, "## Source")), nil
}

// fixedExtractor emits one entity per chunk.
type fixedExtractor struct{}

func (fixedExtractor) Supports() []extract.Strategy {
	return []extract.Strategy{extract.StrategyUnconstrained, extract.StrategySchema, extract.StrategyDynamic}
}

func (fixedExtractor) Extract(ctx context.Context, chunk models.Chunk, spec extract.StrategySpec) (extract.Extraction, error) {
	return extract.Extraction{
		Entities: []models.Entity{
			{Label: fmt.Sprintf("entity-%d", chunk.Ordinal), Type: "concept", Description: "pipeline concept"},
		},
	}, nil
}

type testEnv struct {
	svc      *Service
	manager  *index.Manager
	embedder *letterEmbedder
}

func newTestEnv(t *testing.T, modalities config.Modalities) *testEnv {
	t.Helper()
	cfg := config.Config{
		Modalities:       modalities,
		ExtractStrategy:  "unconstrained",
		ExtractWorkers:   2,
		ExtractBatchSize: 4,
		ChunkSize:        200,
		ChunkOverlap:     20,
	}
	manager := index.NewManager(
		index.Enabled{Vector: modalities.Vector, FullText: modalities.FullText, Graph: modalities.Graph},
		index.Factories{
			Vector:   func(ctx context.Context) (index.VectorIndex, error) { return index.NewMemoryVector(), nil },
			FullText: func(ctx context.Context) (index.SearchIndex, error) { return index.NewMemorySearch(), nil },
			Graph:    func(ctx context.Context) (index.GraphIndex, error) { return index.NewMemoryGraph(), nil },
		},
	)
	embedder := &letterEmbedder{}
	svc := New(Options{
		Config:    cfg,
		Registry:  jobs.NewRegistry(),
		Sources:   source.NewRegistry(&source.Text{}),
		Embedder:  embedder,
		Answerer:  echoAnswerer{},
		Extractor: fixedExtractor{},
		Manager:   manager,
		Stats:     metrics.NewCollector(),
	})
	return &testEnv{svc: svc, manager: manager, embedder: embedder}
}

func waitForJob(t *testing.T, reg *jobs.Registry, id string) models.JobRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := reg.Get(id)
		if err != nil {
			t.Fatalf("Get job: %v", err)
		}
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return models.JobRecord{}
}

const sampleText = `The ingestion pipeline converts documents into chunks.
Each chunk is embedded and written to the vector index.
Keyword search uses a separate full text index over the same chunks.
Graph extraction builds entities and relations from chunk content.`

func TestService_IngestAndSearch(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true, Graph: true})
	ctx := context.Background()

	jobID, err := env.svc.SubmitIngestion(ctx, IngestRequest{
		Source: models.SourceText,
		Text:   sampleText,
		Name:   "pipeline-notes",
	})
	if err != nil {
		t.Fatalf("SubmitIngestion: %v", err)
	}

	rec := waitForJob(t, env.svc.Jobs(), jobID)
	if rec.Status != models.JobStatusCompleted {
		t.Fatalf("job status = %s (%s)", rec.Status, rec.Message)
	}
	if rec.Progress != 100 || rec.TotalFiles != 1 || rec.FilesCompleted != 1 {
		t.Errorf("job record = %+v", rec)
	}
	if len(rec.Files) != 1 || rec.Files[0].Status != models.FileStatusCompleted {
		t.Errorf("file progress = %+v", rec.Files)
	}

	st := env.svc.State(ctx)
	if !st.HasVector || !st.HasFullText || !st.HasGraph {
		t.Errorf("state after ingest = %+v", st)
	}

	hits, err := env.svc.Search(ctx, "keyword search chunks")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected search hits after ingestion")
	}
	for _, h := range hits {
		if h.Text == "" {
			t.Errorf("hit with empty text: %+v", h)
		}
	}
}

func TestService_SearchBeforeIngest(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true})

	_, err := env.svc.Search(context.Background(), "anything")
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestService_SearchValidation(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true})
	_, err := env.svc.Search(context.Background(), "   ")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blank query, got %v", err)
	}
}

func TestService_SubmitValidation(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true})
	ctx := context.Background()

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{"unsupported source", IngestRequest{Source: "ftp"}},
		{"text without content", IngestRequest{Source: models.SourceText, Text: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.SubmitIngestion(ctx, tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_GraphRequiresExtractor(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, Graph: true})
	env.svc.extractor = nil

	_, err := env.svc.SubmitIngestion(context.Background(), IngestRequest{
		Source: models.SourceText,
		Text:   "content",
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation without extractor, got %v", err)
	}

	// The same submission with skip_graph needs no extractor.
	jobID, err := env.svc.SubmitIngestion(context.Background(), IngestRequest{
		Source:    models.SourceText,
		Text:      sampleText,
		SkipGraph: true,
	})
	if err != nil {
		t.Fatalf("skip-graph submission failed: %v", err)
	}
	rec := waitForJob(t, env.svc.Jobs(), jobID)
	if rec.Status != models.JobStatusCompleted {
		t.Errorf("job status = %s (%s)", rec.Status, rec.Message)
	}
}

// narrowExtractor only honors the schema strategy.
type narrowExtractor struct{ fixedExtractor }

func (narrowExtractor) Supports() []extract.Strategy {
	return []extract.Strategy{extract.StrategySchema}
}

func TestService_StrategyNegotiationAtSubmission(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, Graph: true})
	env.svc.extractor = narrowExtractor{}

	_, err := env.svc.SubmitIngestion(context.Background(), IngestRequest{
		Source: models.SourceText,
		Text:   "content",
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unsupported strategy must fail at submission, got %v", err)
	}
}

func TestService_SkipGraphServesWithoutGraphCoverage(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true, Graph: true})
	ctx := context.Background()

	jobID, err := env.svc.SubmitIngestion(ctx, IngestRequest{
		Source:    models.SourceText,
		Text:      sampleText,
		SkipGraph: true,
	})
	if err != nil {
		t.Fatalf("SubmitIngestion: %v", err)
	}
	rec := waitForJob(t, env.svc.Jobs(), jobID)
	if rec.Status != models.JobStatusCompleted {
		t.Fatalf("job status = %s (%s)", rec.Status, rec.Message)
	}

	// Graph holds nothing, but the skip flag keeps the corpus consistent.
	hits, err := env.svc.Search(ctx, "vector index chunks")
	if err != nil {
		t.Fatalf("Search after skip-graph ingest: %v", err)
	}
	if len(hits) == 0 {
		t.Error("expected hits from the non-graph modalities")
	}
}

func TestService_InconsistentStateForcesReingest(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true})
	ctx := context.Background()

	// Simulate a half-built corpus: vector content without full-text.
	v, err := env.manager.Vector(ctx)
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	_ = v.Append(ctx, []models.Chunk{
		{ID: "d1#0000", DocID: "d1", Text: "orphaned", Embedding: []float32{1}},
	})

	_, err = env.svc.Search(ctx, "orphaned")
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("partial state should read as uninitialized, got %v", err)
	}

	// After the guard cleared state, a fresh ingestion restores service.
	jobID, err := env.svc.SubmitIngestion(ctx, IngestRequest{
		Source: models.SourceText,
		Text:   sampleText,
	})
	if err != nil {
		t.Fatalf("SubmitIngestion: %v", err)
	}
	rec := waitForJob(t, env.svc.Jobs(), jobID)
	if rec.Status != models.JobStatusCompleted {
		t.Fatalf("job status = %s (%s)", rec.Status, rec.Message)
	}
	if _, err := env.svc.Search(ctx, "pipeline chunks"); err != nil {
		t.Errorf("Search after reingest: %v", err)
	}
}

func TestService_CancellationMidJob(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true})
	ctx := context.Background()

	gate := make(chan struct{})
	env.embedder.gate = gate

	jobID, err := env.svc.SubmitIngestion(ctx, IngestRequest{
		Source: models.SourceText,
		Text:   sampleText,
	})
	if err != nil {
		t.Fatalf("SubmitIngestion: %v", err)
	}

	// Wait until the pipeline is blocked in the embedding phase, then cancel
	// and release it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env.embedder.mu.Lock()
		started := env.embedder.calls > 0
		env.embedder.mu.Unlock()
		if started {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := env.svc.Jobs().Cancel(jobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(gate)

	rec := waitForJob(t, env.svc.Jobs(), jobID)
	if rec.Status != models.JobStatusCancelled {
		t.Errorf("job status = %s, want cancelled", rec.Status)
	}

	// The cancelled run must not leave a servable corpus claim behind; a
	// subsequent search reports uninitialized or inconsistent, never stale
	// partial answers presented as complete.
	if _, err := env.svc.Search(ctx, "pipeline"); err == nil {
		st := env.svc.State(ctx)
		if !st.HasVector || !st.HasFullText {
			t.Errorf("search served from partial state: %+v", st)
		}
	} else if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("unexpected search error after cancel: %v", err)
	}
}

func TestService_Ask(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true})
	ctx := context.Background()

	jobID, _ := env.svc.SubmitIngestion(ctx, IngestRequest{
		Source: models.SourceText,
		Text:   sampleText,
	})
	waitForJob(t, env.svc.Jobs(), jobID)

	answer, hits, err := env.svc.Ask(ctx, "how does keyword search work")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected source hits alongside the answer")
	}
	if !strings.Contains(answer, "sources") {
		t.Errorf("answerer did not receive formatted context: %q", answer)
	}
}

func TestService_AskBeforeIngest(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true})
	_, _, err := env.svc.Ask(context.Background(), "anything")
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestService_ReingestSameDocumentReplaces(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true})
	ctx := context.Background()

	submit := func() models.JobRecord {
		jobID, err := env.svc.SubmitIngestion(ctx, IngestRequest{
			Source: models.SourceText,
			Text:   sampleText,
			Name:   "notes",
		})
		if err != nil {
			t.Fatalf("SubmitIngestion: %v", err)
		}
		return waitForJob(t, env.svc.Jobs(), jobID)
	}

	first := submit()
	second := submit()
	if first.Status != models.JobStatusCompleted || second.Status != models.JobStatusCompleted {
		t.Fatalf("jobs: %s / %s", first.Status, second.Status)
	}

	// Same text means same document identity; chunk IDs collide on purpose
	// and the corpus must not grow.
	hits, err := env.svc.Search(ctx, "ingestion pipeline chunks")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	seen := make(map[string]int)
	for _, h := range hits {
		seen[string(h.Modality)+" "+h.Text]++
	}
	for key, n := range seen {
		if n > 1 {
			t.Errorf("duplicate hit after reingest: %q x%d", key, n)
		}
	}
}

// versionedExtractor emits a run-scoped entity so reingest tests can tell
// old graph content from new.
type versionedExtractor struct {
	mu    sync.Mutex
	label string
}

func (e *versionedExtractor) setLabel(label string) {
	e.mu.Lock()
	e.label = label
	e.mu.Unlock()
}

func (e *versionedExtractor) Supports() []extract.Strategy {
	return []extract.Strategy{extract.StrategyUnconstrained, extract.StrategySchema, extract.StrategyDynamic}
}

func (e *versionedExtractor) Extract(ctx context.Context, chunk models.Chunk, spec extract.StrategySpec) (extract.Extraction, error) {
	e.mu.Lock()
	label := e.label
	e.mu.Unlock()
	return extract.Extraction{
		Entities: []models.Entity{
			{Label: label, Type: "concept", Description: label + " fact"},
		},
		Relations: []models.Relation{
			{Subject: label, Object: "corpus", Label: "described_in"},
		},
	}, nil
}

func TestService_ReingestReplacesGraphContent(t *testing.T) {
	env := newTestEnv(t, config.Modalities{Vector: true, FullText: true, Graph: true})
	ctx := context.Background()

	ve := &versionedExtractor{label: "legacy-subsystem"}
	env.svc.extractor = ve

	submit := func() {
		jobID, err := env.svc.SubmitIngestion(ctx, IngestRequest{
			Source: models.SourceText,
			Text:   sampleText,
			Name:   "notes",
		})
		if err != nil {
			t.Fatalf("SubmitIngestion: %v", err)
		}
		rec := waitForJob(t, env.svc.Jobs(), jobID)
		if rec.Status != models.JobStatusCompleted {
			t.Fatalf("job status = %s (%s)", rec.Status, rec.Message)
		}
	}

	submit()
	// Same text means the same document identity; the second run extracts a
	// different fact, and the first run's fact must not survive it.
	ve.setLabel("modern-subsystem")
	submit()

	g, err := env.manager.Graph(ctx)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	hits, err := g.Retrieve(ctx, "subsystem", 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, h := range hits {
		if strings.Contains(h.Text, "legacy-subsystem") {
			t.Errorf("stale graph fact survived reingest: %q", h.Text)
		}
	}
	found := false
	for _, h := range hits {
		if strings.Contains(h.Text, "modern-subsystem") {
			found = true
		}
	}
	if !found {
		t.Errorf("replacement fact missing from graph: %+v", hits)
	}
}

func TestBuildSearchContext(t *testing.T) {
	got := buildSearchContext([]models.Hit{
		{Text: "first snippet", Name: "a.md", Modality: models.ModalityVector},
		{Text: "second snippet", Modality: models.ModalityGraph},
	})
	if !strings.Contains(got, "## Source 1: a.md (vector)") {
		t.Errorf("missing named header: %q", got)
	}
	if !strings.Contains(got, "## Source 2 (graph)") {
		t.Errorf("missing anonymous header: %q", got)
	}
	if !strings.Contains(got, "first snippet") || !strings.Contains(got, "second snippet") {
		t.Errorf("snippets missing: %q", got)
	}
}
