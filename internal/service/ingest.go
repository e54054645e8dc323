package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mkessel/trident/internal/chunker"
	"github.com/mkessel/trident/internal/extract"
	"github.com/mkessel/trident/internal/jobs"
	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/models"
	"github.com/mkessel/trident/internal/source"
)

// embedBatchSize is how many chunk texts go to the embedder per call.
const embedBatchSize = 32

// IngestRequest describes one ingestion submission.
type IngestRequest struct {
	Source    models.SourceType `json:"source"`
	Path      string            `json:"path,omitempty"`
	URL       string            `json:"url,omitempty"`
	Text      string            `json:"text,omitempty"`
	Name      string            `json:"name,omitempty"`
	Recursive bool              `json:"recursive,omitempty"`

	// SkipGraph disables graph extraction for this run without counting
	// the corpus as inconsistent.
	SkipGraph bool `json:"skip_graph,omitempty"`

	// Schema constrains extraction when the configured strategy is
	// schema-based.
	Schema *extract.GraphSchema `json:"schema,omitempty"`
}

// SubmitIngestion validates the request, reconciles index state, creates a
// job and starts the pipeline in the background. It returns immediately
// with the job ID; progress is polled through the job registry.
func (s *Service) SubmitIngestion(ctx context.Context, req IngestRequest) (string, error) {
	producer, err := s.sources.Lookup(req.Source)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}

	switch req.Source {
	case models.SourceFilesystem:
		if req.Path == "" {
			return "", fmt.Errorf("%w: filesystem source requires a path", ErrValidation)
		}
		if _, err := os.Stat(req.Path); err != nil {
			return "", fmt.Errorf("%w: invalid path: %s", ErrValidation, err)
		}
	case models.SourceWeb:
		if req.URL == "" {
			return "", fmt.Errorf("%w: web source requires a url", ErrValidation)
		}
	case models.SourceText:
		if strings.TrimSpace(req.Text) == "" {
			return "", fmt.Errorf("%w: text source requires content", ErrValidation)
		}
	}

	graphActive := s.cfg.Modalities.Graph && !req.SkipGraph
	spec := s.strategySpec(req)
	if graphActive {
		if s.extractor == nil {
			return "", fmt.Errorf("%w: graph modality enabled but no extractor configured", ErrValidation)
		}
		if err := extract.Negotiate(s.extractor, spec); err != nil {
			return "", fmt.Errorf("%w: %s", ErrValidation, err)
		}
	}

	// Leftover partial state from a failed run is cleared up front so this
	// run starts against a clean, consistent corpus.
	s.guard.PrepareIngest(ctx)
	if s.cfg.Modalities.Graph {
		s.manager.SetGraphSkipped(req.SkipGraph)
	}

	jobID := s.registry.Create()
	go s.runIngestion(context.Background(), jobID, producer, req, spec)

	return jobID, nil
}

func (s *Service) strategySpec(req IngestRequest) extract.StrategySpec {
	return extract.StrategySpec{
		Strategy: extract.Strategy(s.cfg.ExtractStrategy),
		Schema:   req.Schema,
		Strict:   s.cfg.ExtractStrict,
	}
}

// runIngestion is the background pipeline for one job. Every document runs
// its phases in order; cancellation is checked between documents and
// between phases so no expensive stage starts after a cancel request.
func (s *Service) runIngestion(ctx context.Context, jobID string, producer source.Producer, req IngestRequest, spec extract.StrategySpec) {
	start := time.Now()
	_ = s.registry.Update(jobID, models.JobStatusProcessing, "discovering documents", 0)

	srcCfg := source.Config{
		Path:      req.Path,
		URL:       req.URL,
		Text:      req.Text,
		Name:      req.Name,
		Recursive: req.Recursive,
	}

	var docs []models.Document
	err := producer.Iterate(ctx, srcCfg, func(doc models.Document) error {
		if s.registry.IsCancelled(jobID) {
			return context.Canceled
		}
		docs = append(docs, doc)
		return nil
	}, func(current, total int, message, item string) {
		_ = s.registry.Update(jobID, models.JobStatusProcessing, message, 0, withDiscoveredTotal(total))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		_ = s.registry.Fail(jobID, fmt.Sprintf("document discovery failed: %v", err))
		return
	}
	if len(docs) == 0 {
		_ = s.registry.Fail(jobID, "no documents found")
		return
	}

	total := len(docs)
	var result models.IngestResult

	for i, doc := range docs {
		if s.registry.IsCancelled(jobID) {
			slog.Info("ingestion cancelled", "job_id", jobID, "docs_done", i, "docs_total", total)
			return
		}

		docStart := time.Now()
		fp := models.FileProgress{
			Index:     i,
			Name:      doc.Name,
			Path:      doc.Path,
			Status:    models.FileStatusProcessing,
			StartedAt: &docStart,
		}

		chunksIndexed, extStats, err := s.processDocument(ctx, jobID, &fp, doc, spec, req.SkipGraph, i, total)

		now := time.Now()
		fp.CompletedAt = &now
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fp.Status = models.FileStatusFailed
			fp.Error = err.Error()
			result.DocsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.Name, err))
			slog.Warn("document failed", "job_id", jobID, "doc", doc.Name, "error", err)
		} else {
			fp.Status = models.FileStatusCompleted
			fp.Progress = 100
			result.DocsProcessed++
			result.ChunksIndexed += chunksIndexed
			result.EntitiesCreated += extStats.EntitiesCreated
			result.RelationsCreated += extStats.RelationsCreated
		}

		progress := (i + 1) * 100 / total
		_ = s.registry.Update(jobID, models.JobStatusProcessing,
			fmt.Sprintf("processed %d/%d documents", i+1, total), progress,
			jobs.WithFileProgress(fp), jobs.WithFileCounts(i+1, total))
	}

	if result.DocsProcessed == 0 {
		_ = s.registry.Fail(jobID, fmt.Sprintf("no documents processed (%d failed)", result.DocsFailed))
		return
	}

	result.ReadyFeatures = s.readyFeatures(ctx)
	msg := completionMessage(result, time.Since(start))
	_ = s.registry.Complete(jobID, msg)
	slog.Info("ingestion complete", "job_id", jobID,
		"docs", result.DocsProcessed, "failed", result.DocsFailed,
		"chunks", result.ChunksIndexed, "entities", result.EntitiesCreated,
		"relations", result.RelationsCreated, "duration", time.Since(start).Round(time.Millisecond))
}

// processDocument runs one document through convert, chunk, embed, index
// and extraction phases, updating the file's progress entry as it goes.
func (s *Service) processDocument(ctx context.Context, jobID string, fp *models.FileProgress, doc models.Document, spec extract.StrategySpec, skipGraph bool, docIdx, docTotal int) (int, extract.Stats, error) {
	cancelled := func() bool { return s.registry.IsCancelled(jobID) }
	baseProgress := docIdx * 100 / docTotal

	phase := func(p models.Phase, filePct int) {
		fp.Phase = p
		fp.Progress = filePct
		_ = s.registry.Update(jobID, models.JobStatusProcessing,
			fmt.Sprintf("%s %s", p, doc.Name), baseProgress,
			jobs.WithFileProgress(*fp), jobs.WithCurrentFile(doc.Name), jobs.WithPhase(p), jobs.WithFileCounts(docIdx, docTotal))
	}

	// Convert
	phase(models.PhaseConverting, 5)
	converted, err := s.converter.Convert(ctx, doc, cancelled)
	if err != nil {
		return 0, extract.Stats{}, err
	}
	if cancelled() {
		return 0, extract.Stats{}, context.Canceled
	}

	// Chunk
	phase(models.PhaseChunking, 20)
	pieces := chunker.Split(converted.Text, s.chunking)
	if len(pieces) == 0 {
		return 0, extract.Stats{}, fmt.Errorf("document produced no chunks")
	}
	chunks := make([]models.Chunk, len(pieces))
	now := time.Now()
	for i, text := range pieces {
		chunks[i] = models.Chunk{
			ID:        fmt.Sprintf("%s#%04d", doc.DocID, i),
			DocID:     doc.DocID,
			JobID:     jobID,
			Name:      doc.Name,
			Path:      doc.Path,
			Ordinal:   i,
			Text:      text,
			CreatedAt: now,
		}
	}

	// Embed
	if s.cfg.Modalities.Vector {
		phase(models.PhaseEmbedding, 40)
		if err := s.embedChunks(ctx, chunks, cancelled); err != nil {
			return 0, extract.Stats{}, err
		}
	}
	if cancelled() {
		return 0, extract.Stats{}, context.Canceled
	}

	// Index
	phase(models.PhaseIndexing, 70)
	if err := s.dispatcher.DeleteByDocID(ctx, doc.DocID); err != nil {
		slog.Warn("stale chunk cleanup failed", "doc_id", doc.DocID, "error", err)
	}
	dispatched := s.dispatcher.Dispatch(ctx, jobID, chunks)
	if dispatched.Failed(s.manager.EnabledModalities()) {
		return 0, extract.Stats{}, fmt.Errorf("%w: all index backends rejected the batch", ErrBackendUnavailable)
	}
	indexed := dispatched.VectorWritten
	if indexed == 0 {
		indexed = dispatched.FullTextWritten
	}

	// Extract
	var extStats extract.Stats
	if s.cfg.Modalities.Graph && !skipGraph {
		if cancelled() {
			return indexed, extStats, context.Canceled
		}
		phase(models.PhaseKGExtraction, 85)

		graphIdx, err := s.manager.Graph(ctx)
		if err != nil {
			return indexed, extStats, fmt.Errorf("%w: %s", ErrBackendUnavailable, err)
		}
		// Entities and relations from the document's previous content would
		// otherwise survive the reingest.
		if err := graphIdx.DeleteByDocID(ctx, doc.DocID); err != nil {
			slog.Warn("stale graph cleanup failed", "doc_id", doc.DocID, "error", err)
		}
		controller := extract.NewController(s.extractor, graphIdx, s.stats,
			s.cfg.ExtractWorkers, s.cfg.ExtractBatchSize, s.cfg.ExtractTimeout)

		extStats, err = controller.Run(ctx, jobID, chunks, spec, cancelled, func(done, total int) {
			fp.Message = fmt.Sprintf("extracted %d/%d chunks", done, total)
			_ = s.registry.Update(jobID, models.JobStatusProcessing, fp.Message, baseProgress, jobs.WithFileProgress(*fp))
		})
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				return indexed, extStats, context.Canceled
			case errors.Is(err, extract.ErrExtractionTimeout):
				return indexed, extStats, fmt.Errorf("%w: %s", ErrTimeout, err)
			default:
				return indexed, extStats, fmt.Errorf("%w: %s", ErrExtraction, err)
			}
		}
	}

	return indexed, extStats, nil
}

// embedChunks fills chunk embeddings in fixed-size batches, checking the
// cancel signal between batches.
func (s *Service) embedChunks(ctx context.Context, chunks []models.Chunk, cancelled func() bool) error {
	if s.embedder == nil {
		return fmt.Errorf("%w: no embedder configured", ErrBackendUnavailable)
	}
	for start := 0; start < len(chunks); start += embedBatchSize {
		if cancelled() {
			return context.Canceled
		}
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}

		embedStart := time.Now()
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if s.stats != nil {
			s.stats.RecordTiming(metrics.OpEmbedding, time.Since(embedStart))
		}
		if err != nil {
			return fmt.Errorf("%w: %s", ErrBackendUnavailable, err)
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = vectors[i-start]
		}
	}
	return nil
}

// readyFeatures names the retrieval features available after ingestion.
func (s *Service) readyFeatures(ctx context.Context) []string {
	st := s.manager.State(ctx)
	var features []string
	if st.HasVector {
		features = append(features, "semantic search")
	}
	if st.HasFullText {
		features = append(features, "keyword search")
	}
	if st.HasGraph {
		features = append(features, "graph search")
	}
	return features
}

func completionMessage(result models.IngestResult, elapsed time.Duration) string {
	msg := fmt.Sprintf("ingested %d documents (%d chunks", result.DocsProcessed, result.ChunksIndexed)
	if result.EntitiesCreated > 0 || result.RelationsCreated > 0 {
		msg += fmt.Sprintf(", %d entities, %d relations", result.EntitiesCreated, result.RelationsCreated)
	}
	msg += fmt.Sprintf(") in %s", elapsed.Round(time.Second))
	if result.DocsFailed > 0 {
		msg += fmt.Sprintf(", %d failed", result.DocsFailed)
	}
	if len(result.ReadyFeatures) > 0 {
		msg += "; ready: " + strings.Join(result.ReadyFeatures, ", ")
	}
	return msg
}

// withDiscoveredTotal records the discovered document count on the job as
// soon as the producer can report it.
func withDiscoveredTotal(total int) jobs.UpdateOption {
	return func(rec *models.JobRecord) {
		if total > 0 {
			rec.TotalFiles = total
		}
	}
}
