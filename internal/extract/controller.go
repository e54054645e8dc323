package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkessel/trident/internal/index"
	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/models"
)

// ErrExtractionTimeout marks a chunk whose extraction exceeded the per-chunk
// deadline, as opposed to a cancelled run or a model failure.
var ErrExtractionTimeout = errors.New("extraction timed out")

// ErrExtractionFailed indicates no chunk of a run produced usable output.
var ErrExtractionFailed = errors.New("extraction produced no graph content")

// Stats summarizes one extraction run.
type Stats struct {
	ChunksProcessed  int
	ChunksFailed     int
	EntitiesCreated  int
	RelationsCreated int
}

// Controller drives extraction over a document's chunks. Batches run
// serially; inside a batch a fixed worker width extracts concurrently. The
// batch boundary is the cancellation checkpoint and the commit unit, so a
// cancelled job never leaves a half-committed batch behind.
type Controller struct {
	extractor Capability
	graph     index.GraphIndex
	stats     *metrics.Collector

	workers   int
	batchSize int
	timeout   time.Duration
}

// NewController creates a controller with the given concurrency shape.
func NewController(extractor Capability, graph index.GraphIndex, stats *metrics.Collector, workers, batchSize int, timeout time.Duration) *Controller {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 8
	}
	return &Controller{
		extractor: extractor,
		graph:     graph,
		stats:     stats,
		workers:   workers,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// Run extracts all chunks under the negotiated spec and commits the results
// batch by batch. The cancelled predicate is the job-level cancel signal,
// checked between batches. Per-chunk failures are logged and skipped; the
// run only fails outright when cancelled or when nothing at all came out.
func (c *Controller) Run(ctx context.Context, jobID string, chunks []models.Chunk, spec StrategySpec, cancelled func() bool, progress func(done, total int)) (Stats, error) {
	if err := Negotiate(c.extractor, spec); err != nil {
		return Stats{}, err
	}

	var stats Stats
	total := len(chunks)
	done := 0

	for start := 0; start < total; start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if cancelled != nil && cancelled() {
			return stats, context.Canceled
		}

		end := start + c.batchSize
		if end > total {
			end = total
		}
		batch := chunks[start:end]

		entities, relations, failed := c.extractBatch(ctx, jobID, batch, spec)
		stats.ChunksFailed += failed
		stats.ChunksProcessed += len(batch) - failed

		if len(entities) > 0 || len(relations) > 0 {
			if err := c.graph.Commit(ctx, entities, relations); err != nil {
				return stats, fmt.Errorf("commit graph batch: %w", err)
			}
			stats.EntitiesCreated += len(entities)
			stats.RelationsCreated += len(relations)
		}

		done += len(batch)
		if progress != nil {
			progress(done, total)
		}
	}

	if total > 0 && stats.ChunksFailed == total {
		return stats, ErrExtractionFailed
	}
	return stats, nil
}

// extractBatch runs one batch through the worker pool. Results are merged
// after sanitization and provenance stamping.
func (c *Controller) extractBatch(ctx context.Context, jobID string, batch []models.Chunk, spec StrategySpec) ([]models.Entity, []models.Relation, int) {
	type result struct {
		extraction Extraction
		docID      string
		err        error
		chunkID    string
	}

	work := make(chan models.Chunk, len(batch))
	results := make(chan result, len(batch))
	var failed atomic.Int64

	var wg sync.WaitGroup
	width := c.workers
	if width > len(batch) {
		width = len(batch)
	}
	for i := 0; i < width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range work {
				extraction, err := c.extractOne(ctx, chunk, spec)
				if err != nil {
					failed.Add(1)
				}
				results <- result{extraction: extraction, docID: chunk.DocID, err: err, chunkID: chunk.ID}
			}
		}()
	}

	for _, chunk := range batch {
		work <- chunk
	}
	close(work)
	wg.Wait()
	close(results)

	var entities []models.Entity
	var relations []models.Relation
	for r := range results {
		if r.err != nil {
			level := slog.LevelWarn
			if errors.Is(r.err, ErrExtractionTimeout) {
				level = slog.LevelError
			}
			slog.Log(ctx, level, "chunk extraction failed", "job_id", jobID, "chunk_id", r.chunkID, "error", r.err)
			continue
		}
		e, rel := sanitize(r.extraction, r.docID)
		entities = append(entities, e...)
		relations = append(relations, rel...)
	}

	return entities, relations, int(failed.Load())
}

func (c *Controller) extractOne(ctx context.Context, chunk models.Chunk, spec StrategySpec) (Extraction, error) {
	ectx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		ectx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	extraction, err := c.extractor.Extract(ectx, chunk, spec)
	if c.stats != nil {
		c.stats.RecordTiming(metrics.OpExtraction, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Extraction{}, fmt.Errorf("%w: chunk %s after %s", ErrExtractionTimeout, chunk.ID, c.timeout)
		}
		return Extraction{}, err
	}
	return extraction, nil
}

// sanitize drops unusable facts and stamps document provenance. Entities
// need a label; relations need a subject, object and type. Whitespace-only
// labels count as empty.
func sanitize(in Extraction, docID string) ([]models.Entity, []models.Relation) {
	var entities []models.Entity
	for _, e := range in.Entities {
		e.Label = strings.TrimSpace(e.Label)
		if e.Label == "" {
			continue
		}
		e.DocID = docID
		entities = append(entities, e)
	}

	var relations []models.Relation
	for _, r := range in.Relations {
		r.Subject = strings.TrimSpace(r.Subject)
		r.Object = strings.TrimSpace(r.Object)
		r.Label = strings.TrimSpace(r.Label)
		if r.Subject == "" || r.Object == "" || r.Label == "" {
			continue
		}
		r.DocID = docID
		relations = append(relations, r)
	}

	return entities, relations
}
