package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/models"
)

// DispatchResult reports what a single batch dispatch accomplished per
// backend. A backend error inside a batch is recorded here, not fatal:
// remaining backends still receive the batch.
type DispatchResult struct {
	VectorWritten   int
	FullTextWritten int
	VectorErr       error
	FullTextErr     error
}

// Failed reports whether every enabled backend rejected the batch.
func (r DispatchResult) Failed(enabled Enabled) bool {
	attempted := 0
	failed := 0
	if enabled.Vector {
		attempted++
		if r.VectorErr != nil {
			failed++
		}
	}
	if enabled.FullText {
		attempted++
		if r.FullTextErr != nil {
			failed++
		}
	}
	return attempted > 0 && attempted == failed
}

// Dispatcher fans embedded chunk batches out to the enabled non-graph
// backends. Graph content flows through the extraction controller instead
// since it carries entities and relations rather than chunks.
type Dispatcher struct {
	manager *Manager
	stats   *metrics.Collector
}

// NewDispatcher creates a dispatcher over the managed backends.
func NewDispatcher(manager *Manager, stats *metrics.Collector) *Dispatcher {
	return &Dispatcher{manager: manager, stats: stats}
}

// Dispatch writes one batch to every enabled backend. Disabled modalities
// are skipped without noise. Chunk IDs are stable per document, so
// re-dispatching a document replaces its chunks instead of duplicating them.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID string, chunks []models.Chunk) DispatchResult {
	var result DispatchResult
	if len(chunks) == 0 {
		return result
	}

	enabled := d.manager.EnabledModalities()

	if enabled.Vector {
		start := time.Now()
		err := d.appendVector(ctx, chunks)
		elapsed := time.Since(start)
		if d.stats != nil {
			d.stats.RecordTiming(metrics.OpVectorWrite, elapsed)
		}
		if err != nil {
			result.VectorErr = err
			slog.Error("vector write failed", "job_id", jobID, "chunks", len(chunks), "error", err)
		} else {
			result.VectorWritten = len(chunks)
			slog.Debug("vector write complete", "job_id", jobID, "chunks", len(chunks), "duration_ms", elapsed.Milliseconds())
		}
	}

	if enabled.FullText {
		start := time.Now()
		err := d.appendFullText(ctx, chunks)
		elapsed := time.Since(start)
		if d.stats != nil {
			d.stats.RecordTiming(metrics.OpFullTextWrite, elapsed)
		}
		if err != nil {
			result.FullTextErr = err
			slog.Error("fulltext write failed", "job_id", jobID, "chunks", len(chunks), "error", err)
		} else {
			result.FullTextWritten = len(chunks)
			slog.Debug("fulltext write complete", "job_id", jobID, "chunks", len(chunks), "duration_ms", elapsed.Milliseconds())
		}
	}

	return result
}

// DeleteByDocID removes a document's chunks from every chunk-bearing
// backend. Chunk-ID upserts only replace positions that still exist; when a
// reingested document shrinks, the trailing ordinals of the previous run
// have to be removed explicitly or they keep matching queries.
func (d *Dispatcher) DeleteByDocID(ctx context.Context, docID string) error {
	enabled := d.manager.EnabledModalities()
	var errs []error

	if enabled.Vector {
		if v, err := d.manager.Vector(ctx); err != nil {
			errs = append(errs, err)
		} else if err := v.DeleteByDocID(ctx, docID); err != nil {
			errs = append(errs, err)
		}
	}
	if enabled.FullText {
		if s, err := d.manager.FullText(ctx); err != nil {
			errs = append(errs, err)
		} else if err := s.DeleteByDocID(ctx, docID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) appendVector(ctx context.Context, chunks []models.Chunk) error {
	v, err := d.manager.Vector(ctx)
	if err != nil {
		return err
	}
	return v.Append(ctx, chunks)
}

func (d *Dispatcher) appendFullText(ctx context.Context, chunks []models.Chunk) error {
	s, err := d.manager.FullText(ctx)
	if err != nil {
		return err
	}
	return s.Append(ctx, chunks)
}
