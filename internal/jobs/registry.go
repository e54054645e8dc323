// Package jobs tracks processing jobs: progress reporting, status
// transitions, and cooperative cancellation.
package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkessel/trident/internal/models"
)

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrNotCancellable indicates the job is already in a terminal state.
var ErrNotCancellable = errors.New("job not cancellable")

// job is the internal mutable record. All access goes through its own mutex
// so that concurrent updates to different jobs never contend.
type job struct {
	mu     sync.Mutex
	record models.JobRecord
}

// Registry is the single source of truth for job progress and cancellation.
// The registry map itself is guarded by an RWMutex; each job carries its own
// lock, so updates are atomic per call without a global write lock.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*job)}
}

// Create initializes a job in "started" state with progress 0 and returns
// its ID. Jobs are never deleted automatically; callers may query them after
// completion.
func (r *Registry) Create() string {
	now := time.Now()
	id := uuid.New().String()[:8] // Short ID for convenience
	j := &job{record: models.JobRecord{
		ID:        id,
		Status:    models.JobStatusStarted,
		Message:   "job created",
		CreatedAt: now,
		UpdatedAt: now,
	}}

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	slog.Info("job created", "job_id", id)
	return id
}

func (r *Registry) get(id string) (*job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// UpdateOption mutates optional fields of a job update.
type UpdateOption func(*models.JobRecord)

// WithFileProgress merges per-file progress entries into the record, keyed
// by file index. Entries for a given job are applied in submission order.
func WithFileProgress(files ...models.FileProgress) UpdateOption {
	return func(rec *models.JobRecord) {
		for _, fp := range files {
			replaced := false
			for i := range rec.Files {
				if rec.Files[i].Index == fp.Index {
					rec.Files[i] = fp
					replaced = true
					break
				}
			}
			if !replaced {
				rec.Files = append(rec.Files, fp)
			}
		}
		slices.SortFunc(rec.Files, func(a, b models.FileProgress) int {
			return a.Index - b.Index
		})
	}
}

// WithCurrentFile sets the name of the file currently being processed.
func WithCurrentFile(name string) UpdateOption {
	return func(rec *models.JobRecord) { rec.CurrentFile = name }
}

// WithPhase sets the pipeline phase currently running.
func WithPhase(phase models.Phase) UpdateOption {
	return func(rec *models.JobRecord) { rec.CurrentPhase = phase }
}

// WithFileCounts sets files-completed and total-files. An ETA is derived
// from these on update unless WithTimeRemaining overrides it.
func WithFileCounts(completed, total int) UpdateOption {
	return func(rec *models.JobRecord) {
		rec.FilesCompleted = completed
		rec.TotalFiles = total
	}
}

// WithTimeRemaining sets an explicit estimated-time-remaining string,
// suppressing the linear extrapolation.
func WithTimeRemaining(eta string) UpdateOption {
	return func(rec *models.JobRecord) { rec.TimeRemaining = eta }
}

// Update overwrites the job's status, message and progress, merging any
// optional fields. Transitions are monotonic: a terminal job silently keeps
// its state (idempotent overwrite of an already-final record is a no-op) and
// a processing job never returns to started.
func (r *Registry) Update(id string, status models.JobStatus, message string, progress int, opts ...UpdateOption) error {
	j, ok := r.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rec := &j.record
	if rec.Status.Terminal() {
		// Late updates from stages that lost a cancellation race are dropped.
		slog.Debug("update ignored for terminal job", "job_id", id, "status", rec.Status)
		return nil
	}
	if status == models.JobStatusStarted && rec.Status == models.JobStatusProcessing {
		status = models.JobStatusProcessing
	}

	prevETA := rec.TimeRemaining
	rec.TimeRemaining = ""
	rec.Status = status
	rec.Message = message
	if progress >= 0 {
		rec.Progress = min(progress, 100)
	}
	for _, opt := range opts {
		opt(rec)
	}

	// Linear extrapolation from files completed so far, unless the caller
	// supplied an explicit estimate.
	if rec.TimeRemaining == "" {
		rec.TimeRemaining = estimateRemaining(rec, time.Now())
		if rec.TimeRemaining == "" {
			rec.TimeRemaining = prevETA
		}
	}
	rec.UpdatedAt = time.Now()
	return nil
}

// estimateRemaining computes avgTimePerFile * filesLeft from elapsed time.
func estimateRemaining(rec *models.JobRecord, now time.Time) string {
	if rec.FilesCompleted <= 0 || rec.TotalFiles <= 0 || rec.FilesCompleted >= rec.TotalFiles {
		return ""
	}
	elapsed := now.Sub(rec.CreatedAt)
	if elapsed <= 0 {
		return ""
	}
	avg := elapsed / time.Duration(rec.FilesCompleted)
	remaining := avg * time.Duration(rec.TotalFiles-rec.FilesCompleted)
	return remaining.Round(time.Second).String()
}

// Cancel requests cooperative cancellation. Allowed only while the job is
// started or processing; terminal jobs report ErrNotCancellable.
func (r *Registry) Cancel(id string) error {
	j, ok := r.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.record.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrNotCancellable, id, j.record.Status)
	}
	j.record.Status = models.JobStatusCancelled
	j.record.Message = "cancellation requested"
	j.record.UpdatedAt = time.Now()
	slog.Info("job cancelled", "job_id", id)
	return nil
}

// IsCancelled is polled by long-running stages before and after each
// expensive sub-step. Unknown jobs read as cancelled so orphaned stages
// stop doing work.
func (r *Registry) IsCancelled(id string) bool {
	j, ok := r.get(id)
	if !ok {
		return true
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.record.Status == models.JobStatusCancelled
}

// Complete marks the job completed with progress 100.
func (r *Registry) Complete(id, message string) error {
	return r.Update(id, models.JobStatusCompleted, message, 100)
}

// Fail marks the job failed with a human-readable cause.
func (r *Registry) Fail(id, message string) error {
	return r.Update(id, models.JobStatusFailed, message, -1)
}

// Get returns a snapshot of the job record.
func (r *Registry) Get(id string) (models.JobRecord, error) {
	j, ok := r.get(id)
	if !ok {
		return models.JobRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return snapshot(&j.record), nil
}

// List returns snapshots of all jobs, most recent first.
func (r *Registry) List() []models.JobRecord {
	r.mu.RLock()
	all := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		all = append(all, j)
	}
	r.mu.RUnlock()

	records := make([]models.JobRecord, 0, len(all))
	for _, j := range all {
		j.mu.Lock()
		records = append(records, snapshot(&j.record))
		j.mu.Unlock()
	}
	slices.SortFunc(records, func(a, b models.JobRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return records
}

// snapshot deep-copies the record so callers never alias registry state.
func snapshot(rec *models.JobRecord) models.JobRecord {
	out := *rec
	out.Files = slices.Clone(rec.Files)
	return out
}
