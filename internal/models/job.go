// Package models defines data structures shared across the Trident pipeline.
package models

import "time"

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	JobStatusStarted    JobStatus = "started"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// FileStatus represents the state of a single input unit within a job.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// Phase names the pipeline stage currently working on an input unit.
type Phase string

const (
	PhaseConverting   Phase = "converting"
	PhaseChunking     Phase = "chunking"
	PhaseEmbedding    Phase = "embedding"
	PhaseIndexing     Phase = "indexing"
	PhaseKGExtraction Phase = "kg_extraction"
)

// FileProgress tracks one input unit (a file, or a synthetic entry for a
// non-file source such as a web page).
type FileProgress struct {
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Status      FileStatus `json:"status"`
	Phase       Phase      `json:"phase,omitempty"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobRecord is the externally visible snapshot of a processing job.
type JobRecord struct {
	ID             string         `json:"id"`
	Status         JobStatus      `json:"status"`
	Message        string         `json:"message"`
	Progress       int            `json:"progress"` // 0-100
	Files          []FileProgress `json:"files,omitempty"`
	CurrentFile    string         `json:"current_file,omitempty"`
	CurrentPhase   Phase          `json:"current_phase,omitempty"`
	FilesCompleted int            `json:"files_completed"`
	TotalFiles     int            `json:"total_files"`
	TimeRemaining  string         `json:"time_remaining,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
