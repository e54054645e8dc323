package service

import "errors"

// Sentinel errors for orchestrator operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation indicates a malformed or unsupported request, detected
	// before any work was scheduled.
	ErrValidation = errors.New("invalid request")

	// ErrNotInitialized indicates no consistent corpus is available to
	// query. Callers should ingest documents first.
	ErrNotInitialized = errors.New("not initialized, please ingest documents first")

	// ErrTimeout indicates a stage exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrBackendUnavailable indicates an index or model backend could not
	// be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrExtraction indicates knowledge-graph extraction failed outright.
	ErrExtraction = errors.New("extraction failed")
)
