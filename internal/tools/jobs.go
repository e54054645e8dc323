package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mkessel/trident/internal/jobs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// JobStatusInput defines the input schema for the job_status tool.
type JobStatusInput struct {
	JobID string `json:"job_id" jsonschema:"required,The job ID returned by submit_ingestion"`
}

// NewJobStatusHandler creates the job_status tool handler.
func NewJobStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[JobStatusInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobStatusInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.JobID == "" {
			return ErrorResult("job_id cannot be empty", "Provide the ID returned by submit_ingestion"), nil, nil
		}

		record, err := deps.Service.Jobs().Get(input.JobID)
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				return ErrorResult("Job not found", "Check the job ID or list_jobs for known jobs"), nil, nil
			}
			return ErrorResult("Failed to read job status", err.Error()), nil, nil
		}

		jsonBytes, _ := json.MarshalIndent(record, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

// CancelJobInput defines the input schema for the cancel_job tool.
type CancelJobInput struct {
	JobID string `json:"job_id" jsonschema:"required,The job ID to cancel"`
}

// NewCancelJobHandler creates the cancel_job tool handler. Cancellation is
// cooperative: running stages stop at their next checkpoint.
func NewCancelJobHandler(deps *Dependencies) mcp.ToolHandlerFor[CancelJobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CancelJobInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.JobID == "" {
			return ErrorResult("job_id cannot be empty", "Provide the ID of the job to cancel"), nil, nil
		}

		err := deps.Service.Jobs().Cancel(input.JobID)
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			return ErrorResult("Job not found", "Check the job ID"), nil, nil
		case errors.Is(err, jobs.ErrNotCancellable):
			return ErrorResult("Job already finished", err.Error()), nil, nil
		case err != nil:
			return ErrorResult("Failed to cancel job", err.Error()), nil, nil
		}

		deps.Logger.Info("job cancellation requested", "job_id", input.JobID)
		return TextResult("cancellation requested, running stages stop at the next checkpoint"), nil, nil
	}
}

// ListJobsInput defines the (empty) input schema for the list_jobs tool.
type ListJobsInput struct{}

// NewListJobsHandler creates the list_jobs tool handler.
func NewListJobsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListJobsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListJobsInput) (
		*mcp.CallToolResult, any, error,
	) {
		records := deps.Service.Jobs().List()
		jsonBytes, _ := json.MarshalIndent(records, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
