package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mkessel/trident/internal/extract"
	"github.com/mkessel/trident/internal/models"
	"github.com/mkessel/trident/internal/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SubmitIngestionInput defines the input schema for the submit_ingestion tool.
type SubmitIngestionInput struct {
	Source    string `json:"source" jsonschema:"required,Source type: filesystem | web | text"`
	Path      string `json:"path,omitempty" jsonschema:"Directory or file path (filesystem source)"`
	URL       string `json:"url,omitempty" jsonschema:"Page address (web source)"`
	Text      string `json:"text,omitempty" jsonschema:"Inline document content (text source)"`
	Name      string `json:"name,omitempty" jsonschema:"Display name for non-file sources"`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"Process subdirectories (filesystem source)"`
	SkipGraph bool   `json:"skip_graph,omitempty" jsonschema:"Skip knowledge-graph extraction for this run"`

	EntityTypes   []string `json:"entity_types,omitempty" jsonschema:"Allowed entity types (schema extraction strategy)"`
	RelationTypes []string `json:"relation_types,omitempty" jsonschema:"Allowed relation types (schema extraction strategy)"`
}

// submitResponse is the JSON body returned on successful submission.
type submitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// NewSubmitIngestionHandler creates the submit_ingestion tool handler.
// Submission is asynchronous: the response carries a job ID to poll.
func NewSubmitIngestionHandler(deps *Dependencies) mcp.ToolHandlerFor[SubmitIngestionInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SubmitIngestionInput) (
		*mcp.CallToolResult, any, error,
	) {
		ingestReq := service.IngestRequest{
			Source:    models.SourceType(input.Source),
			Path:      input.Path,
			URL:       input.URL,
			Text:      input.Text,
			Name:      input.Name,
			Recursive: input.Recursive,
			SkipGraph: input.SkipGraph,
		}
		if len(input.EntityTypes) > 0 || len(input.RelationTypes) > 0 {
			ingestReq.Schema = &extract.GraphSchema{
				EntityTypes:   input.EntityTypes,
				RelationTypes: input.RelationTypes,
			}
		}

		jobID, err := deps.Service.SubmitIngestion(ctx, ingestReq)
		if err != nil {
			if errors.Is(err, service.ErrValidation) {
				return ErrorResult(err.Error(), "Fix the request parameters and resubmit"), nil, nil
			}
			deps.Logger.Error("ingestion submission failed", "error", err)
			return ErrorResult("Failed to submit ingestion", err.Error()), nil, nil
		}

		jsonBytes, _ := json.MarshalIndent(submitResponse{
			JobID:   jobID,
			Message: "ingestion started, poll job_status for progress",
		}, "", "  ")
		deps.Logger.Info("ingestion submitted", "job_id", jobID, "source", input.Source)
		return TextResult(string(jsonBytes)), nil, nil
	}
}
