package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mkessel/trident/internal/models"
	"github.com/mkessel/trident/internal/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"required,The search query text"`
}

// searchResponse is the JSON body returned for search results.
type searchResponse struct {
	Hits  []models.Hit `json:"hits"`
	Count int          `json:"count"`
}

// NewSearchHandler creates the search tool handler. Results come from every
// servable modality, fused into one ranking.
func NewSearchHandler(deps *Dependencies) mcp.ToolHandlerFor[SearchInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, any, error,
	) {
		hits, err := deps.Service.Search(ctx, input.Query)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrValidation):
				return ErrorResult(err.Error(), "Provide a non-empty query"), nil, nil
			case errors.Is(err, service.ErrNotInitialized):
				return ErrorResult("No consistent corpus available", "Ingest documents first with submit_ingestion"), nil, nil
			default:
				deps.Logger.Error("search failed", "error", err)
				return ErrorResult("Search failed", err.Error()), nil, nil
			}
		}

		jsonBytes, _ := json.MarshalIndent(searchResponse{Hits: hits, Count: len(hits)}, "", "  ")

		queryLog := input.Query
		if len(queryLog) > 30 {
			queryLog = queryLog[:30] + "..."
		}
		deps.Logger.Info("search completed", "query", queryLog, "results", len(hits))
		return TextResult(string(jsonBytes)), nil, nil
	}
}

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	Query string `json:"query" jsonschema:"required,The question to answer from the indexed corpus"`
}

// askResponse is the JSON body returned for synthesized answers.
type askResponse struct {
	Answer  string       `json:"answer"`
	Sources []models.Hit `json:"sources,omitempty"`
}

// NewAskHandler creates the ask tool handler: retrieval plus answer
// synthesis over the fused context.
func NewAskHandler(deps *Dependencies) mcp.ToolHandlerFor[AskInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, any, error,
	) {
		answer, hits, err := deps.Service.Ask(ctx, input.Query)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrValidation):
				return ErrorResult(err.Error(), "Provide a non-empty question"), nil, nil
			case errors.Is(err, service.ErrNotInitialized):
				return ErrorResult("No consistent corpus available", "Ingest documents first with submit_ingestion"), nil, nil
			default:
				deps.Logger.Error("ask failed", "error", err)
				return ErrorResult("Failed to answer question", err.Error()), nil, nil
			}
		}

		jsonBytes, _ := json.MarshalIndent(askResponse{Answer: answer, Sources: hits}, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
