package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_ingestion",
		Description: "Start an asynchronous ingestion job for a filesystem, web or text source; returns a job ID",
	}, NewSubmitIngestionHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_status",
		Description: "Get progress and per-file status for an ingestion job",
	}, NewJobStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_job",
		Description: "Request cooperative cancellation of a running ingestion job",
	}, NewCancelJobHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List all ingestion jobs, most recent first",
	}, NewListJobsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed corpus across vector, full-text and graph modalities with rank fusion",
	}, NewSearchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed corpus using retrieved context",
	}, NewAskHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Runtime metrics and index state",
	}, NewStatsHandler(deps))
}
