package tools

import (
	"context"
	"encoding/json"

	"github.com/mkessel/trident/internal/metrics"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsInput defines the (empty) input schema for the stats tool.
type StatsInput struct{}

// statsResponse combines runtime metrics with derived index state.
type statsResponse struct {
	Metrics     metrics.Snapshot `json:"metrics"`
	HasVector   bool             `json:"has_vector"`
	HasFullText bool             `json:"has_fulltext"`
	HasGraph    bool             `json:"has_graph"`
}

// NewStatsHandler creates the stats tool handler.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
		*mcp.CallToolResult, any, error,
	) {
		st := deps.Service.State(ctx)
		resp := statsResponse{
			HasVector:   st.HasVector,
			HasFullText: st.HasFullText,
			HasGraph:    st.HasGraph,
		}
		if deps.Service.Stats() != nil {
			resp.Metrics = deps.Service.Stats().Snapshot()
		}

		jsonBytes, _ := json.MarshalIndent(resp, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
