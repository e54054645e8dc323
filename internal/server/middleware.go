package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxArgLogLen caps logged arguments; ingestion requests can carry whole
// inline documents.
const maxArgLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at
// WARN level. Ingestion submissions return immediately, so anything slow
// here is a retrieval or status path worth noticing.
const slowRequestThreshold = 100 * time.Millisecond

// LoggingMiddleware returns middleware that logs all requests with timing.
func LoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := []any{
				"method", method,
				"duration_ms", duration.Milliseconds(),
			}
			if params := req.GetParams(); params != nil {
				attrs = append(attrs, "params", truncate(fmt.Sprintf("%+v", params), maxArgLogLen))
			}

			switch {
			case err != nil:
				attrs = append(attrs, "error", err.Error())
				logger.Error("request failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}

			return result, err
		}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
