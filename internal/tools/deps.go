// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/mkessel/trident/internal/service"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Service *service.Service
	Logger  *slog.Logger
}
