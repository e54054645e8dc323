// Package guard enforces cross-modality consistency: either every enabled
// modality has content for the active corpus, or none may serve.
package guard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mkessel/trident/internal/index"
)

// ErrEmpty indicates no modality holds any content yet.
var ErrEmpty = errors.New("no indexed content")

// ErrInconsistent indicates partial modality coverage: some enabled
// modalities hold content while others do not. The guard clears all handles
// when it detects this, so the caller must ask for reingestion.
var ErrInconsistent = errors.New("inconsistent index state")

// Guard inspects derived system state and decides whether queries may be
// served. A half-built corpus must never silently answer from the modalities
// that happen to exist.
type Guard struct {
	manager *index.Manager
}

// New creates a guard over the managed backends.
func New(manager *index.Manager) *Guard {
	return &Guard{manager: manager}
}

// Inspect returns the derived system state without enforcement.
func (g *Guard) Inspect(ctx context.Context) index.State {
	return g.manager.State(ctx)
}

// EnsureServable validates state before a query. Fully empty state returns
// ErrEmpty. Partial coverage clears every handle and returns
// ErrInconsistent; the caller is expected to translate both into a
// reingestion request.
func (g *Guard) EnsureServable(ctx context.Context) (index.State, error) {
	st := g.manager.State(ctx)

	present, missing := g.coverage(st)
	switch {
	case present == 0:
		return st, ErrEmpty
	case missing > 0:
		slog.Warn("partial modality coverage detected",
			"has_vector", st.HasVector,
			"has_fulltext", st.HasFullText,
			"has_graph", st.HasGraph,
			"graph_skipped", st.GraphSkipped,
		)
		g.manager.ClearAll()
		return st, ErrInconsistent
	default:
		return st, nil
	}
}

// PrepareIngest readies state for a new ingestion. Inconsistent leftovers
// are force-cleared so the run starts from a clean slate instead of
// layering onto a half-built corpus. Consistent existing content is kept
// and appended to.
func (g *Guard) PrepareIngest(ctx context.Context) {
	st := g.manager.State(ctx)
	present, missing := g.coverage(st)
	if present > 0 && missing > 0 {
		slog.Warn("clearing partial index state before ingestion",
			"has_vector", st.HasVector,
			"has_fulltext", st.HasFullText,
			"has_graph", st.HasGraph,
		)
		g.manager.ClearAll()
	}
}

// coverage counts enabled modalities with and without content. A skipped
// graph does not count as missing.
func (g *Guard) coverage(st index.State) (present, missing int) {
	enabled := g.manager.EnabledModalities()
	if enabled.Vector {
		if st.HasVector {
			present++
		} else {
			missing++
		}
	}
	if enabled.FullText {
		if st.HasFullText {
			present++
		} else {
			missing++
		}
	}
	if enabled.Graph && !st.GraphSkipped {
		if st.HasGraph {
			present++
		} else {
			missing++
		}
	}
	return present, missing
}
