// Package extract turns chunk text into knowledge-graph content via an LLM,
// under an extraction strategy negotiated against extractor capabilities.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkessel/trident/internal/models"
)

// Strategy selects how entity and relation types are constrained.
type Strategy string

const (
	// StrategyUnconstrained lets the model pick any types it sees.
	StrategyUnconstrained Strategy = "unconstrained"
	// StrategySchema constrains extraction to a caller-provided schema.
	StrategySchema Strategy = "schema"
	// StrategyDynamic asks the model to induce a schema from the corpus.
	StrategyDynamic Strategy = "dynamic"
)

// ErrUnsupportedStrategy indicates the configured extractor cannot honor the
// requested strategy. Surfaced at submission time, before any work runs.
var ErrUnsupportedStrategy = errors.New("unsupported extraction strategy")

// GraphSchema constrains the types an extraction may produce.
type GraphSchema struct {
	EntityTypes   []string
	RelationTypes []string
	Triples       []models.Triple
}

// StrategySpec is the full extraction request: a strategy plus its schema
// and strictness, when applicable.
type StrategySpec struct {
	Strategy Strategy
	Schema   *GraphSchema
	// Strict drops any extracted relation whose (subject type, relation,
	// object type) triple is not declared in the schema.
	Strict bool
}

// Validate checks internal consistency of the spec itself.
func (s StrategySpec) Validate() error {
	switch s.Strategy {
	case StrategyUnconstrained, StrategyDynamic:
		return nil
	case StrategySchema:
		if s.Schema == nil || (len(s.Schema.EntityTypes) == 0 && len(s.Schema.Triples) == 0) {
			return fmt.Errorf("schema strategy requires a non-empty schema")
		}
		return nil
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
}

// Extraction is the result of extracting one chunk.
type Extraction struct {
	Entities  []models.Entity
	Relations []models.Relation
}

// Capability is an extractor backend. Supports declares which strategies it
// can honor so the controller can negotiate up front instead of failing
// mid-run.
type Capability interface {
	Supports() []Strategy
	Extract(ctx context.Context, chunk models.Chunk, spec StrategySpec) (Extraction, error)
}

// Negotiate verifies the extractor supports the requested strategy.
func Negotiate(cap Capability, spec StrategySpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	for _, s := range cap.Supports() {
		if s == spec.Strategy {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedStrategy, spec.Strategy)
}
