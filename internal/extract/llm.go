package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkessel/trident/internal/llm"
	"github.com/mkessel/trident/internal/models"
)

// LLMExtractor extracts entities and relations with a line-oriented prompt
// format the model fills in, one fact per line.
type LLMExtractor struct {
	model *llm.Model
	// MaxPathsPerChunk caps how many relations a single chunk may
	// contribute. Dense chunks otherwise flood the graph with low-value
	// edges.
	MaxPathsPerChunk int
}

// NewLLMExtractor creates an extractor over the given model.
func NewLLMExtractor(model *llm.Model, maxPaths int) *LLMExtractor {
	if maxPaths <= 0 {
		maxPaths = 20
	}
	return &LLMExtractor{model: model, MaxPathsPerChunk: maxPaths}
}

// Supports implements Capability. The line format carries type constraints
// in the prompt, so all three strategies are expressible.
func (e *LLMExtractor) Supports() []Strategy {
	return []Strategy{StrategyUnconstrained, StrategySchema, StrategyDynamic}
}

// Extract implements Capability.
func (e *LLMExtractor) Extract(ctx context.Context, chunk models.Chunk, spec StrategySpec) (Extraction, error) {
	system := buildSystemPrompt(spec)
	user := fmt.Sprintf(`Text:
%s

Extracted entities and relations:`, chunk.Text)

	raw, err := e.model.GenerateWithSystem(ctx, system, user)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract chunk %s: %w", chunk.ID, err)
	}

	result := parseExtraction(raw)
	if spec.Strategy == StrategySchema && spec.Strict && spec.Schema != nil {
		result = enforceSchema(result, spec.Schema)
	}
	if len(result.Relations) > e.MaxPathsPerChunk {
		result.Relations = result.Relations[:e.MaxPathsPerChunk]
	}
	return result, nil
}

func buildSystemPrompt(spec StrategySpec) string {
	var b strings.Builder
	b.WriteString(`You are a Knowledge Graph Specialist. Extract entities and relations from the given text.

Output format (one per line):
ENTITY|name|type|description
RELATION|source|source_type|target|target_type|relation_type|description

Guidelines:
- Extract all meaningful entities with brief descriptions
- Identify relationships between entities
- Use lowercase entity names with hyphens (e.g., "john-doe", "auth-service")
`)

	switch spec.Strategy {
	case StrategySchema:
		if len(spec.Schema.EntityTypes) > 0 {
			fmt.Fprintf(&b, "- Entity types (use ONLY these): %s\n", strings.Join(spec.Schema.EntityTypes, ", "))
		}
		if len(spec.Schema.RelationTypes) > 0 {
			fmt.Fprintf(&b, "- Relation types (use ONLY these): %s\n", strings.Join(spec.Schema.RelationTypes, ", "))
		}
		if len(spec.Schema.Triples) > 0 {
			b.WriteString("- Allowed relation patterns (source_type, relation_type, target_type):\n")
			for _, t := range spec.Schema.Triples {
				fmt.Fprintf(&b, "  (%s, %s, %s)\n", t.SubjectType, t.Relation, t.ObjectType)
			}
		}
	case StrategyDynamic:
		b.WriteString("- First infer a small consistent set of entity and relation types from the text, then apply it uniformly\n")
	default:
		b.WriteString("- Choose whatever entity and relation types fit the text\n")
	}

	return b.String()
}

// parseExtraction parses the line format. Malformed lines are skipped, not
// fatal: partial extractions are still worth committing.
func parseExtraction(raw string) Extraction {
	var out Extraction
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ENTITY|"):
			parts := strings.Split(line, "|")
			if len(parts) < 3 {
				continue
			}
			e := models.Entity{
				Label: strings.TrimSpace(parts[1]),
				Type:  strings.TrimSpace(parts[2]),
			}
			if len(parts) > 3 {
				e.Description = strings.TrimSpace(strings.Join(parts[3:], "|"))
			}
			out.Entities = append(out.Entities, e)

		case strings.HasPrefix(line, "RELATION|"):
			parts := strings.Split(line, "|")
			if len(parts) < 6 {
				continue
			}
			r := models.Relation{
				Subject:     strings.TrimSpace(parts[1]),
				SubjectType: strings.TrimSpace(parts[2]),
				Object:      strings.TrimSpace(parts[3]),
				ObjectType:  strings.TrimSpace(parts[4]),
				Label:       strings.TrimSpace(parts[5]),
			}
			if len(parts) > 6 {
				r.Description = strings.TrimSpace(strings.Join(parts[6:], "|"))
			}
			out.Relations = append(out.Relations, r)
		}
	}
	return out
}

// enforceSchema drops relations whose triple is not declared. Entities keep
// only declared types when the schema lists any.
func enforceSchema(in Extraction, schema *GraphSchema) Extraction {
	var out Extraction

	allowedTypes := make(map[string]bool, len(schema.EntityTypes))
	for _, t := range schema.EntityTypes {
		allowedTypes[strings.ToLower(t)] = true
	}
	for _, e := range in.Entities {
		if len(allowedTypes) > 0 && !allowedTypes[strings.ToLower(e.Type)] {
			continue
		}
		out.Entities = append(out.Entities, e)
	}

	if len(schema.Triples) == 0 {
		out.Relations = in.Relations
		return out
	}
	allowed := make(map[models.Triple]bool, len(schema.Triples))
	for _, t := range schema.Triples {
		allowed[models.Triple{
			SubjectType: strings.ToLower(t.SubjectType),
			Relation:    strings.ToLower(t.Relation),
			ObjectType:  strings.ToLower(t.ObjectType),
		}] = true
	}
	for _, r := range in.Relations {
		key := models.Triple{
			SubjectType: strings.ToLower(r.SubjectType),
			Relation:    strings.ToLower(r.Label),
			ObjectType:  strings.ToLower(r.ObjectType),
		}
		if allowed[key] {
			out.Relations = append(out.Relations, r)
		}
	}
	return out
}
