package index

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkessel/trident/internal/models"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// graphSchemaSQL provisions the entity and relation tables. Entities are
// keyed by normalized label; both tables carry doc_id provenance so a
// document's graph contribution can be removed on reingest.
const graphSchemaSQL = `
    DEFINE TABLE IF NOT EXISTS entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS label ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS doc_id ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS properties ON entity TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON entity TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS entity_doc ON entity FIELDS doc_id;
    DEFINE ANALYZER IF NOT EXISTS entity_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS entity_text_ft ON entity FIELDS description FULLTEXT ANALYZER entity_analyzer BM25;
    DEFINE INDEX IF NOT EXISTS entity_label_ft ON entity FIELDS label FULLTEXT ANALYZER entity_analyzer BM25;

    DEFINE TABLE IF NOT EXISTS relates TYPE RELATION IN entity OUT entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS rel_type ON relates TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON relates TYPE string;
    DEFINE FIELD IF NOT EXISTS doc_id ON relates TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON relates TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS unique_key ON relates VALUE <string>string::concat(array::sort([<string>in, <string>out]), rel_type);
    DEFINE INDEX IF NOT EXISTS unique_relation ON relates FIELDS unique_key UNIQUE;
    DEFINE INDEX IF NOT EXISTS relates_doc ON relates FIELDS doc_id;
`

// SurrealGraph is the SurrealDB-backed graph index with an auto-reconnecting
// WebSocket connection.
type SurrealGraph struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    SurrealConfig
	logger logger.Logger
}

// NewSurrealGraph connects to SurrealDB, authenticates, and initializes the
// graph schema.
func NewSurrealGraph(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*SurrealGraph, error) {
	var sdkLogger logger.Logger
	if log != nil {
		sdkLogger = logger.New(log.Handler())
	} else {
		sdkLogger = logger.New(slog.Default().Handler())
	}

	codec := surrealcbor.New()

	// gorillaws requires the base URL without /rpc (it adds /rpc internally)
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	if _, err := db.SignIn(ctx, surrealdb.Auth{
		Username: cfg.Username,
		Password: cfg.Password,
	}); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	g := &SurrealGraph{conn: conn, db: db, cfg: cfg, logger: sdkLogger}
	if _, err := surrealdb.Query[any](ctx, db, graphSchemaSQL, nil); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("init graph schema: %w", err)
	}

	sdkLogger.Info("SurrealDB graph connection established")
	return g, nil
}

// Close closes the SurrealDB connection.
func (g *SurrealGraph) Close(ctx context.Context) error {
	g.logger.Info("closing SurrealDB connection")
	return g.conn.Close(ctx)
}

// entityID derives a stable record ID from a label so repeated mentions of
// the same entity upsert instead of duplicating.
func entityID(label string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(label))))
	return hex.EncodeToString(sum[:8])
}

// Commit implements GraphIndex. Entities upsert by normalized label;
// relations use RELATE with a unique edge key so duplicate edges collapse.
func (g *SurrealGraph) Commit(ctx context.Context, entities []models.Entity, relations []models.Relation) error {
	for _, e := range entities {
		_, err := surrealdb.Query[any](ctx, g.db, `
			UPSERT type::thing("entity", $id) SET
				label = $label,
				type = $type,
				description = $description,
				doc_id = $doc_id,
				properties = $properties
		`, map[string]any{
			"id":          entityID(e.Label),
			"label":       e.Label,
			"type":        e.Type,
			"description": e.Description,
			"doc_id":      e.DocID,
			"properties":  e.Properties,
		})
		if err != nil {
			return fmt.Errorf("upsert entity %q: %w", e.Label, err)
		}
	}

	for _, r := range relations {
		_, err := surrealdb.Query[any](ctx, g.db, `
			RELATE type::thing("entity", $subject)->relates->type::thing("entity", $object) SET
				rel_type = $rel_type,
				description = $description,
				doc_id = $doc_id
		`, map[string]any{
			"subject":     entityID(r.Subject),
			"object":      entityID(r.Object),
			"rel_type":    r.Label,
			"description": r.Description,
			"doc_id":      r.DocID,
		})
		if err != nil {
			// Unique edge key violations mean the relation already exists.
			if strings.Contains(err.Error(), "unique_relation") {
				continue
			}
			return fmt.Errorf("relate %q -[%s]-> %q: %w", r.Subject, r.Label, r.Object, err)
		}
	}

	return nil
}

type surrealEntityHit struct {
	Label       string `json:"label"`
	Type        string `json:"type"`
	Description string `json:"description"`
	DocID       string `json:"doc_id"`
}

type surrealRelationHit struct {
	RelType     string `json:"rel_type"`
	Description string `json:"description"`
	DocID       string `json:"doc_id"`
	InLabel     string `json:"in_label"`
	OutLabel    string `json:"out_label"`
}

// Retrieve implements GraphIndex. Entity descriptions and labels are
// searched with BM25; matched entities pull their relation facts along so
// the hit text reads as connected knowledge rather than bare labels.
func (g *SurrealGraph) Retrieve(ctx context.Context, query string, topK int) ([]models.Hit, error) {
	entityResults, err := surrealdb.Query[[]surrealEntityHit](ctx, g.db, `
		SELECT label, type, description, doc_id FROM entity
		WHERE description @0@ $q OR label @1@ $q
		LIMIT $limit
	`, map[string]any{"q": query, "limit": topK})
	if err != nil {
		return nil, fmt.Errorf("graph entity search: %w", err)
	}

	var hits []models.Hit
	var entityHits []surrealEntityHit
	if entityResults != nil && len(*entityResults) > 0 {
		entityHits = (*entityResults)[0].Result
	}

	total := len(entityHits)
	for rank, e := range entityHits {
		text := e.Label
		if e.Type != "" {
			text += " (" + e.Type + ")"
		}
		if e.Description != "" {
			text += ": " + e.Description
		}

		relResults, err := surrealdb.Query[[]surrealRelationHit](ctx, g.db, `
			SELECT rel_type, description, doc_id, in.label AS in_label, out.label AS out_label
			FROM relates
			WHERE in = type::thing("entity", $id) OR out = type::thing("entity", $id)
			LIMIT 5
		`, map[string]any{"id": entityID(e.Label)})
		if err == nil && relResults != nil && len(*relResults) > 0 {
			for _, r := range (*relResults)[0].Result {
				text += fmt.Sprintf("\n%s %s %s", r.InLabel, r.RelType, r.OutLabel)
			}
		}

		// BM25 scores are not surfaced through this query shape, so hits
		// keep their rank order via a descending synthetic score.
		hits = append(hits, models.Hit{
			Text:     text,
			DocID:    e.DocID,
			Name:     e.Label,
			Score:    float64(total-rank) / float64(total),
			Modality: models.ModalityGraph,
		})
	}

	return hits, nil
}

// DeleteByDocID implements GraphIndex.
func (g *SurrealGraph) DeleteByDocID(ctx context.Context, docID string) error {
	if _, err := surrealdb.Query[any](ctx, g.db, `
		DELETE relates WHERE doc_id = $doc_id;
		DELETE entity WHERE doc_id = $doc_id;
	`, map[string]any{"doc_id": docID}); err != nil {
		return fmt.Errorf("delete graph content for %s: %w", docID, err)
	}
	return nil
}

type surrealCount struct {
	Count int `json:"count"`
}

// Exists implements GraphIndex. The graph exists once at least one entity
// has been committed.
func (g *SurrealGraph) Exists(ctx context.Context) (bool, error) {
	results, err := surrealdb.Query[[]surrealCount](ctx, g.db, `
		SELECT count() AS count FROM entity GROUP ALL
	`, nil)
	if err != nil {
		return false, fmt.Errorf("count entities: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return false, nil
	}
	return (*results)[0].Result[0].Count > 0, nil
}

// Delete implements GraphIndex.
func (g *SurrealGraph) Delete(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, g.db, `
		DELETE relates;
		DELETE entity;
	`, nil); err != nil {
		return fmt.Errorf("wipe graph: %w", err)
	}
	return nil
}
