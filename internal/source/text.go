package source

import (
	"context"
	"fmt"

	"github.com/mkessel/trident/internal/models"
)

// Text yields a single document from inline content. Used by callers that
// already hold the text (API submissions, tests).
type Text struct{}

// Type implements Producer.
func (Text) Type() models.SourceType { return models.SourceText }

// Iterate implements Producer.
func (Text) Iterate(ctx context.Context, cfg Config, emit func(models.Document) error, progress Progress) error {
	if cfg.Text == "" {
		return fmt.Errorf("text source requires content")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := cfg.Name
	if name == "" {
		name = "inline-text"
	}
	if progress != nil {
		progress(1, 1, "reading inline text", name)
	}

	return emit(models.Document{
		DocID:  DocIdentity(models.SourceText, map[string]any{"text": cfg.Text}),
		Source: models.SourceText,
		Name:   name,
		Path:   name,
		Text:   cfg.Text,
	})
}
