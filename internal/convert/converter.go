// Package convert defines the document converter boundary: format
// conversion runs in an external service, consumed here behind an interface
// with a stage-specific timeout and cooperative cancellation.
package convert

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mkessel/trident/internal/models"
)

// ErrConvertTimeout distinguishes a conversion timeout from other failures;
// callers retry with smaller inputs rather than surfacing it raw.
var ErrConvertTimeout = errors.New("document conversion timed out")

// Converter turns a raw document into indexable plain text. Implementations
// must honor ctx cancellation and the cancelled predicate at their own
// checkpoints.
type Converter interface {
	Convert(ctx context.Context, doc models.Document, cancelled func() bool) (models.Document, error)
}

// WithTimeout wraps a converter with a per-document deadline. Timeouts are
// reported as ErrConvertTimeout so the caller can tell them apart from
// cancellation.
func WithTimeout(c Converter, timeout time.Duration) Converter {
	if timeout <= 0 {
		return c
	}
	return &timeoutConverter{inner: c, timeout: timeout}
}

type timeoutConverter struct {
	inner   Converter
	timeout time.Duration
}

func (t *timeoutConverter) Convert(ctx context.Context, doc models.Document, cancelled func() bool) (models.Document, error) {
	tctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.inner.Convert(tctx, doc, cancelled)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return models.Document{}, fmt.Errorf("%w: %s after %s", ErrConvertTimeout, doc.Name, t.timeout)
		}
		return models.Document{}, err
	}
	return out, nil
}

var (
	markdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	markdownLink    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	htmlTag         = regexp.MustCompile(`<[^>]+>`)
)

// PlainText is the default converter: it normalizes markdown/HTML-ish text
// in-process. Rich formats (PDF, DOCX) are expected to be converted by the
// external converter service before they reach this pipeline.
type PlainText struct{}

// Convert implements Converter.
func (PlainText) Convert(ctx context.Context, doc models.Document, cancelled func() bool) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return models.Document{}, err
	}
	if cancelled != nil && cancelled() {
		return models.Document{}, context.Canceled
	}

	text := doc.Text
	text = markdownLink.ReplaceAllString(text, "$1")
	text = markdownHeading.ReplaceAllString(text, "")
	text = htmlTag.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if strings.TrimSpace(text) == "" {
		return models.Document{}, fmt.Errorf("document %s has no textual content", doc.Name)
	}

	out := doc
	out.Text = text
	return out, nil
}
