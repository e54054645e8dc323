package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mkessel/trident/internal/models"
)

// contentSelectors are tried in order to find the main content area of a
// page before falling back to body text.
var contentSelectors = []string{"main", "article", ".content", "#content"}

// Web fetches a single page and yields it as one document (a synthetic
// single input unit from the job's point of view).
type Web struct {
	Client *http.Client
}

// NewWeb creates a web producer with a default HTTP timeout.
func NewWeb() *Web {
	return &Web{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Type implements Producer.
func (*Web) Type() models.SourceType { return models.SourceWeb }

// Iterate implements Producer.
func (w *Web) Iterate(ctx context.Context, cfg Config, emit func(models.Document) error, progress Progress) error {
	if cfg.URL == "" {
		return fmt.Errorf("web source requires a url")
	}
	if progress != nil {
		progress(1, 1, "fetching page", cfg.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", cfg.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", cfg.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", cfg.URL, err)
	}

	doc.Find("script, style, nav, footer").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = cfg.URL
	}

	text := extractMainContent(doc)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no readable content at %s", cfg.URL)
	}

	return emit(models.Document{
		DocID:  DocIdentity(models.SourceWeb, map[string]any{"url": cfg.URL}),
		Source: models.SourceWeb,
		Name:   title,
		Path:   cfg.URL,
		Text:   text,
		Metadata: map[string]any{
			"url":   cfg.URL,
			"title": title,
		},
	})
}

// extractMainContent prefers semantic content containers over raw body text.
func extractMainContent(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if text := normalizeWhitespace(s.Text()); text != "" {
				return text
			}
		}
	}
	return normalizeWhitespace(doc.Find("body").Text())
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
