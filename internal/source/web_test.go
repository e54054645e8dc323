package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkessel/trident/internal/models"
)

const samplePage = `<!doctype html>
<html>
<head><title>Design Notes</title><style>body{color:red}</style></head>
<body>
<nav>Home | About</nav>
<main>
  <h1>Architecture</h1>
  <p>The system has three layers.</p>
</main>
<footer>copyright</footer>
<script>console.log("tracking")</script>
</body>
</html>`

func fetchOne(t *testing.T, url string) models.Document {
	t.Helper()
	w := NewWeb()
	var docs []models.Document
	err := w.Iterate(context.Background(), Config{URL: url}, func(doc models.Document) error {
		docs = append(docs, doc)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	return docs[0]
}

func TestWeb_ExtractsMainContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	doc := fetchOne(t, srv.URL)
	if doc.Name != "Design Notes" {
		t.Errorf("title = %q", doc.Name)
	}
	if !strings.Contains(doc.Text, "three layers") {
		t.Errorf("main content missing: %q", doc.Text)
	}
	for _, junk := range []string{"tracking", "copyright", "Home | About", "color:red"} {
		if strings.Contains(doc.Text, junk) {
			t.Errorf("boilerplate %q leaked into content", junk)
		}
	}
	if doc.Source != models.SourceWeb || doc.Path != srv.URL {
		t.Errorf("document = %+v", doc)
	}
}

func TestWeb_BodyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>plain body text</p></body></html>"))
	}))
	defer srv.Close()

	doc := fetchOne(t, srv.URL)
	if !strings.Contains(doc.Text, "plain body text") {
		t.Errorf("body fallback failed: %q", doc.Text)
	}
	// No title: the URL stands in as the name.
	if doc.Name != srv.URL {
		t.Errorf("name = %q, want the url", doc.Name)
	}
}

func TestWeb_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := NewWeb().Iterate(context.Background(), Config{URL: srv.URL},
		func(models.Document) error { return nil }, nil)
	if err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestWeb_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><script>only();</script></body></html>"))
	}))
	defer srv.Close()

	err := NewWeb().Iterate(context.Background(), Config{URL: srv.URL},
		func(models.Document) error { return nil }, nil)
	if err == nil {
		t.Error("expected error for page with no readable content")
	}
}
