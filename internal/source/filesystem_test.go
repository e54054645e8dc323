package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkessel/trident/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func collect(t *testing.T, cfg Config) []models.Document {
	t.Helper()
	var docs []models.Document
	err := Filesystem{}.Iterate(context.Background(), cfg, func(doc models.Document) error {
		docs = append(docs, doc)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	return docs
}

func TestFilesystem_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.md", "# Notes\nsome content")

	docs := collect(t, Config{Path: path})
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	d := docs[0]
	if d.Name != "notes.md" || d.Source != models.SourceFilesystem {
		t.Errorf("document = %+v", d)
	}
	if d.Text != "# Notes\nsome content" {
		t.Errorf("text = %q", d.Text)
	}
	if d.DocID == "" {
		t.Error("document identity missing")
	}
}

func TestFilesystem_DirectorySkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "markdown")
	writeFile(t, dir, "b.txt", "plain")
	writeFile(t, dir, "image.png", "binary")
	writeFile(t, dir, "code.go", "package main")

	docs := collect(t, Config{Path: dir})
	if len(docs) != 2 {
		t.Fatalf("expected 2 text documents, got %d", len(docs))
	}
}

func TestFilesystem_RecursiveFlag(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.md", "top")
	writeFile(t, dir, "sub/nested.md", "nested")

	flat := collect(t, Config{Path: dir})
	if len(flat) != 1 {
		t.Errorf("non-recursive walk found %d documents, want 1", len(flat))
	}

	deep := collect(t, Config{Path: dir, Recursive: true})
	if len(deep) != 2 {
		t.Errorf("recursive walk found %d documents, want 2", len(deep))
	}
}

func TestFilesystem_MissingPath(t *testing.T) {
	err := Filesystem{}.Iterate(context.Background(), Config{Path: "/nonexistent/nowhere"},
		func(models.Document) error { return nil }, nil)
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestFilesystem_EmitErrorStopsIteration(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "one")
	writeFile(t, dir, "b.md", "two")

	emitted := 0
	err := Filesystem{}.Iterate(context.Background(), Config{Path: dir},
		func(models.Document) error {
			emitted++
			return context.Canceled
		}, nil)
	if err == nil {
		t.Fatal("emit error should propagate")
	}
	if emitted != 1 {
		t.Errorf("iteration continued after emit error: %d emits", emitted)
	}
}

func TestText_Iterate(t *testing.T) {
	var docs []models.Document
	err := Text{}.Iterate(context.Background(), Config{Text: "inline content", Name: "snippet"},
		func(doc models.Document) error {
			docs = append(docs, doc)
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Name != "snippet" || docs[0].Text != "inline content" {
		t.Errorf("document = %+v", docs[0])
	}
}

func TestText_RequiresContent(t *testing.T) {
	err := Text{}.Iterate(context.Background(), Config{},
		func(models.Document) error { return nil }, nil)
	if err == nil {
		t.Error("expected error for empty text")
	}
}
