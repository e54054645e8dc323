package chunker

import (
	"strings"
	"testing"
)

func TestSplit_EmptyInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, DefaultConfig())
			if len(chunks) != 0 {
				t.Errorf("expected no chunks, got %d", len(chunks))
			}
		})
	}
}

func TestSplit_ShortInputSingleChunk(t *testing.T) {
	text := "A short document. It fits in one chunk."
	chunks := Split(text, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk should be the full text, got %q", chunks[0])
	}
}

func TestSplit_LongInputRespectsTargetSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("This is a sentence that carries some words for the test. ")
	}

	cfg := Config{TargetSize: 200, Overlap: 40, MinSize: 20}
	chunks := Split(b.String(), cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		// Overlap is prefixed after windows are formed, so the ceiling is
		// target plus overlap plus the joining space.
		if len(c) > cfg.TargetSize+cfg.Overlap+1 {
			t.Errorf("chunk %d too large: %d chars", i, len(c))
		}
	}
}

func TestSplit_OverlapCarriesPredecessorTail(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("Alpha beta gamma delta epsilon zeta eta theta. ")
	}

	cfg := Config{TargetSize: 150, Overlap: 30, MinSize: 20}
	chunks := Split(b.String(), cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Each chunk after the first starts with words from its predecessor.
	firstWord := strings.Fields(chunks[1])[0]
	if !strings.Contains(chunks[0], firstWord) {
		t.Errorf("chunk 1 should start with overlap from chunk 0, starts with %q", firstWord)
	}
}

func TestSplit_OversizedSentenceHardSplit(t *testing.T) {
	// One "sentence" with no terminal punctuation, far beyond target size.
	text := strings.Repeat("wordword ", 100)

	cfg := Config{TargetSize: 120, Overlap: 0, MinSize: 10}
	chunks := Split(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("oversized sentence should be split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > cfg.TargetSize {
			t.Errorf("chunk %d exceeds target: %d chars", i, len(c))
		}
		if strings.Contains(c, "  ") {
			t.Errorf("chunk %d has collapsed whitespace artifacts", i)
		}
	}
}

func TestSplit_TinyTailMergedIntoPrevious(t *testing.T) {
	// Sentences sized so the final fragment falls below MinSize.
	text := strings.Repeat("Sentence with exactly enough words here. ", 6) + "Tail."

	cfg := Config{TargetSize: 120, Overlap: 0, MinSize: 50}
	chunks := Split(text, cfg)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	last := chunks[len(chunks)-1]
	if len(last) < cfg.MinSize {
		t.Errorf("tail fragment below MinSize survived: %q", last)
	}
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "Tail.") {
		t.Error("tail content lost")
	}
}

func TestNormalized_FixesInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		in   Config
	}{
		{"zero target", Config{}},
		{"overlap exceeds target", Config{TargetSize: 100, Overlap: 150}},
		{"min above target", Config{TargetSize: 100, MinSize: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalized()
			if got.TargetSize <= 0 {
				t.Error("target size not normalized")
			}
			if got.Overlap < 0 || got.Overlap >= got.TargetSize {
				t.Error("overlap not normalized")
			}
			if got.MinSize <= 0 || got.MinSize > got.TargetSize {
				t.Error("min size not normalized")
			}
		})
	}
}
