// Package chunker splits document text into overlapping windows for
// embedding and indexing.
package chunker

import (
	"strings"
	"unicode"
)

// Config defines chunking parameters. Window sizes are character-based with
// a preference for sentence boundaries; exact split points are a tunable,
// not a contract.
type Config struct {
	// TargetSize is the ideal chunk size in characters.
	TargetSize int
	// Overlap is the character overlap between adjacent chunks.
	Overlap int
	// MinSize drops trailing fragments smaller than this (the fragment is
	// merged into the previous chunk instead).
	MinSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetSize: 1000,
		Overlap:    200,
		MinSize:    100,
	}
}

func (c Config) normalized() Config {
	if c.TargetSize <= 0 {
		c.TargetSize = 1000
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetSize {
		c.Overlap = c.TargetSize / 5
	}
	if c.MinSize <= 0 || c.MinSize > c.TargetSize {
		c.MinSize = c.TargetSize / 10
	}
	return c
}

// Split turns text into overlapping chunks. Whitespace-only input yields no
// chunks; input at or below the target size is returned as a single chunk.
func Split(text string, cfg Config) []string {
	cfg = cfg.normalized()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= cfg.TargetSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		// A single oversized sentence is split hard at the target size.
		for len(sentence) > cfg.TargetSize {
			if current.Len() > 0 {
				flush()
			}
			cut := wordBoundary(sentence, cfg.TargetSize)
			chunks = append(chunks, strings.TrimSpace(sentence[:cut]))
			sentence = strings.TrimSpace(sentence[cut:])
		}
		if sentence == "" {
			continue
		}

		if current.Len()+len(sentence)+1 > cfg.TargetSize && current.Len() > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}

	// Merge a tiny tail into the previous chunk rather than emitting a
	// fragment below MinSize.
	tail := strings.TrimSpace(current.String())
	if tail != "" {
		if len(tail) < cfg.MinSize && len(chunks) > 0 {
			chunks[len(chunks)-1] += " " + tail
		} else {
			chunks = append(chunks, tail)
		}
	}

	return applyOverlap(chunks, cfg.Overlap)
}

// splitSentences splits text into sentences on terminal punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				sentences = append(sentences, current.String())
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}

// wordBoundary finds a cut point at or before limit that does not split a
// word, falling back to the hard limit.
func wordBoundary(s string, limit int) int {
	if limit >= len(s) {
		return len(s)
	}
	if idx := strings.LastIndexByte(s[:limit], ' '); idx > limit/2 {
		return idx
	}
	return limit
}

// applyOverlap prefixes each chunk with the tail of its predecessor.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) <= 1 {
		return chunks
	}

	result := make([]string, len(chunks))
	copy(result, chunks)

	for i := 1; i < len(result); i++ {
		prev := chunks[i-1]
		if len(prev) <= overlap {
			continue
		}
		overlapText := prev[len(prev)-overlap:]
		// Start the overlap at a word boundary.
		if spaceIdx := strings.IndexByte(overlapText, ' '); spaceIdx >= 0 {
			overlapText = overlapText[spaceIdx+1:]
		}
		if overlapText != "" {
			result[i] = overlapText + " " + result[i]
		}
	}

	return result
}
