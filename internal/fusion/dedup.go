package fusion

import (
	"strings"

	"github.com/mkessel/trident/internal/models"
)

// Deduplicator decides whether two hits carry the same content. Fusion
// folds duplicates into one result instead of letting modalities repeat
// each other.
type Deduplicator interface {
	Same(a, b models.Hit) bool
}

// boilerplatePrefixes are rendering prefixes backends put in front of the
// same underlying text. Stripped before comparison so a graph fact and its
// source chunk can still be told apart from true duplicates.
var boilerplatePrefixes = []string{
	"source:",
	"document:",
	"context:",
	"fact:",
}

// TextOverlap deduplicates by normalized word-set overlap. Two hits are the
// same when the smaller one's words are almost entirely contained in the
// larger one's.
type TextOverlap struct {
	// Threshold is the containment ratio treated as duplicate. Zero means
	// the 0.9 default.
	Threshold float64
}

// Same implements Deduplicator.
func (d TextOverlap) Same(a, b models.Hit) bool {
	threshold := d.Threshold
	if threshold == 0 {
		threshold = 0.9
	}

	wa := wordSet(normalize(a.Text))
	wb := wordSet(normalize(b.Text))
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}

	small, large := wa, wb
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for w := range small {
		if large[w] {
			shared++
		}
	}
	return float64(shared)/float64(len(small)) >= threshold
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	return s
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) >= 2 {
			out[w] = true
		}
	}
	return out
}
