// Package fusion merges per-modality result lists into a single ranking
// using reciprocal rank fusion.
package fusion

import (
	"sort"

	"github.com/mkessel/trident/internal/models"
)

// Defaults for the fusion parameters. K is the standard rank-fusion
// constant; the floor drops backend noise before ranks are assigned.
const (
	DefaultK          = 60
	DefaultTopK       = 15
	DefaultScoreFloor = 0.001
)

// modalityPriority fixes the order duplicate groups pick their
// representative: chunk-bearing modalities carry full text, so they win
// over rendered graph facts.
var modalityPriority = []models.Modality{
	models.ModalityVector,
	models.ModalityFullText,
	models.ModalityGraph,
}

// Fuser combines ranked lists from multiple modalities.
type Fuser struct {
	K          int
	TopK       int
	ScoreFloor float64
	Dedup      Deduplicator
}

// NewFuser creates a fuser, filling zero parameters with defaults.
func NewFuser(k, topK int, scoreFloor float64, dedup Deduplicator) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if scoreFloor <= 0 {
		scoreFloor = DefaultScoreFloor
	}
	if dedup == nil {
		dedup = TextOverlap{}
	}
	return &Fuser{K: k, TopK: topK, ScoreFloor: scoreFloor, Dedup: dedup}
}

// Fuse merges the per-modality lists. One contributing modality passes
// through with native scores; two or more are combined with RRF, where each
// duplicate group accumulates the contributions of all its members under
// the representative encountered first in modality-priority order.
func (f *Fuser) Fuse(lists map[models.Modality][]models.Hit) []models.Hit {
	filtered := make(map[models.Modality][]models.Hit, len(lists))
	contributing := 0
	for _, m := range modalityPriority {
		hits := applyFloor(lists[m], f.ScoreFloor)
		if len(hits) > 0 {
			filtered[m] = hits
			contributing++
		}
	}

	switch contributing {
	case 0:
		return nil
	case 1:
		for _, m := range modalityPriority {
			if hits, ok := filtered[m]; ok {
				return f.truncate(f.dedupSingle(hits))
			}
		}
	}

	var fused []models.Hit
	for _, m := range modalityPriority {
		for rank, hit := range filtered[m] {
			contribution := 1.0 / float64(f.K+rank+1)
			if i := f.findDuplicate(fused, hit); i >= 0 {
				fused[i].Score += contribution
				continue
			}
			hit.Score = contribution
			fused = append(fused, hit)
		}
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return f.truncate(fused)
}

// dedupSingle collapses duplicates within one list, keeping native scores.
func (f *Fuser) dedupSingle(hits []models.Hit) []models.Hit {
	var out []models.Hit
	for _, hit := range hits {
		if f.findDuplicate(out, hit) >= 0 {
			continue
		}
		out = append(out, hit)
	}
	return out
}

func (f *Fuser) findDuplicate(existing []models.Hit, hit models.Hit) int {
	for i, e := range existing {
		if f.Dedup.Same(e, hit) {
			return i
		}
	}
	return -1
}

func (f *Fuser) truncate(hits []models.Hit) []models.Hit {
	if len(hits) > f.TopK {
		return hits[:f.TopK]
	}
	return hits
}

func applyFloor(hits []models.Hit, floor float64) []models.Hit {
	var out []models.Hit
	for _, h := range hits {
		if h.Score >= floor {
			out = append(out, h)
		}
	}
	return out
}
