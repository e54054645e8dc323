package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mkessel/trident/internal/guard"
	"github.com/mkessel/trident/internal/index"
	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/models"
	"golang.org/x/sync/errgroup"
)

// Search runs the query across every servable modality concurrently and
// fuses the per-modality rankings into one result list.
func (s *Service) Search(ctx context.Context, query string) ([]models.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrValidation)
	}

	st, err := s.guard.EnsureServable(ctx)
	if err != nil {
		if errors.Is(err, guard.ErrEmpty) || errors.Is(err, guard.ErrInconsistent) {
			return nil, fmt.Errorf("%w: %s", ErrNotInitialized, err)
		}
		return nil, err
	}

	start := time.Now()
	lists, err := s.retrieveAll(ctx, query, st)
	if s.stats != nil {
		s.stats.RecordTiming(metrics.OpSearch, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	hits := s.fuser.Fuse(lists)
	slog.Debug("search complete", "query_len", len(query), "modalities", len(lists), "hits", len(hits), "duration_ms", time.Since(start).Milliseconds())
	return hits, nil
}

// retrieveAll fans the query out to the modalities the state reports as
// servable. A missing index is degraded capability (zero results from that
// modality); the search only fails when every modality failed.
func (s *Service) retrieveAll(ctx context.Context, query string, st index.State) (map[models.Modality][]models.Hit, error) {
	var mu sync.Mutex
	lists := make(map[models.Modality][]models.Hit)
	var failures []error
	topK := s.fuser.TopK

	record := func(m models.Modality, hits []models.Hit, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			if len(hits) > 0 {
				lists[m] = hits
			}
		case errors.Is(err, index.ErrIndexNotFound):
			slog.Debug("modality has no index, skipping", "modality", m)
		default:
			slog.Warn("modality retrieval failed", "modality", m, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", m, err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	attempted := 0
	if st.HasVector {
		attempted++
		g.Go(func() error {
			hits, err := s.retrieveVector(gctx, query, topK)
			record(models.ModalityVector, hits, err)
			return nil
		})
	}
	if st.HasFullText {
		attempted++
		g.Go(func() error {
			hits, err := s.retrieveFullText(gctx, query, topK)
			record(models.ModalityFullText, hits, err)
			return nil
		})
	}
	if st.HasGraph {
		attempted++
		g.Go(func() error {
			hits, err := s.retrieveGraph(gctx, query, topK)
			record(models.ModalityGraph, hits, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if attempted > 0 && len(failures) == attempted {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, errors.Join(failures...))
	}
	return lists, nil
}

func (s *Service) retrieveVector(ctx context.Context, query string, topK int) ([]models.Hit, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	v, err := s.manager.Vector(ctx)
	if err != nil {
		return nil, err
	}
	return v.Retrieve(ctx, embedding, topK)
}

func (s *Service) retrieveFullText(ctx context.Context, query string, topK int) ([]models.Hit, error) {
	f, err := s.manager.FullText(ctx)
	if err != nil {
		return nil, err
	}
	return f.Retrieve(ctx, query, topK)
}

func (s *Service) retrieveGraph(ctx context.Context, query string, topK int) ([]models.Hit, error) {
	g, err := s.manager.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.Retrieve(ctx, query, topK)
}

// Ask retrieves context for the query and synthesizes an answer with the
// configured model. The fused hits are returned alongside the answer so
// callers can show sources.
func (s *Service) Ask(ctx context.Context, query string) (string, []models.Hit, error) {
	hits, err := s.Search(ctx, query)
	if err != nil {
		return "", nil, err
	}
	if len(hits) == 0 {
		return "No relevant content found for this question.", nil, nil
	}
	if s.answerer == nil {
		return "", hits, fmt.Errorf("%w: no generation model configured", ErrBackendUnavailable)
	}

	start := time.Now()
	answer, err := s.answerer.SynthesizeAnswer(ctx, query, buildSearchContext(hits))
	if s.stats != nil {
		s.stats.RecordTiming(metrics.OpSynthesis, time.Since(start))
	}
	if err != nil {
		return "", hits, fmt.Errorf("%w: %s", ErrBackendUnavailable, err)
	}
	return answer, hits, nil
}

// buildSearchContext formats fused hits into a context block for the model.
func buildSearchContext(hits []models.Hit) string {
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		header := fmt.Sprintf("## Source %d", i+1)
		if h.Name != "" {
			header += ": " + h.Name
		}
		header += fmt.Sprintf(" (%s)", h.Modality)
		parts = append(parts, header+"\n"+h.Text)
	}
	return strings.Join(parts, "\n\n")
}

// State reports current system state for status surfaces.
func (s *Service) State(ctx context.Context) index.State {
	return s.guard.Inspect(ctx)
}
