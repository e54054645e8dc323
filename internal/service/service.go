// Package service provides business logic for Trident operations:
// ingestion orchestration and cross-modal retrieval.
package service

import (
	"context"

	"github.com/mkessel/trident/internal/chunker"
	"github.com/mkessel/trident/internal/config"
	"github.com/mkessel/trident/internal/convert"
	"github.com/mkessel/trident/internal/extract"
	"github.com/mkessel/trident/internal/fusion"
	"github.com/mkessel/trident/internal/guard"
	"github.com/mkessel/trident/internal/index"
	"github.com/mkessel/trident/internal/jobs"
	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/source"
)

// Embedder is the embedding capability the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Answerer synthesizes an answer from retrieved context.
type Answerer interface {
	SynthesizeAnswer(ctx context.Context, query, searchContext string) (string, error)
}

// Service wires the ingestion and retrieval pipelines together.
type Service struct {
	cfg        config.Config
	registry   *jobs.Registry
	sources    *source.Registry
	converter  convert.Converter
	chunking   chunker.Config
	embedder   Embedder
	answerer   Answerer
	extractor  extract.Capability
	manager    *index.Manager
	dispatcher *index.Dispatcher
	guard      *guard.Guard
	fuser      *fusion.Fuser
	stats      *metrics.Collector
}

// Options carries the collaborators New assembles into a Service. Registry
// and Dedup default when nil; everything else is required for the features
// that use it.
type Options struct {
	Config    config.Config
	Registry  *jobs.Registry
	Sources   *source.Registry
	Converter convert.Converter
	Embedder  Embedder
	Answerer  Answerer
	Extractor extract.Capability
	Manager   *index.Manager
	Stats     *metrics.Collector
	Dedup     fusion.Deduplicator
}

// New creates the service.
func New(opts Options) *Service {
	registry := opts.Registry
	if registry == nil {
		registry = jobs.NewRegistry()
	}
	converter := opts.Converter
	if converter == nil {
		converter = convert.PlainText{}
	}
	cfg := opts.Config

	chunking := chunker.DefaultConfig()
	if cfg.ChunkSize > 0 {
		chunking.TargetSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap > 0 {
		chunking.Overlap = cfg.ChunkOverlap
	}

	return &Service{
		cfg:        cfg,
		registry:   registry,
		sources:    opts.Sources,
		converter:  convert.WithTimeout(converter, cfg.ConvertTimeout),
		chunking:   chunking,
		embedder:   opts.Embedder,
		answerer:   opts.Answerer,
		extractor:  opts.Extractor,
		manager:    opts.Manager,
		dispatcher: index.NewDispatcher(opts.Manager, opts.Stats),
		guard:      guard.New(opts.Manager),
		fuser:      fusion.NewFuser(cfg.FusionK, cfg.TopK, cfg.ScoreFloor, opts.Dedup),
		stats:      opts.Stats,
	}
}

// Jobs exposes the job registry for status queries and cancellation.
func (s *Service) Jobs() *jobs.Registry {
	return s.registry
}

// Stats exposes the metrics collector.
func (s *Service) Stats() *metrics.Collector {
	return s.stats
}
