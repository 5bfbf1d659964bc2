// Package service runs Smatch scoring for the HTTP API, either synchronously
// for one graph pair or as background jobs over whole corpora.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/eval"
	"github.com/gilchrisn/graph-match-service/pkg/pipeline"
	"github.com/gilchrisn/graph-match-service/pkg/solver"
)

// ScoringService builds a pipeline per request from the base configuration
type ScoringService struct {
	base   *config.Config
	logger zerolog.Logger
}

// NewScoringService creates a scoring service
func NewScoringService(base *config.Config, logger zerolog.Logger) *ScoringService {
	return &ScoringService{base: base, logger: logger}
}

// configure derives the request configuration and validates it
func (s *ScoringService) configure(opts ScoreOptions) (*config.Config, *pipeline.Smatch, error) {
	cfg, err := s.base.With(opts.overrides())
	if err != nil {
		return nil, nil, err
	}
	if err := eval.ValidateScoreType(cfg.ScoreType()); err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(cfg, s.logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, p, nil
}

// Validate reports whether the options describe a runnable pipeline
func (s *ScoringService) Validate(opts ScoreOptions) error {
	_, p, err := s.configure(opts)
	if err != nil {
		return err
	}
	return p.Close()
}

// ScorePair scores a single graph pair
func (s *ScoringService) ScorePair(ctx context.Context, graph1, graph2 string, opts ScoreOptions) (*PairScore, error) {
	cfg, p, err := s.configure(opts)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	res, err := p.ProcessPair(ctx, graph1, graph2)
	if err != nil {
		return nil, err
	}

	table := eval.NewTable()
	for _, dim := range res.Dimensions {
		table.Append(dim, res.Stats[dim])
	}
	agg := eval.AggregatorFromConfig(cfg, s.logger)

	return &PairScore{
		Statistic: res.Main(),
		Stats:     res.Stats,
		Report:    agg.Aggregate(table),
		Alignment: res.Pairs,
		Status:    res.Status,
		Optimal:   res.Status.Upper-res.Status.Lower <= solver.OptimalityGap,
	}, nil
}

// ScoreCorpus scores two aligned corpora; onProgress may be nil
func (s *ScoringService) ScoreCorpus(ctx context.Context, graphs1, graphs2 []string, opts ScoreOptions, onProgress func(done, total int)) (*CorpusScore, error) {
	cfg, p, err := s.configure(opts)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	p.OnProgress = onProgress

	start := time.Now()
	res, err := p.ProcessCorpus(ctx, graphs1, graphs2)
	if err != nil {
		return nil, err
	}
	scores, err := pipeline.Evaluate(res, cfg.ScoreType(), eval.AggregatorFromConfig(cfg, s.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate scores: %w", err)
	}

	return &CorpusScore{
		Scores:           scores,
		Optimality:       eval.Summarize(res.Status),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}
