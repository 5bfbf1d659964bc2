// Package pipeline wires reading, standardization, alignment and scoring
// into the Smatch evaluation of single graph pairs and whole corpora.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/graph-match-service/pkg/align"
	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/eval"
	"github.com/gilchrisn/graph-match-service/pkg/matcher"
	"github.com/gilchrisn/graph-match-service/pkg/models"
	"github.com/gilchrisn/graph-match-service/pkg/parser"
	"github.com/gilchrisn/graph-match-service/pkg/prepare"
	"github.com/gilchrisn/graph-match-service/pkg/score"
	"github.com/gilchrisn/graph-match-service/pkg/solver"
	"github.com/gilchrisn/graph-match-service/pkg/standardize"
	"github.com/gilchrisn/graph-match-service/pkg/subgraph"
	"github.com/gilchrisn/graph-match-service/pkg/validation"
)

// Score dimensions
const (
	DimensionMain       = "main"
	DimensionOneAlign   = "all-onealign"
	DimensionMultiAlign = "all-multialign"
)

// Smatch scores graph pairs. All stages are safe for concurrent use.
type Smatch struct {
	Reader       parser.Reader
	Standardizer standardize.Standardizer
	Preparer     *prepare.Preparer
	Aligner      *align.Aligner
	Scorer       *score.Scorer
	// Extractor is required for the all-* dimensions
	Extractor *subgraph.Extractor
	Dimension string

	Workers       int
	ProgressEvery int
	// OnProgress, if set, is called after every finished corpus pair
	OnProgress func(done, total int)

	tracker *solver.SwapTracker
	logger  zerolog.Logger
}

// PairResult is the outcome of scoring one graph pair
type PairResult struct {
	Dimensions []string                          `json:"dimensions"`
	Stats      map[string]models.MatchStatistic `json:"stats"`
	Alignment  align.Alignment                   `json:"alignment"`
	Pairs      []align.VarPair                   `json:"pairs"`
	Status     eval.Status                       `json:"status"`
}

// Main returns the full-graph statistic
func (r *PairResult) Main() models.MatchStatistic {
	return r.Stats[eval.MainDimension]
}

// CorpusResult collects the pair results of a corpus in input order
type CorpusResult struct {
	Table          *eval.Table
	Status         []eval.Status
	Pairs          []*PairResult
	TotalRuntimeMS int64
}

// New builds the pipeline described by cfg
func New(cfg *config.Config, logger zerolog.Logger) (*Smatch, error) {
	reader, err := parser.NewReader(cfg.InputFormat())
	if err != nil {
		return nil, err
	}
	std, err := standardize.New(standardize.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, err
	}
	m, err := matcher.New(matcher.Kind(cfg.TripleMatcher()))
	if err != nil {
		return nil, err
	}

	opts := solver.OptionsFromConfig(cfg)
	var tracker *solver.SwapTracker
	if cfg.TrackSwaps() {
		if tracker, err = solver.OpenSwapTracker(cfg.SwapTrackingFile()); err != nil {
			return nil, fmt.Errorf("failed to open swap tracking file: %w", err)
		}
		opts.Tracker = tracker
	}
	s, err := solver.New(solver.Kind(cfg.SolverKind()), opts, logger)
	if err != nil {
		tracker.Close()
		return nil, err
	}

	p := &Smatch{
		Reader:        reader,
		Standardizer:  std,
		Preparer:      prepare.NewPreparer(prepare.OptionsFromConfig(cfg), logger),
		Aligner:       align.NewAligner(m, s, cfg.NumWorkers(), logger),
		Scorer:        score.NewScorer(m),
		Dimension:     cfg.ScoreDimension(),
		Workers:       cfg.NumWorkers(),
		ProgressEvery: cfg.ProgressEvery(),
		tracker:       tracker,
		logger:        logger,
	}
	if err := p.setDimension(p.Dimension); err != nil {
		tracker.Close()
		return nil, err
	}
	return p, nil
}

func (s *Smatch) setDimension(dim string) error {
	switch dim {
	case DimensionMain, "":
		s.Dimension = DimensionMain
	case DimensionOneAlign, DimensionMultiAlign:
		if s.Extractor == nil {
			e, err := subgraph.NewExtractor()
			if err != nil {
				return err
			}
			s.Extractor = e
		}
	default:
		return fmt.Errorf("unknown score dimension %q (use %s, %s or %s)", dim, DimensionMain, DimensionOneAlign, DimensionMultiAlign)
	}
	return nil
}

// Close releases the swap tracking file, if any
func (s *Smatch) Close() error {
	return s.tracker.Close()
}

// ProcessPair parses and scores one pair of serialized graphs
func (s *Smatch) ProcessPair(ctx context.Context, str1, str2 string) (*PairResult, error) {
	g1, err := s.Reader.Read(str1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse first graph: %w", err)
	}
	g2, err := s.Reader.Read(str2)
	if err != nil {
		return nil, fmt.Errorf("failed to parse second graph: %w", err)
	}
	return s.ProcessGraphs(ctx, g1, g2)
}

// ProcessGraphs scores one pair of parsed graphs
func (s *Smatch) ProcessGraphs(ctx context.Context, g1, g2 models.Graph) (*PairResult, error) {
	g1 = s.Standardizer.Standardize(g1)
	g2 = s.Standardizer.Standardize(g2)
	s.logger.Trace().Stringer("g1", triples(g1)).Stringer("g2", triples(g2)).Msg("Graph pair standardized")

	pair := s.Preparer.Prepare(g1, g2)
	res := &PairResult{Stats: make(map[string]models.MatchStatistic)}

	switch s.Dimension {
	case DimensionOneAlign:
		a, err := s.Aligner.Align(ctx, pair.G1, pair.G2, pair.Vars1, pair.Vars2)
		if err != nil {
			return nil, err
		}
		res.Alignment = a
		subs1, subs2 := s.Extractor.Extract(pair.G1), s.Extractor.Extract(pair.G2)
		for n := range subs1 {
			res.add(subs1[n].Name, s.Scorer.Score(subs1[n].Graph, subs2[n].Graph, a))
		}

	case DimensionMultiAlign:
		subs1, subs2 := s.Extractor.Extract(g1), s.Extractor.Extract(g2)
		for n := range subs1 {
			sub := s.Preparer.Prepare(subs1[n].Graph, subs2[n].Graph)
			a, err := s.Aligner.Align(ctx, sub.G1, sub.G2, sub.Vars1, sub.Vars2)
			if err != nil {
				return nil, fmt.Errorf("aligning %s subgraphs: %w", subs1[n].Name, err)
			}
			if subs1[n].Name == subgraph.Main {
				res.Alignment = a
			}
			res.add(subs1[n].Name, s.Scorer.Score(sub.G1, sub.G2, a))
		}

	default:
		a, err := s.Aligner.Align(ctx, pair.G1, pair.G2, pair.Vars1, pair.Vars2)
		if err != nil {
			return nil, err
		}
		res.Alignment = a
		res.add(eval.MainDimension, s.Scorer.Score(pair.G1, pair.G2, a))
	}

	res.Pairs = res.Alignment.Pairs()
	// weighted matchers can score past the triple count cap
	upper := minFloat(float64(len(pair.G1)), float64(len(pair.G2)), res.Alignment.UpperBound)
	res.Status = eval.Status{
		Lower: res.Alignment.Objective,
		Upper: math.Max(upper, res.Alignment.Objective),
	}
	return res, nil
}

func (r *PairResult) add(dim string, m models.MatchStatistic) {
	r.Dimensions = append(r.Dimensions, dim)
	r.Stats[dim] = m
}

// ProcessCorpus scores aligned lists of serialized graphs on a bounded
// worker pool. Results keep the input order.
func (s *Smatch) ProcessCorpus(ctx context.Context, graphs1, graphs2 []string) (*CorpusResult, error) {
	if err := validation.ValidateCorpora(len(graphs1), len(graphs2)); err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]*PairResult, len(graphs1))
	progress := newProgress(len(graphs1), s.ProgressEvery, s.logger)
	progress.notify = s.OnProgress

	g, gctx := errgroup.WithContext(ctx)
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := range graphs1 {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.ProcessPair(gctx, graphs1[i], graphs2[i])
			if err != nil {
				return fmt.Errorf("pair %d: %w", i+1, err)
			}
			results[i] = res
			progress.done()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &CorpusResult{
		Table:  eval.NewTable(),
		Status: make([]eval.Status, len(results)),
		Pairs:  results,
	}
	for i, res := range results {
		for _, dim := range res.Dimensions {
			out.Table.Append(dim, res.Stats[dim])
		}
		out.Status[i] = res.Status
	}
	out.TotalRuntimeMS = time.Since(start).Milliseconds()

	s.logger.Info().
		Int("pairs", len(results)).
		Int64("runtime_ms", out.TotalRuntimeMS).
		Msg("Corpus processed")
	return out, nil
}

// progress logs every n finished pairs together with the time they took
type progress struct {
	mu     sync.Mutex
	total  int
	every  int
	count  int
	last   time.Time
	notify func(done, total int)
	logger zerolog.Logger
}

func newProgress(total, every int, logger zerolog.Logger) *progress {
	if every <= 0 {
		every = 100
	}
	return &progress{total: total, every: every, last: time.Now(), logger: logger}
}

func (p *progress) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if p.notify != nil {
		p.notify(p.count, p.total)
	}
	if p.count%p.every != 0 {
		return
	}
	now := time.Now()
	p.logger.Info().
		Int("processed", p.count).
		Int("total", p.total).
		Dur("last_batch", now.Sub(p.last)).
		Msg("Graph pairs processed")
	p.last = now
}

type triples models.Graph

func (t triples) String() string {
	return fmt.Sprint([]models.Triple(t))
}

func minFloat(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
