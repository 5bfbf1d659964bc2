package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-match-service/pkg/eval"
	"github.com/gilchrisn/graph-match-service/pkg/parser"
	"github.com/gilchrisn/graph-match-service/pkg/pipeline"
	"github.com/gilchrisn/graph-match-service/pkg/validation"
)

func runScore(cmd *cobra.Command, args []string) error {
	if err := eval.ValidateScoreType(cfg.ScoreType()); err != nil {
		return err
	}

	graphs1, err := readCorpus(args[0])
	if err != nil {
		return err
	}
	graphs2, err := readCorpus(args[1])
	if err != nil {
		return err
	}

	smatch, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer smatch.Close()

	logger.Info().
		Str("solver", cfg.SolverKind()).
		Str("graph_type", cfg.GraphType()).
		Str("dimension", smatch.Dimension).
		Int("pairs", len(graphs1)).
		Int("workers", smatch.Workers).
		Msg("Scoring corpus")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := smatch.ProcessCorpus(ctx, graphs1, graphs2)
	if err != nil {
		return err
	}

	opt := eval.Summarize(res.Status)
	logger.Info().
		Float64("lower_bound_sum", opt.LowerSum).
		Float64("upper_bound_sum", opt.UpperSum).
		Int("non_optimal", opt.NonOptimal).
		Int("pairs", opt.Pairs).
		Int64("runtime_ms", res.TotalRuntimeMS).
		Msg("Alignment optimality")

	scores, err := pipeline.Evaluate(res, cfg.ScoreType(), eval.AggregatorFromConfig(cfg, logger))
	if err != nil {
		return err
	}
	return scores.Print(cfg.OutputFormat(), cmd.OutOrStdout())
}

func readCorpus(filename string) ([]string, error) {
	if err := validation.ValidateFile(filename); err != nil {
		return nil, err
	}
	graphs, err := parser.ReadGraphStrings(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return graphs, nil
}
