package main

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-match-service/pkg/config"
)

var (
	cfg        = config.NewConfig()
	logger     zerolog.Logger
	configFile string

	rootCmd = &cobra.Command{
		Use:   "smatch",
		Short: "Score graph pairs with optimal variable alignment",
		Long: `smatch compares two corpora of semantic graphs pair by pair. It finds a
variable alignment that maximizes matching triples and reports
F1, precision and recall, optionally with bootstrap confidence intervals.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := cfg.LoadFromFile(configFile); err != nil {
					return fmt.Errorf("failed to load config %s: %w", configFile, err)
				}
			}
			logger = cfg.CreateLogger()
			return nil
		},
	}

	scoreCmd = &cobra.Command{
		Use:   "score <graphs1> <graphs2>",
		Short: "Score two corpus files against each other",
		Args:  cobra.ExactArgs(2),
		RunE:  runScore, // cmd_score.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the scoring HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe, // cmd_serve.go
	}

	solversCmd = &cobra.Command{
		Use:   "solvers",
		Short: "List the available solvers and scoring options",
		Args:  cobra.NoArgs,
		RunE:  runSolvers, // cmd_solvers.go
	}
)

// flag binds a command flag onto a configuration key
type flag struct {
	key  string
	name string
}

func bind(cmd *cobra.Command, flags ...flag) {
	for _, f := range flags {
		if err := cfg.Viper().BindPFlag(f.key, cmd.Flags().Lookup(f.name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", f.name, err))
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	if err := cfg.Viper().BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(err)
	}

	f := scoreCmd.Flags()
	f.String("solver", "hillclimber", "alignment solver (hillclimber, ilp, rilp, dummy)")
	f.String("matcher", "identity", "triple matcher (identity, concept-focus)")
	f.String("input-format", "penman", "graph serialization (penman, tsv)")
	f.String("graph-type", "none", "standardization (none, generic, amr)")
	f.String("edges", "", "edge mode (reify, dereify); empty keeps edges")
	f.Bool("remove-duplicates", false, "drop duplicate triples")
	f.Bool("lossless-compression", false, "collapse variables with unique concepts")
	f.Bool("norm-logical-ops", false, "normalize and/or coordination")
	f.Bool("reify-constants", false, "turn constant attributes into nodes")
	f.String("score-dimension", "main", "main, all-onealign or all-multialign")
	f.String("score-type", "micro", "pairwise, micro, macro or micromacro")
	f.Bool("bootstrap", false, "add bootstrap confidence intervals")
	f.Int("bootstrap-samples", 1000, "bootstrap resamples")
	f.Float64("confidence", 0.95, "confidence level of the intervals")
	f.StringP("output", "o", "text", "output format (text, json)")
	f.Int("workers", runtime.NumCPU(), "parallel graph pairs")
	f.Int("restarts", 4, "hill-climber random restarts")
	f.Int("ilp-max-seconds", 240, "ILP time limit per pair")
	f.Int64("seed", 42, "random seed")
	f.Bool("track-swaps", false, "write hill-climber swaps as JSON lines")
	f.String("swap-file", "swaps.jsonl", "swap tracking output")
	bind(scoreCmd,
		flag{"solver.kind", "solver"},
		flag{"score.matcher", "matcher"},
		flag{"graph.input_format", "input-format"},
		flag{"graph.type", "graph-type"},
		flag{"graph.edges", "edges"},
		flag{"graph.remove_duplicates", "remove-duplicates"},
		flag{"graph.lossless_compression", "lossless-compression"},
		flag{"graph.norm_logical_ops", "norm-logical-ops"},
		flag{"graph.reify_constants", "reify-constants"},
		flag{"score.dimension", "score-dimension"},
		flag{"score.type", "score-type"},
		flag{"score.bootstrap", "bootstrap"},
		flag{"score.bootstrap_samples", "bootstrap-samples"},
		flag{"score.confidence", "confidence"},
		flag{"output.format", "output"},
		flag{"performance.num_workers", "workers"},
		flag{"solver.restarts", "restarts"},
		flag{"solver.ilp_max_seconds", "ilp-max-seconds"},
		flag{"solver.random_seed", "seed"},
		flag{"analysis.track_swaps", "track-swaps"},
		flag{"analysis.output_file", "swap-file"},
	)

	s := serveCmd.Flags()
	s.String("address", ":8080", "listen address")
	s.Int("job-workers", 4, "concurrent corpus jobs")
	s.StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins")
	bind(serveCmd,
		flag{"server.address", "address"},
		flag{"jobs.max_workers", "job-workers"},
		flag{"server.allowed_origins", "allowed-origins"},
	)

	rootCmd.AddCommand(scoreCmd, serveCmd, solversCmd)
}
