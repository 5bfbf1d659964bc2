package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-match-service/pkg/solver"
)

var solverInfo = map[solver.Kind]string{
	solver.KindHillClimber: "swap-based local search with random restarts",
	solver.KindILP:         "exact branch and bound over the LP relaxation",
	solver.KindRILP:        "Lagrangian relaxation with optional hill-climber polish",
	solver.KindDummy:       "identity alignment, for baselines",
}

func runSolvers(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, kind := range solver.Kinds() {
		marker := ""
		if string(kind) == cfg.SolverKind() {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%s\n", kind, marker, solverInfo[kind])
	}
	return w.Flush()
}
