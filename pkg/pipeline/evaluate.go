package pipeline

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gilchrisn/graph-match-service/pkg/eval"
)

// Scores holds the aggregated reports of one corpus run. Only the reports
// that belong to the chosen score type are set.
type Scores struct {
	ScoreType string        `json:"score_type"`
	Pairwise  []eval.Report `json:"pairwise,omitempty"`
	Micro     eval.Report   `json:"micro,omitempty"`
	Macro     eval.Report   `json:"macro,omitempty"`
}

// Evaluate aggregates a corpus result by score type. Pairwise reports are
// computed per pair with the micro aggregator.
func Evaluate(res *CorpusResult, scoreType string, agg eval.Aggregator) (*Scores, error) {
	if err := eval.ValidateScoreType(scoreType); err != nil {
		return nil, err
	}
	micro, macro := agg, agg
	micro.Macro = false
	macro.Macro = true

	out := &Scores{ScoreType: scoreType}
	switch scoreType {
	case eval.Pairwise:
		out.Pairwise = make([]eval.Report, len(res.Pairs))
		for i := range res.Pairs {
			out.Pairwise[i] = micro.Aggregate(res.Table.Pair(i))
		}
	case eval.Micro:
		out.Micro = micro.Aggregate(res.Table)
	case eval.Macro:
		out.Macro = macro.Aggregate(res.Table)
	case eval.MicroMacro:
		out.Micro = micro.Aggregate(res.Table)
		out.Macro = macro.Aggregate(res.Table)
	}
	return out, nil
}

// Print renders the scores. In text mode micromacro prints two sections.
func (s *Scores) Print(format string, w io.Writer) error {
	p := eval.Printer{Format: format, Out: w}
	switch s.ScoreType {
	case eval.Pairwise:
		return p.PrintAll(s.Pairwise)
	case eval.Micro:
		return p.Print(s.Micro)
	case eval.Macro:
		return p.Print(s.Macro)
	}

	if format == eval.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(map[string]eval.Report{
			"micro scores": s.Micro,
			"macro scores": s.Macro,
		})
	}
	for _, section := range []struct {
		title  string
		report eval.Report
	}{{"micro scores", s.Micro}, {"macro scores", s.Macro}} {
		if _, err := fmt.Fprintf(w, "---- %s ----\n", section.title); err != nil {
			return err
		}
		if err := p.Print(section.report); err != nil {
			return err
		}
	}
	return nil
}
