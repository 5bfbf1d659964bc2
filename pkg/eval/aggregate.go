package eval

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// Score types
const (
	Pairwise   = "pairwise"
	Micro      = "micro"
	Macro      = "macro"
	MicroMacro = "micromacro"
)

// MainDimension is the full-graph score dimension
const MainDimension = "main"

// Table collects per-pair statistics for every score dimension, keeping the
// order in which dimensions first appear.
type Table struct {
	names []string
	stats map[string][]models.MatchStatistic
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{stats: make(map[string][]models.MatchStatistic)}
}

// Append adds one pair's statistic to a dimension
func (t *Table) Append(dim string, m models.MatchStatistic) {
	if _, ok := t.stats[dim]; !ok {
		t.names = append(t.names, dim)
	}
	t.stats[dim] = append(t.stats[dim], m)
}

// Dimensions lists the dimension names in insertion order
func (t *Table) Dimensions() []string { return append([]string(nil), t.names...) }

// Stats returns the statistics of one dimension
func (t *Table) Stats(dim string) []models.MatchStatistic { return t.stats[dim] }

// Pair returns a table holding only the i-th entry of every dimension
func (t *Table) Pair(i int) *Table {
	out := NewTable()
	for _, dim := range t.names {
		if i < len(t.stats[dim]) {
			out.Append(dim, t.stats[dim][i])
		}
	}
	return out
}

// Only returns a table restricted to the given dimensions
func (t *Table) Only(dims ...string) *Table {
	out := NewTable()
	for _, dim := range dims {
		for _, m := range t.stats[dim] {
			out.Append(dim, m)
		}
	}
	return out
}

// Metric is one reported number on the 0-100 scale with its confidence
// interval. The interval is null unless bootstrapping was requested.
type Metric struct {
	Result float64     `json:"result"`
	CI     [2]*float64 `json:"ci"`
}

// Result is the report of one score dimension
type Result struct {
	F1        Metric `json:"F1"`
	Precision Metric `json:"Precision"`
	Recall    Metric `json:"Recall"`
}

// Dimension pairs a dimension name with its result
type Dimension struct {
	Name   string
	Result Result
}

// Report is an ordered list of dimension results
type Report []Dimension

// Get looks a dimension up by name
func (r Report) Get(name string) (Result, bool) {
	for _, d := range r {
		if d.Name == name {
			return d.Result, true
		}
	}
	return Result{}, false
}

// Aggregator reduces a Table to a Report
type Aggregator struct {
	// Macro averages per-pair scores instead of summing statistics first
	Macro      bool
	Bootstrap  bool
	Samples    int
	Confidence float64
	Seed       int64
	Logger     zerolog.Logger
}

// AggregatorFromConfig reads the score.* keys. The score type is not part
// of it since one run may need both a micro and a macro aggregator.
func AggregatorFromConfig(cfg *config.Config, logger zerolog.Logger) Aggregator {
	return Aggregator{
		Bootstrap:  cfg.Bootstrap(),
		Samples:    cfg.BootstrapSamples(),
		Confidence: cfg.Confidence(),
		Seed:       cfg.RandomSeed(),
		Logger:     logger,
	}
}

// Aggregate computes the report. Outside the main dimension, pairs where
// both subgraphs are empty are dropped unless the table holds a single pair.
func (a Aggregator) Aggregate(t *Table) Report {
	report := make(Report, 0, len(t.names))
	for _, dim := range t.names {
		data := t.stats[dim]
		if dim != MainDimension && len(data) != 1 {
			data = nonEmpty(data)
		}

		res := a.point(data)
		out := Result{
			F1:        Metric{Result: scale(res[0])},
			Precision: Metric{Result: scale(res[1])},
			Recall:    Metric{Result: scale(res[2])},
		}
		if a.Bootstrap {
			low, high := a.interval(dim, data)
			out.F1.CI = [2]*float64{&low[0], &high[0]}
			out.Precision.CI = [2]*float64{&low[1], &high[1]}
			out.Recall.CI = [2]*float64{&low[2], &high[2]}
		}
		report = append(report, Dimension{Name: dim, Result: out})
	}
	return report
}

// point is the aggregate on the fraction scale
func (a Aggregator) point(data []models.MatchStatistic) [3]float64 {
	if !a.Macro || len(data) == 0 {
		var sum models.MatchStatistic
		for _, m := range data {
			sum = sum.Add(m)
		}
		return Score(sum).vector()
	}

	cols := [3][]float64{}
	for _, m := range data {
		v := Score(m).vector()
		for k := range cols {
			cols[k] = append(cols[k], v[k])
		}
	}
	var out [3]float64
	for k := range cols {
		out[k] = stat.Mean(cols[k], nil)
	}
	return out
}

// resampled is the statistic of one bootstrap sample. It uses the plain
// ratios, so degenerate samples yield NaN.
func (a Aggregator) resampled(data []models.MatchStatistic) [3]float64 {
	if a.Macro {
		return a.point(data)
	}
	var sum models.MatchStatistic
	for _, m := range data {
		sum = sum.Add(m)
	}
	p := sum.MatchedX / sum.SizeX
	r := sum.MatchedY / sum.SizeY
	return [3]float64{2 * p * r / (p + r), p, r}
}

// interval is a percentile bootstrap confidence interval on the 0-100 scale.
// When the resampled statistic is undefined it falls back to [0, 100].
func (a Aggregator) interval(dim string, data []models.MatchStatistic) (low, high [3]float64) {
	fallback := func(reason string) ([3]float64, [3]float64) {
		a.Logger.Warn().Str("dimension", dim).Msgf("Cannot bootstrap (%s), setting confidence interval to [0,100]", reason)
		return [3]float64{0, 0, 0}, [3]float64{100, 100, 100}
	}
	if len(data) < 2 {
		return fallback("fewer than two pairs")
	}

	samples := a.Samples
	if samples <= 0 {
		samples = 1000
	}
	confidence := a.Confidence
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}

	rng := rand.New(rand.NewSource(a.Seed))
	dist := [3][]float64{make([]float64, samples), make([]float64, samples), make([]float64, samples)}
	resample := make([]models.MatchStatistic, len(data))
	for b := 0; b < samples; b++ {
		for i := range resample {
			resample[i] = data[rng.Intn(len(data))]
		}
		v := a.resampled(resample)
		for k := range dist {
			if math.IsNaN(v[k]) || math.IsInf(v[k], 0) {
				return fallback("undefined statistic in resample")
			}
			dist[k][b] = v[k]
		}
	}

	alpha := (1 - confidence) / 2
	for k := range dist {
		sort.Float64s(dist[k])
		low[k] = scale(stat.Quantile(alpha, stat.Empirical, dist[k], nil))
		high[k] = scale(stat.Quantile(1-alpha, stat.Empirical, dist[k], nil))
	}
	return low, high
}

func nonEmpty(data []models.MatchStatistic) []models.MatchStatistic {
	out := make([]models.MatchStatistic, 0, len(data))
	for _, m := range data {
		if m.Sum() > 0 {
			out = append(out, m)
		}
	}
	return out
}

// scale maps a fraction to the reported 0-100 scale with two decimals
func scale(x float64) float64 {
	return math.Round(x*100*100) / 100
}

// ValidateScoreType checks that a score type name is known
func ValidateScoreType(scoreType string) error {
	switch scoreType {
	case Pairwise, Micro, Macro, MicroMacro:
		return nil
	default:
		return fmt.Errorf("unknown score type %q (use %s, %s, %s or %s)", scoreType, Pairwise, Micro, Macro, MicroMacro)
	}
}
