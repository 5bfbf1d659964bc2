package service

import (
	"errors"
	"time"

	"github.com/gilchrisn/graph-match-service/pkg/align"
	"github.com/gilchrisn/graph-match-service/pkg/eval"
	"github.com/gilchrisn/graph-match-service/pkg/models"
	"github.com/gilchrisn/graph-match-service/pkg/pipeline"
)

// ErrJobNotFound is returned for unknown or expired job ids
var ErrJobNotFound = errors.New("job not found")

// ScoreOptions overrides the server configuration for one request. Empty
// fields keep the configured value.
type ScoreOptions struct {
	Solver              string `json:"solver,omitempty"`
	Matcher             string `json:"matcher,omitempty"`
	InputFormat         string `json:"input_format,omitempty"`
	GraphType           string `json:"graph_type,omitempty"`
	Edges               string `json:"edges,omitempty"`
	Dimension           string `json:"dimension,omitempty"`
	ScoreType           string `json:"score_type,omitempty"`
	RemoveDuplicates    *bool  `json:"remove_duplicates,omitempty"`
	LosslessCompression *bool  `json:"lossless_compression,omitempty"`
	Bootstrap           *bool  `json:"bootstrap,omitempty"`
}

// overrides maps the options onto configuration keys
func (o ScoreOptions) overrides() map[string]interface{} {
	out := make(map[string]interface{})
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set("solver.kind", o.Solver)
	set("score.matcher", o.Matcher)
	set("graph.input_format", o.InputFormat)
	set("graph.type", o.GraphType)
	set("graph.edges", o.Edges)
	set("score.dimension", o.Dimension)
	set("score.type", o.ScoreType)
	if o.RemoveDuplicates != nil {
		out["graph.remove_duplicates"] = *o.RemoveDuplicates
	}
	if o.LosslessCompression != nil {
		out["graph.lossless_compression"] = *o.LosslessCompression
	}
	if o.Bootstrap != nil {
		out["score.bootstrap"] = *o.Bootstrap
	}
	// request-scoped pipelines never write swap logs
	out["analysis.track_swaps"] = false
	return out
}

// PairScore is the synchronous result for one graph pair
type PairScore struct {
	Statistic models.MatchStatistic            `json:"statistic"`
	Stats     map[string]models.MatchStatistic `json:"stats"`
	Report    eval.Report                      `json:"report"`
	Alignment []align.VarPair                  `json:"alignment"`
	Status    eval.Status                      `json:"status"`
	Optimal   bool                             `json:"optimal"`
}

// CorpusScore is the result of a corpus job
type CorpusScore struct {
	Scores           *pipeline.Scores `json:"scores"`
	Optimality       eval.Optimality  `json:"optimality"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
}

// JobStatus represents the state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Done reports whether the job reached a final state
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobProgress tracks scored pairs
type JobProgress struct {
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// Job is a corpus scoring job
type Job struct {
	ID          string       `json:"id"`
	Options     ScoreOptions `json:"options"`
	Status      JobStatus    `json:"status"`
	Progress    JobProgress  `json:"progress"`
	Result      *CorpusScore `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
