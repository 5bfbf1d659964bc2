// Package api exposes Smatch scoring over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-match-service/pkg/eval"
	"github.com/gilchrisn/graph-match-service/pkg/matcher"
	"github.com/gilchrisn/graph-match-service/pkg/parser"
	"github.com/gilchrisn/graph-match-service/pkg/pipeline"
	"github.com/gilchrisn/graph-match-service/pkg/service"
	"github.com/gilchrisn/graph-match-service/pkg/solver"
	"github.com/gilchrisn/graph-match-service/pkg/standardize"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 20

// ScoreRequest is the body of POST /score
type ScoreRequest struct {
	Graph1  string               `json:"graph1"`
	Graph2  string               `json:"graph2"`
	Options service.ScoreOptions `json:"options"`
}

// JobRequest is the body of POST /jobs
type JobRequest struct {
	Graphs1 []string             `json:"graphs1"`
	Graphs2 []string             `json:"graphs2"`
	Options service.ScoreOptions `json:"options"`
}

// Capabilities lists the accepted option values
type Capabilities struct {
	Solvers      []solver.Kind  `json:"solvers"`
	Matchers     []matcher.Kind `json:"matchers"`
	InputFormats []string       `json:"input_formats"`
	GraphTypes   []string       `json:"graph_types"`
	Edges        []string       `json:"edges"`
	Dimensions   []string       `json:"dimensions"`
	ScoreTypes   []string       `json:"score_types"`
}

// Handlers contains HTTP request handlers
type Handlers struct {
	scoring *service.ScoringService
	jobs    *service.JobService
	started time.Time
	logger  zerolog.Logger
}

// NewHandlers creates new API handlers
func NewHandlers(scoring *service.ScoringService, jobs *service.JobService, logger zerolog.Logger) *Handlers {
	return &Handlers{
		scoring: scoring,
		jobs:    jobs,
		started: time.Now(),
		logger:  logger,
	}
}

// ScorePair scores one graph pair synchronously
func (h *Handlers) ScorePair(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decode(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Graph1 == "" || req.Graph2 == "" {
		writeErrorResponse(w, http.StatusBadRequest, "Both graph1 and graph2 are required", nil)
		return
	}

	res, err := h.scoring.ScorePair(r.Context(), req.Graph1, req.Graph2, req.Options)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Pair scoring failed")
		writeErrorResponse(w, http.StatusBadRequest, "Scoring failed", err)
		return
	}

	kind := req.Options.Solver
	if kind == "" {
		kind = "default"
	}
	pairsScored.WithLabelValues(kind).Inc()
	boundGap.Observe(res.Status.Upper - res.Status.Lower)

	writeSuccessResponse(w, http.StatusOK, "Graph pair scored", res)
}

// SubmitJob queues a corpus scoring job
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := decode(w, r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Graphs1) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "graphs1 and graphs2 must not be empty", nil)
		return
	}

	job, err := h.jobs.Submit(req.Graphs1, req.Graphs2, req.Options)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Failed to submit job", err)
		return
	}
	jobsSubmitted.Inc()

	writeSuccessResponse(w, http.StatusAccepted, "Job submitted", job)
}

// ListJobs lists all known jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, http.StatusOK, "Jobs retrieved", h.jobs.List())
}

// GetJob returns the status and, once finished, the result of a job
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(mux.Vars(r)["jobId"])
	if err != nil {
		h.jobError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Job retrieved", job)
}

// CancelJob cancels a queued or running job
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Cancel(mux.Vars(r)["jobId"])
	if err != nil {
		h.jobError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Job cancelled", job)
}

// ListSolvers reports the accepted option values
func (h *Handlers) ListSolvers(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, http.StatusOK, "Capabilities retrieved", Capabilities{
		Solvers:      solver.Kinds(),
		Matchers:     []matcher.Kind{matcher.KindIdentity, matcher.KindConceptFocus},
		InputFormats: parser.Formats(),
		GraphTypes:   []string{standardize.TypeNone, standardize.TypeGeneric, standardize.TypeAMR},
		Edges:        []string{standardize.EdgesReify, standardize.EdgesDereify},
		Dimensions:   []string{pipeline.DimensionMain, pipeline.DimensionOneAlign, pipeline.DimensionMultiAlign},
		ScoreTypes:   []string{eval.Pairwise, eval.Micro, eval.Macro, eval.MicroMacro},
	})
}

// HealthCheck reports liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, http.StatusOK, "Service is healthy", map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"jobs":   len(h.jobs.List()),
	})
}

func (h *Handlers) jobError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrJobNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}
	writeErrorResponse(w, http.StatusInternalServerError, "Job lookup failed", err)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
