package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/eval"
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

const (
	dogBarks = "(b / bark-01 :arg0 (d / dog))"
	catBarks = "(x / bark-01 :arg0 (y / cat))"
)

func newScoring() *ScoringService {
	cfg := config.NewConfig()
	cfg.Set("performance.num_workers", 2)
	return NewScoringService(cfg, zerolog.Nop())
}

func newJobs(t *testing.T) *JobService {
	t.Helper()
	s := NewJobService(newScoring(), JobOptions{MaxWorkers: 2, Timeout: time.Minute}, zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func waitDone(t *testing.T, s *JobService, id string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = s.Get(id)
		return err == nil && job.Status.Done()
	}, 10*time.Second, 10*time.Millisecond)
	return job
}

func TestScorePair(t *testing.T) {
	res, err := newScoring().ScorePair(context.Background(), dogBarks, catBarks, ScoreOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatistic{MatchedX: 3, MatchedY: 3, SizeX: 4, SizeY: 4}, res.Statistic)
	main, ok := res.Report.Get(eval.MainDimension)
	require.True(t, ok)
	assert.Equal(t, 75.0, main.F1.Result)
	assert.Len(t, res.Alignment, 2)
	assert.True(t, res.Optimal)
}

func TestScorePairOptions(t *testing.T) {
	s := newScoring()

	res, err := s.ScorePair(context.Background(), dogBarks, dogBarks, ScoreOptions{Solver: "ilp"})
	require.NoError(t, err)
	assert.Equal(t, res.Statistic.SizeX, res.Statistic.MatchedX)

	_, err = s.ScorePair(context.Background(), dogBarks, dogBarks, ScoreOptions{Solver: "annealing"})
	assert.Error(t, err)

	_, err = s.ScorePair(context.Background(), dogBarks, dogBarks, ScoreOptions{ScoreType: "weighted"})
	assert.Error(t, err)
}

func TestScoreOptionsOverrides(t *testing.T) {
	yes := true
	o := ScoreOptions{Solver: "dummy", GraphType: "amr", Bootstrap: &yes}.overrides()
	assert.Equal(t, "dummy", o["solver.kind"])
	assert.Equal(t, "amr", o["graph.type"])
	assert.Equal(t, true, o["score.bootstrap"])
	assert.Equal(t, false, o["analysis.track_swaps"])
	assert.NotContains(t, o, "score.dimension")
}

func TestJobLifecycle(t *testing.T) {
	s := newJobs(t)

	job, err := s.Submit([]string{dogBarks, dogBarks}, []string{dogBarks, catBarks}, ScoreOptions{ScoreType: eval.MicroMacro})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 2, job.Progress.Total)

	job = waitDone(t, s, job.ID)
	require.Equal(t, JobStatusCompleted, job.Status, job.Error)
	require.NotNil(t, job.Result)
	assert.Equal(t, 100, job.Progress.Percentage)
	assert.Equal(t, 2, job.Result.Optimality.Pairs)

	micro, ok := job.Result.Scores.Micro.Get(eval.MainDimension)
	require.True(t, ok)
	assert.Equal(t, 87.5, micro.F1.Result)
	assert.NotNil(t, job.Result.Scores.Macro)

	assert.Len(t, s.List(), 1)
}

func TestJobFailure(t *testing.T) {
	s := newJobs(t)

	job, err := s.Submit([]string{dogBarks}, []string{"x / y))"}, ScoreOptions{})
	require.NoError(t, err)

	job = waitDone(t, s, job.ID)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "pair 1")
}

func TestSubmitValidation(t *testing.T) {
	s := newJobs(t)

	_, err := s.Submit([]string{dogBarks}, nil, ScoreOptions{})
	var ve models.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = s.Submit([]string{dogBarks}, []string{dogBarks}, ScoreOptions{Dimension: "everything"})
	assert.ErrorContains(t, err, "invalid options")
	assert.Empty(t, s.List())
}

func TestJobNotFound(t *testing.T) {
	s := newJobs(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Cancel("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCancelFinishedJobKeepsStatus(t *testing.T) {
	s := newJobs(t)

	job, err := s.Submit([]string{dogBarks}, []string{dogBarks}, ScoreOptions{})
	require.NoError(t, err)
	waitDone(t, s, job.ID)

	job, err = s.Cancel(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
}

func TestCancelQueuedJob(t *testing.T) {
	s := NewJobService(newScoring(), JobOptions{MaxWorkers: 1}, zerolog.Nop())
	defer s.Close()

	// occupy the only worker slot so the job stays queued
	s.workers <- struct{}{}
	job, err := s.Submit([]string{dogBarks}, []string{dogBarks}, ScoreOptions{})
	require.NoError(t, err)

	job, err = s.Cancel(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, job.Status)
	<-s.workers

	time.Sleep(50 * time.Millisecond)
	job, err = s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, job.Status)
	assert.Nil(t, job.Result)
}

func TestCleanupRemovesExpiredJobs(t *testing.T) {
	s := NewJobService(newScoring(), JobOptions{ResultTTL: time.Minute}, zerolog.Nop())
	defer s.Close()

	job, err := s.Submit([]string{dogBarks}, []string{dogBarks}, ScoreOptions{})
	require.NoError(t, err)
	waitDone(t, s, job.ID)

	assert.Equal(t, 0, s.cleanup(time.Now()))
	assert.Equal(t, 1, s.cleanup(time.Now().Add(2*time.Minute)))
	_, err = s.Get(job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
