package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/validation"
)

// JobOptions configures the job service
type JobOptions struct {
	MaxWorkers      int
	Timeout         time.Duration
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// JobOptionsFromConfig reads the jobs.* keys
func JobOptionsFromConfig(cfg *config.Config) JobOptions {
	return JobOptions{
		MaxWorkers:      cfg.JobWorkers(),
		Timeout:         cfg.JobTimeout(),
		ResultTTL:       cfg.JobResultTTL(),
		CleanupInterval: cfg.JobCleanupInterval(),
	}
}

// JobService handles background corpus scoring
type JobService struct {
	jobs            map[string]*Job
	cancels         map[string]context.CancelFunc
	workers         chan struct{}
	scoring         *ScoringService
	mutex           sync.RWMutex
	timeout         time.Duration
	jobTTL          time.Duration
	cleanupInterval time.Duration

	done      chan struct{}
	closeOnce sync.Once
	running   sync.WaitGroup
	logger    zerolog.Logger
}

// NewJobService creates a job service and starts its cleanup loop
func NewJobService(scoring *ScoringService, opts JobOptions, logger zerolog.Logger) *JobService {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 4
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}

	s := &JobService{
		jobs:            make(map[string]*Job),
		cancels:         make(map[string]context.CancelFunc),
		workers:         make(chan struct{}, opts.MaxWorkers),
		scoring:         scoring,
		timeout:         opts.Timeout,
		jobTTL:          opts.ResultTTL,
		cleanupInterval: opts.CleanupInterval,
		done:            make(chan struct{}),
		logger:          logger,
	}

	go s.cleanupLoop()

	return s
}

// Submit validates the request and queues a new corpus job
func (s *JobService) Submit(graphs1, graphs2 []string, opts ScoreOptions) (Job, error) {
	if err := validation.ValidateCorpora(len(graphs1), len(graphs2)); err != nil {
		return Job{}, err
	}
	if err := s.scoring.Validate(opts); err != nil {
		return Job{}, fmt.Errorf("invalid options: %w", err)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	now := time.Now()
	job := &Job{
		ID:      uuid.New().String(),
		Options: opts,
		Status:  JobStatusQueued,
		Progress: JobProgress{
			Total:   len(graphs1),
			Message: "Queued",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mutex.Lock()
	s.jobs[job.ID] = job
	s.cancels[job.ID] = cancel
	snapshot := *job
	s.mutex.Unlock()

	s.logger.Info().
		Str("job_id", job.ID).
		Int("pairs", len(graphs1)).
		Msg("Job submitted")

	s.running.Add(1)
	go s.processJob(ctx, job.ID, graphs1, graphs2)

	return snapshot, nil
}

// Get returns a snapshot of a job
func (s *JobService) Get(jobID string) (Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return *job, nil
}

// List returns snapshots of all jobs, oldest first
func (s *JobService) List() []Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs
}

// Cancel stops a queued or running job. Finished jobs are left as they are.
func (s *JobService) Cancel(jobID string) (Job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if !job.Status.Done() {
		job.Status = JobStatusCancelled
		job.Progress.Message = "Cancelled"
		now := time.Now()
		job.CompletedAt = &now
		job.UpdatedAt = now
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
		}

		s.logger.Info().
			Str("job_id", jobID).
			Msg("Job cancelled")
	}

	return *job, nil
}

// Close cancels all unfinished jobs and waits for their workers to return
func (s *JobService) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mutex.Lock()
		for _, cancel := range s.cancels {
			cancel()
		}
		s.mutex.Unlock()
		s.running.Wait()
	})
}

// processJob runs one job once a worker slot is free
func (s *JobService) processJob(ctx context.Context, jobID string, graphs1, graphs2 []string) {
	defer s.running.Done()
	defer s.release(jobID)

	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.failJob(jobID, ctx.Err())
		return
	}

	s.mutex.Lock()
	job, exists := s.jobs[jobID]
	if !exists || job.Status.Done() {
		s.mutex.Unlock()
		return
	}
	now := time.Now()
	job.Status = JobStatusRunning
	job.Progress.Message = "Scoring"
	job.StartedAt = &now
	job.UpdatedAt = now
	opts := job.Options
	s.mutex.Unlock()

	s.logger.Info().
		Str("job_id", jobID).
		Int("pairs", len(graphs1)).
		Msg("Job processing started")

	result, err := s.scoring.ScoreCorpus(ctx, graphs1, graphs2, opts, func(done, total int) {
		s.updateProgress(jobID, done, total)
	})
	if err != nil {
		s.failJob(jobID, err)
		return
	}
	s.completeJob(jobID, result)
}

// release drops the cancel func of a finished job
func (s *JobService) release(jobID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		delete(s.cancels, jobID)
	}
}

// updateProgress records scored pairs
func (s *JobService) updateProgress(jobID string, done, total int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Done() {
		return
	}
	job.Progress.Processed = done
	job.Progress.Total = total
	if total > 0 {
		job.Progress.Percentage = done * 100 / total
	}
	job.Progress.Message = fmt.Sprintf("Scored %d of %d pairs", done, total)
	job.UpdatedAt = time.Now()
}

// completeJob marks a job as completed with results
func (s *JobService) completeJob(jobID string, result *CorpusScore) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Done() {
		return
	}

	job.Status = JobStatusCompleted
	job.Progress.Percentage = 100
	job.Progress.Processed = job.Progress.Total
	job.Progress.Message = "Complete"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.Result = result

	s.logger.Info().
		Str("job_id", jobID).
		Int64("processing_time_ms", result.ProcessingTimeMS).
		Int("non_optimal", result.Optimality.NonOptimal).
		Msg("Job completed successfully")
}

// failJob marks a job as failed unless it was cancelled already
func (s *JobService) failJob(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Done() {
		return
	}

	job.Status = JobStatusFailed
	job.Error = err.Error()
	job.Progress.Message = "Failed"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	s.logger.Error().
		Str("job_id", jobID).
		Err(err).
		Msg("Job failed")
}

// cleanupLoop periodically cleans up old jobs
func (s *JobService) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.done:
			return
		}
	}
}

// cleanup removes finished jobs last updated before now - TTL
func (s *JobService) cleanup(now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := now.Add(-s.jobTTL)
	cleaned := 0

	for jobID, job := range s.jobs {
		if job.Status.Done() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
	return cleaned
}
