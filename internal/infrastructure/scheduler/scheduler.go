// Package scheduler provides background execution for document work: a
// bounded worker pool dispatching OCR and analysis jobs to the engine
// ports, and a daily trigger for the monthly usage rollover sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	documentapp "github.com/documind/backend/internal/application/document"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a queued work item
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind represents the kind of document work a job carries
type JobKind string

const (
	JobKindOCR      JobKind = "OCR"
	JobKindAnalysis JobKind = "ANALYSIS"
)

// AllJobKinds returns all job kinds
func AllJobKinds() []JobKind {
	return []JobKind{JobKindOCR, JobKindAnalysis}
}

// Job represents a queued unit of background document work
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	TargetID    uuid.UUID // ID of the OCR job or analysis to execute
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a new job instance
func NewJob(kind JobKind, targetID uuid.UUID, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		TargetID:   targetID,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// JobExecutor is the interface for executing document jobs
type JobExecutor interface {
	// Execute runs the job once
	Execute(ctx context.Context, job *Job) error

	// OnExhausted is called once after a job fails with no retries remaining
	OnExhausted(ctx context.Context, job *Job, cause error)
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Enabled           bool
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultDispatcherConfig returns default dispatcher configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Enabled:           true,
		MaxConcurrentJobs: 3,
		QueueSize:         100,
		JobTimeout:        5 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        30 * time.Second,
	}
}

// Ensure JobDispatcher implements the application dispatch port
var _ documentapp.JobDispatcher = (*JobDispatcher)(nil)

// JobDispatcher manages a bounded worker pool for document jobs
type JobDispatcher struct {
	config   DispatcherConfig
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewJobDispatcher creates a new dispatcher instance
func NewJobDispatcher(config DispatcherConfig, executor JobExecutor, logger *zap.Logger) *JobDispatcher {
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	return &JobDispatcher{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, queueSize),
	}
}

// SetExecutor sets the executor for queued jobs. The executor depends on
// the application services, which in turn hold the dispatcher, so it is
// injected after construction. Must be called before Start.
func (d *JobDispatcher) SetExecutor(executor JobExecutor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executor = executor
}

// Start starts the dispatcher
func (d *JobDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Start worker pool
	for i := 0; i < d.config.MaxConcurrentJobs; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.logger.Info("Job dispatcher started",
		zap.Int("workers", d.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", d.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the dispatcher
func (d *JobDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Job dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Job dispatcher stop timed out")
		return ctx.Err()
	}
}

// DispatchOCRJob queues an OCR job for execution
func (d *JobDispatcher) DispatchOCRJob(jobID uuid.UUID) error {
	return d.Submit(NewJob(JobKindOCR, jobID, d.config.RetryAttempts))
}

// DispatchAnalysis queues a document analysis for execution
func (d *JobDispatcher) DispatchAnalysis(analysisID uuid.UUID) error {
	return d.Submit(NewJob(JobKindAnalysis, analysisID, d.config.RetryAttempts))
}

// Submit submits a job for execution
func (d *JobDispatcher) Submit(job *Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case d.jobs <- job:
		d.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("target_id", job.TargetID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// worker processes jobs from the queue
func (d *JobDispatcher) worker(ctx context.Context, workerID int) {
	defer d.wg.Done()

	d.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-d.jobs:
			if !ok {
				d.logger.Debug("Job channel closed", zap.Int("worker_id", workerID))
				return
			}
			d.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (d *JobDispatcher) processJob(ctx context.Context, job *Job, workerID int) {
	// Check if job is ready to run (for retries)
	if job.NextRetryAt != nil && time.Now().Before(*job.NextRetryAt) {
		// Re-queue the job
		select {
		case d.jobs <- job:
		default:
			d.logger.Warn("Failed to re-queue job for retry",
				zap.String("job_id", job.ID.String()),
			)
		}
		return
	}

	job.Start()
	d.logger.Info("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("target_id", job.TargetID.String()),
	)

	// Create context with timeout
	jobCtx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	// Execute the job
	err := d.executor.Execute(jobCtx, job)
	if err != nil {
		job.Fail(err.Error())
		d.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("target_id", job.TargetID.String()),
			zap.Error(err),
		)

		// Check if should retry
		if job.ShouldRetry() {
			job.ScheduleRetry(d.config.RetryDelay)
			d.logger.Info("Job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
			)
			// Re-submit job
			select {
			case d.jobs <- job:
			default:
				d.logger.Warn("Failed to re-queue job for retry",
					zap.String("job_id", job.ID.String()),
				)
				d.executor.OnExhausted(ctx, job, err)
			}
			return
		}

		// Retry budget spent: let the executor mark the underlying work failed
		d.executor.OnExhausted(ctx, job, err)
		return
	}

	job.Complete()
	d.logger.Info("Job completed successfully",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("target_id", job.TargetID.String()),
	)
}
