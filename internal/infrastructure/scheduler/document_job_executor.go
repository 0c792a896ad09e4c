package scheduler

import (
	"context"
	"fmt"

	documentapp "github.com/documind/backend/internal/application/document"
	"github.com/documind/backend/internal/domain/document"
	"go.uber.org/zap"
)

// Ensure DocumentJobExecutor implements JobExecutor
var _ JobExecutor = (*DocumentJobExecutor)(nil)

// DocumentJobExecutor executes dispatched jobs against the document
// application services.
type DocumentJobExecutor struct {
	ocrService      *documentapp.OCRService
	analysisService *documentapp.AnalysisService
	logger          *zap.Logger
}

// NewDocumentJobExecutor creates a new DocumentJobExecutor
func NewDocumentJobExecutor(
	ocrService *documentapp.OCRService,
	analysisService *documentapp.AnalysisService,
	logger *zap.Logger,
) *DocumentJobExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentJobExecutor{
		ocrService:      ocrService,
		analysisService: analysisService,
		logger:          logger,
	}
}

// Execute runs the document work the job points at
func (e *DocumentJobExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Kind {
	case JobKindOCR:
		return e.ocrService.ProcessJob(ctx, job.TargetID)
	case JobKindAnalysis:
		return e.analysisService.ProcessAnalysis(ctx, job.TargetID)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidJobKind, job.Kind)
	}
}

// OnExhausted marks the underlying work item failed once the retry budget
// is spent, so jobs do not sit in PROCESSING forever.
func (e *DocumentJobExecutor) OnExhausted(ctx context.Context, job *Job, cause error) {
	reason := "processing failed"
	if cause != nil {
		reason = cause.Error()
	}

	var err error
	switch job.Kind {
	case JobKindOCR:
		err = e.ocrService.FailJob(ctx, job.TargetID, reason)
	case JobKindAnalysis:
		err = e.analysisService.FailAnalysis(ctx, job.TargetID, reason)
	default:
		return
	}

	if err != nil {
		e.logger.Error("Failed to mark exhausted job as failed",
			zap.String("kind", string(job.Kind)),
			zap.String("target_id", job.TargetID.String()),
			zap.Error(err),
		)
	}
}

// RecoverPendingJobs re-dispatches document work that was accepted but never
// executed, e.g. after a crash or a full queue. Call it once after the
// dispatcher starts.
func RecoverPendingJobs(
	ctx context.Context,
	jobRepo document.OCRJobRepository,
	analysisRepo document.DocumentAnalysisRepository,
	dispatcher documentapp.JobDispatcher,
	limit int,
	logger *zap.Logger,
) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 100
	}

	recovered := 0

	jobs, err := jobRepo.FindPending(ctx, limit)
	if err != nil {
		return recovered, fmt.Errorf("failed to scan pending OCR jobs: %w", err)
	}
	for i := range jobs {
		if err := dispatcher.DispatchOCRJob(jobs[i].ID); err != nil {
			logger.Warn("Failed to re-dispatch pending OCR job",
				zap.String("job_id", jobs[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		recovered++
	}

	analyses, err := analysisRepo.FindPending(ctx, limit)
	if err != nil {
		return recovered, fmt.Errorf("failed to scan pending analyses: %w", err)
	}
	for i := range analyses {
		if err := dispatcher.DispatchAnalysis(analyses[i].ID); err != nil {
			logger.Warn("Failed to re-dispatch pending analysis",
				zap.String("analysis_id", analyses[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		logger.Info("Recovered pending document jobs", zap.Int("count", recovered))
	}

	return recovered, nil
}
