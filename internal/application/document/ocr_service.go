// Package document contains the application services for the metered
// document operations: OCR jobs, document analyses and form generation.
// Every submission is gated through the metering service before any
// row is persisted, so a tenant over its quota leaves no trace behind.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	appmetering "github.com/documind/backend/internal/application/metering"
	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllowedDocumentContentTypes defines the whitelist of content types
// accepted for OCR uploads. Executables, scripts and markup with active
// content (SVG can carry script) are rejected.
var AllowedDocumentContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/tiff":      true,
	"image/bmp":       true,
	"image/webp":      true,
	"text/plain":      true,
}

// DocumentStorage defines the interface for document object storage.
// This interface is implemented by the infrastructure layer (S3, stub).
type DocumentStorage interface {
	// Upload writes data directly to storage under the given key
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// GenerateDownloadURL generates a presigned URL for downloading a file
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)

	// DeleteObject deletes an object from storage
	DeleteObject(ctx context.Context, storageKey string) error
}

// UsageRecorder gates metered actions against tenant quotas.
// Implemented by appmetering.MeteringService.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, input appmetering.RecordUsageInput) (*appmetering.RecordUsageResult, error)
}

// JobDispatcher queues accepted jobs for background processing
type JobDispatcher interface {
	// DispatchOCRJob queues an OCR job for execution
	DispatchOCRJob(jobID uuid.UUID) error

	// DispatchAnalysis queues a document analysis for execution
	DispatchAnalysis(analysisID uuid.UUID) error
}

// OCRRequest describes one text extraction to perform
type OCRRequest struct {
	StorageKey   string // Where the source document lives
	ContentType  string // MIME type of the source document
	LanguageHint string // Optional language hint (BCP 47)
}

// OCRResult is the outcome of a successful text extraction
type OCRResult struct {
	Text      string // Extracted plain text
	PageCount int    // Number of pages processed
}

// OCREngine defines the interface for text extraction backends.
// Implementations live in the infrastructure layer.
type OCREngine interface {
	ExtractText(ctx context.Context, req OCRRequest) (*OCRResult, error)
}

// OCRServiceConfig holds configuration for the OCR service
type OCRServiceConfig struct {
	// MaxUploadBytes caps the accepted upload size
	MaxUploadBytes int64
	// DownloadURLExpiry is the validity window for extracted-text download URLs
	DownloadURLExpiry time.Duration
}

// DefaultOCRServiceConfig returns the default configuration
func DefaultOCRServiceConfig() OCRServiceConfig {
	return OCRServiceConfig{
		MaxUploadBytes:    20 * 1024 * 1024,
		DownloadURLExpiry: 1 * time.Hour,
	}
}

// OCRService handles OCR job submission and processing
type OCRService struct {
	jobRepo    document.OCRJobRepository
	usage      UsageRecorder
	storage    DocumentStorage
	engine     OCREngine
	dispatcher JobDispatcher
	logger     *zap.Logger
	config     OCRServiceConfig
}

// NewOCRService creates a new OCRService. dispatcher may be nil: jobs
// then stay pending until a worker picks them up through FindPending.
func NewOCRService(
	jobRepo document.OCRJobRepository,
	usage UsageRecorder,
	storage DocumentStorage,
	engine OCREngine,
	dispatcher JobDispatcher,
	logger *zap.Logger,
) *OCRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OCRService{
		jobRepo:    jobRepo,
		usage:      usage,
		storage:    storage,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
		config:     DefaultOCRServiceConfig(),
	}
}

// SetConfig sets the service configuration
func (s *OCRService) SetConfig(config OCRServiceConfig) {
	s.config = config
}

// SubmitJob accepts an uploaded document for OCR. The upload is stored
// first and the quota unit is consumed before the job row is written,
// so a rejected submission persists nothing. A reused idempotency key
// returns the job created by the original request.
func (s *OCRService) SubmitJob(
	ctx context.Context,
	tenantID uuid.UUID,
	req SubmitOCRJobRequest,
	submittedBy *uuid.UUID,
) (*SubmitOCRJobResponse, error) {
	if len(req.Data) == 0 {
		return nil, shared.NewDomainError("INVALID_FILE", "Uploaded file is empty")
	}
	if int64(len(req.Data)) > s.config.MaxUploadBytes {
		return nil, shared.NewDomainError("FILE_TOO_LARGE",
			fmt.Sprintf("Upload exceeds the maximum size of %d bytes", s.config.MaxUploadBytes))
	}
	if !AllowedDocumentContentTypes[req.ContentType] {
		return nil, shared.NewDomainError("DISALLOWED_CONTENT_TYPE",
			fmt.Sprintf("Content type '%s' is not allowed for OCR", req.ContentType))
	}

	storageKey := s.generateStorageKey(tenantID, req.Filename)

	actor := uuid.Nil
	if submittedBy != nil {
		actor = *submittedBy
	}
	job, err := document.NewOCRJob(tenantID, storageKey, req.Filename, actor)
	if err != nil {
		return nil, err
	}
	if err := job.SetFileInfo(req.ContentType, int64(len(req.Data))); err != nil {
		return nil, err
	}
	job.SetLanguageHint(req.LanguageHint)

	if err := s.storage.Upload(ctx, storageKey, req.Data, req.ContentType); err != nil {
		s.logger.Error("OCR upload failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("storage_key", storageKey),
			zap.Error(err),
		)
		return nil, shared.NewDomainError("UPLOAD_FAILED", "Failed to store uploaded document")
	}

	usageResult, err := s.usage.RecordUsage(ctx, appmetering.RecordUsageInput{
		TenantID:       tenantID,
		Kind:           metering.ResourceKindOCR,
		Count:          1,
		SourceType:     "ocr_job",
		SourceID:       job.ID.String(),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         job.SubmittedBy,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
	})
	if err != nil {
		// The upload is orphaned once the quota gate rejects, clean it up
		if delErr := s.storage.DeleteObject(ctx, storageKey); delErr != nil {
			s.logger.Warn("Failed to clean up rejected upload",
				zap.String("storage_key", storageKey),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	if usageResult.Deduplicated {
		if delErr := s.storage.DeleteObject(ctx, storageKey); delErr != nil {
			s.logger.Warn("Failed to clean up duplicate upload",
				zap.String("storage_key", storageKey),
				zap.Error(delErr),
			)
		}
		return s.replayJob(ctx, tenantID, usageResult)
	}

	if err := s.jobRepo.Save(ctx, job); err != nil {
		// The usage unit is already consumed at this point
		s.logger.Error("Failed to persist OCR job after usage was recorded",
			zap.String("tenant_id", tenantID.String()),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		if delErr := s.storage.DeleteObject(ctx, storageKey); delErr != nil {
			s.logger.Warn("Failed to clean up upload of unpersisted job",
				zap.String("storage_key", storageKey),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	s.dispatch(job.ID)

	s.logger.Info("OCR job submitted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("filename", req.Filename),
		zap.Int64("size_bytes", job.SizeBytes),
		zap.Int64("quota_remaining", usageResult.Snapshot.Remaining),
	)

	return &SubmitOCRJobResponse{
		Job:   toOCRJobResponse(job),
		Quota: toQuotaSnapshotResponse(usageResult.Snapshot),
	}, nil
}

// GetJob returns one OCR job scoped to the tenant
func (s *OCRService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*OCRJobResponse, error) {
	job, err := s.jobRepo.FindByIDForTenant(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	response := toOCRJobResponse(job)
	return &response, nil
}

// ListJobs returns the tenant's OCR jobs with pagination
func (s *OCRService) ListJobs(ctx context.Context, tenantID uuid.UUID, filter OCRJobListFilter) (*ListOCRJobsResponse, error) {
	domainFilter := buildListFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, filter.Search)
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}

	jobs, err := s.jobRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.jobRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]OCRJobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, toOCRJobResponse(&jobs[i]))
	}

	return &ListOCRJobsResponse{
		Items: items,
		Total: total,
		Page:  domainFilter.Page,
		Size:  domainFilter.PageSize,
	}, nil
}

// GetTextDownloadURL returns a presigned URL for the extracted text of
// a completed job
func (s *OCRService) GetTextDownloadURL(ctx context.Context, tenantID, jobID uuid.UUID) (*DownloadURLResponse, error) {
	job, err := s.jobRepo.FindByIDForTenant(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.HasExtractedText() {
		return nil, shared.NewDomainError("TEXT_NOT_READY", "Extracted text is not available for this job")
	}
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, job.ExtractedTextKey, s.config.DownloadURLExpiry)
	if err != nil {
		return nil, shared.NewDomainError("DOWNLOAD_URL_FAILED", "Failed to generate download URL")
	}
	return &DownloadURLResponse{URL: url, ExpiresAt: expiresAt}, nil
}

// ProcessJob runs the OCR engine for one job. It is called by the job
// dispatcher workers and is re-entrant: a job left in processing state
// by a failed attempt is picked up again without a state transition,
// and a terminal job is a no-op.
func (s *OCRService) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return nil
	}

	if job.IsPending() {
		if err := job.Start(); err != nil {
			return err
		}
		if err := s.jobRepo.Save(ctx, job); err != nil {
			return err
		}
	}

	result, err := s.engine.ExtractText(ctx, OCRRequest{
		StorageKey:   job.SourceFileKey,
		ContentType:  job.ContentType,
		LanguageHint: job.LanguageHint,
	})
	if err != nil {
		s.logger.Warn("OCR extraction attempt failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return err
	}

	textKey := extractedTextKey(job)
	if err := s.storage.Upload(ctx, textKey, []byte(result.Text), "text/plain"); err != nil {
		s.logger.Warn("Failed to store extracted text",
			zap.String("job_id", job.ID.String()),
			zap.String("storage_key", textKey),
			zap.Error(err),
		)
		return err
	}

	if err := job.Complete(result.PageCount, textKey); err != nil {
		return err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return err
	}

	s.logger.Info("OCR job completed",
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Int("page_count", result.PageCount),
	)

	return nil
}

// FailJob moves a job to failed state after its retry budget is
// exhausted
func (s *OCRService) FailJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return nil
	}
	if err := job.Fail(reason); err != nil {
		return err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return err
	}

	s.logger.Error("OCR job failed permanently",
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("reason", reason),
	)

	return nil
}

// replayJob resolves the job created by the original request that
// carried this idempotency key
func (s *OCRService) replayJob(ctx context.Context, tenantID uuid.UUID, usageResult *appmetering.RecordUsageResult) (*SubmitOCRJobResponse, error) {
	if usageResult.Event == nil || usageResult.Event.SourceType != "ocr_job" {
		return nil, shared.NewDomainError("DUPLICATE_REQUEST",
			"Request with this idempotency key was already processed")
	}
	originalID, err := uuid.Parse(usageResult.Event.SourceID)
	if err != nil {
		return nil, shared.NewDomainError("DUPLICATE_REQUEST",
			"Request with this idempotency key was already processed")
	}
	original, err := s.jobRepo.FindByIDForTenant(ctx, tenantID, originalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("DUPLICATE_REQUEST",
				"Request with this idempotency key was already processed")
		}
		return nil, err
	}
	return &SubmitOCRJobResponse{
		Job:          toOCRJobResponse(original),
		Quota:        toQuotaSnapshotResponse(usageResult.Snapshot),
		Deduplicated: true,
	}, nil
}

func (s *OCRService) dispatch(jobID uuid.UUID) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchOCRJob(jobID); err != nil {
		// The job stays pending and is picked up by the dispatcher's
		// catch-up scan
		s.logger.Warn("OCR job queued for later pickup",
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
	}
}

// generateStorageKey generates a unique storage key for an upload
func (s *OCRService) generateStorageKey(tenantID uuid.UUID, fileName string) string {
	ext := filepath.Ext(fileName)
	now := time.Now().UTC()
	// Format: tenants/{tenantID}/ocr/{yyyy}/{mm}/{uniqueID}{ext}
	return fmt.Sprintf("tenants/%s/ocr/%04d/%02d/%s%s",
		tenantID.String(),
		now.Year(),
		int(now.Month()),
		uuid.New().String(),
		ext,
	)
}

// extractedTextKey derives the storage key for a job's extraction output
func extractedTextKey(job *document.OCRJob) string {
	return fmt.Sprintf("tenants/%s/ocr-text/%s.txt", job.TenantID.String(), job.ID.String())
}

// buildListFilter normalizes paging input into a domain filter
func buildListFilter(page, pageSize int, orderBy, orderDir, search string) shared.Filter {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if orderBy == "" {
		orderBy = "created_at"
	}
	if orderDir == "" {
		orderDir = "desc"
	}
	return shared.Filter{
		Page:     page,
		PageSize: pageSize,
		OrderBy:  orderBy,
		OrderDir: orderDir,
		Search:   search,
		Filters:  make(map[string]interface{}),
	}
}
