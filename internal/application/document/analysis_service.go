package document

import (
	"context"
	"errors"

	appmetering "github.com/documind/backend/internal/application/metering"
	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalysisRequest describes one analysis to perform
type AnalysisRequest struct {
	StorageKey string                // Where the analyzed document lives
	Kind       document.AnalysisKind // What kind of analysis to run
}

// AnalysisResult is the outcome of a successful analysis
type AnalysisResult struct {
	Payload    map[string]any // Engine output
	Confidence float64        // Engine confidence score, 0 to 1
}

// AnalysisEngine defines the interface for document analysis backends.
// Implementations live in the infrastructure layer.
type AnalysisEngine interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// AnalysisService handles document analysis requests and processing
type AnalysisService struct {
	analysisRepo document.DocumentAnalysisRepository
	jobRepo      document.OCRJobRepository
	usage        UsageRecorder
	storage      DocumentStorage
	engine       AnalysisEngine
	dispatcher   JobDispatcher
	logger       *zap.Logger
}

// NewAnalysisService creates a new AnalysisService. dispatcher may be
// nil: analyses then stay pending until a worker picks them up.
func NewAnalysisService(
	analysisRepo document.DocumentAnalysisRepository,
	jobRepo document.OCRJobRepository,
	usage UsageRecorder,
	storage DocumentStorage,
	engine AnalysisEngine,
	dispatcher JobDispatcher,
	logger *zap.Logger,
) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		analysisRepo: analysisRepo,
		jobRepo:      jobRepo,
		usage:        usage,
		storage:      storage,
		engine:       engine,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// CreateAnalysis accepts an analysis request. The quota unit is
// consumed before the analysis row is written, so a rejected request
// persists nothing. A reused idempotency key returns the analysis
// created by the original request.
func (s *AnalysisService) CreateAnalysis(
	ctx context.Context,
	tenantID uuid.UUID,
	req CreateAnalysisRequest,
	requestedBy *uuid.UUID,
) (*CreateAnalysisResponse, error) {
	kind := document.AnalysisKind(req.Kind)
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ANALYSIS_KIND",
			"Analysis kind must be one of CLASSIFICATION, EXTRACTION, SUMMARY")
	}

	sourceFileKey, sourceJob, err := s.resolveSource(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	actor := uuid.Nil
	if requestedBy != nil {
		actor = *requestedBy
	}
	analysis, err := document.NewDocumentAnalysis(tenantID, sourceFileKey, kind, actor)
	if err != nil {
		return nil, err
	}
	if sourceJob != nil {
		if err := analysis.SetSourceJob(sourceJob.ID); err != nil {
			return nil, err
		}
	}

	usageResult, err := s.usage.RecordUsage(ctx, appmetering.RecordUsageInput{
		TenantID:       tenantID,
		Kind:           metering.ResourceKindAnalysis,
		Count:          1,
		SourceType:     "document_analysis",
		SourceID:       analysis.ID.String(),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         analysis.RequestedBy,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if usageResult.Deduplicated {
		return s.replayAnalysis(ctx, tenantID, usageResult)
	}

	if err := s.analysisRepo.Save(ctx, analysis); err != nil {
		s.logger.Error("Failed to persist analysis after usage was recorded",
			zap.String("tenant_id", tenantID.String()),
			zap.String("analysis_id", analysis.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.dispatch(analysis.ID)

	s.logger.Info("Document analysis requested",
		zap.String("tenant_id", tenantID.String()),
		zap.String("analysis_id", analysis.ID.String()),
		zap.String("kind", kind.String()),
		zap.Int64("quota_remaining", usageResult.Snapshot.Remaining),
	)

	return &CreateAnalysisResponse{
		Analysis: toAnalysisResponse(analysis),
		Quota:    toQuotaSnapshotResponse(usageResult.Snapshot),
	}, nil
}

// GetAnalysis returns one analysis scoped to the tenant
func (s *AnalysisService) GetAnalysis(ctx context.Context, tenantID, analysisID uuid.UUID) (*AnalysisResponse, error) {
	analysis, err := s.analysisRepo.FindByIDForTenant(ctx, tenantID, analysisID)
	if err != nil {
		return nil, err
	}
	response := toAnalysisResponse(analysis)
	return &response, nil
}

// ListAnalyses returns the tenant's analyses with pagination
func (s *AnalysisService) ListAnalyses(ctx context.Context, tenantID uuid.UUID, filter AnalysisListFilter) (*ListAnalysesResponse, error) {
	domainFilter := buildListFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, "")
	if filter.Kind != "" {
		domainFilter.Filters["kind"] = filter.Kind
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if filter.SourceJobID != "" {
		domainFilter.Filters["source_job_id"] = filter.SourceJobID
	}

	analyses, err := s.analysisRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.analysisRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]AnalysisResponse, 0, len(analyses))
	for i := range analyses {
		items = append(items, toAnalysisResponse(&analyses[i]))
	}

	return &ListAnalysesResponse{
		Items: items,
		Total: total,
		Page:  domainFilter.Page,
		Size:  domainFilter.PageSize,
	}, nil
}

// ProcessAnalysis runs the analysis engine for one request. Called by
// the job dispatcher workers, re-entrant like OCRService.ProcessJob.
func (s *AnalysisService) ProcessAnalysis(ctx context.Context, analysisID uuid.UUID) error {
	analysis, err := s.analysisRepo.FindByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if analysis.IsTerminal() {
		return nil
	}

	if analysis.IsPending() {
		if err := analysis.Start(); err != nil {
			return err
		}
		if err := s.analysisRepo.Save(ctx, analysis); err != nil {
			return err
		}
	}

	result, err := s.engine.Analyze(ctx, AnalysisRequest{
		StorageKey: analysis.SourceFileKey,
		Kind:       analysis.Kind,
	})
	if err != nil {
		s.logger.Warn("Analysis attempt failed",
			zap.String("analysis_id", analysis.ID.String()),
			zap.Error(err),
		)
		return err
	}

	if err := analysis.Complete(result.Payload, result.Confidence); err != nil {
		return err
	}
	if err := s.analysisRepo.Save(ctx, analysis); err != nil {
		return err
	}

	s.logger.Info("Document analysis completed",
		zap.String("tenant_id", analysis.TenantID.String()),
		zap.String("analysis_id", analysis.ID.String()),
		zap.String("kind", analysis.Kind.String()),
		zap.Float64("confidence", result.Confidence),
	)

	return nil
}

// FailAnalysis moves an analysis to failed state after its retry
// budget is exhausted
func (s *AnalysisService) FailAnalysis(ctx context.Context, analysisID uuid.UUID, reason string) error {
	analysis, err := s.analysisRepo.FindByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if analysis.IsTerminal() {
		return nil
	}
	if err := analysis.Fail(reason); err != nil {
		return err
	}
	if err := s.analysisRepo.Save(ctx, analysis); err != nil {
		return err
	}

	s.logger.Error("Document analysis failed permanently",
		zap.String("tenant_id", analysis.TenantID.String()),
		zap.String("analysis_id", analysis.ID.String()),
		zap.String("reason", reason),
	)

	return nil
}

// resolveSource determines the storage key the analysis will read.
// Returns the source OCR job when the request referenced one.
func (s *AnalysisService) resolveSource(ctx context.Context, tenantID uuid.UUID, req CreateAnalysisRequest) (string, *document.OCRJob, error) {
	hasJob := req.SourceJobID != nil && *req.SourceJobID != uuid.Nil
	hasKey := req.SourceFileKey != ""

	if hasJob == hasKey {
		return "", nil, shared.NewDomainError("INVALID_SOURCE",
			"Exactly one of source_job_id and source_file_key must be provided")
	}

	if hasJob {
		job, err := s.jobRepo.FindByIDForTenant(ctx, tenantID, *req.SourceJobID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return "", nil, shared.NewDomainError("SOURCE_JOB_NOT_FOUND", "Source OCR job not found")
			}
			return "", nil, err
		}
		if !job.HasExtractedText() {
			return "", nil, shared.NewDomainError("SOURCE_NOT_READY",
				"Source OCR job has no extracted text yet")
		}
		return job.ExtractedTextKey, job, nil
	}

	exists, err := s.storage.ObjectExists(ctx, req.SourceFileKey)
	if err != nil {
		return "", nil, err
	}
	if !exists {
		return "", nil, shared.NewDomainError("SOURCE_NOT_FOUND", "Source document does not exist in storage")
	}
	return req.SourceFileKey, nil, nil
}

// replayAnalysis resolves the analysis created by the original request
// that carried this idempotency key
func (s *AnalysisService) replayAnalysis(ctx context.Context, tenantID uuid.UUID, usageResult *appmetering.RecordUsageResult) (*CreateAnalysisResponse, error) {
	if usageResult.Event == nil || usageResult.Event.SourceType != "document_analysis" {
		return nil, shared.NewDomainError("DUPLICATE_REQUEST",
			"Request with this idempotency key was already processed")
	}
	originalID, err := uuid.Parse(usageResult.Event.SourceID)
	if err != nil {
		return nil, shared.NewDomainError("DUPLICATE_REQUEST",
			"Request with this idempotency key was already processed")
	}
	original, err := s.analysisRepo.FindByIDForTenant(ctx, tenantID, originalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("DUPLICATE_REQUEST",
				"Request with this idempotency key was already processed")
		}
		return nil, err
	}
	return &CreateAnalysisResponse{
		Analysis:     toAnalysisResponse(original),
		Quota:        toQuotaSnapshotResponse(usageResult.Snapshot),
		Deduplicated: true,
	}, nil
}

func (s *AnalysisService) dispatch(analysisID uuid.UUID) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchAnalysis(analysisID); err != nil {
		s.logger.Warn("Analysis queued for later pickup",
			zap.String("analysis_id", analysisID.String()),
			zap.Error(err),
		)
	}
}
