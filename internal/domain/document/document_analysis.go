package document

import (
	"strings"
	"time"

	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentAnalysis represents an analysis request over a document.
// The analysis runs against either the raw uploaded file or the text
// extracted by a prior OCR job.
type DocumentAnalysis struct {
	shared.TenantAggregateRoot
	SourceFileKey string         // Object storage key of the analyzed document
	SourceJobID   *uuid.UUID     // OCR job whose extracted text feeds the analysis (optional)
	Kind          AnalysisKind   // Type of analysis requested
	Status        JobStatus      // Current status
	Result        map[string]any // Engine output payload (set on completion)
	Confidence    float64        // Engine confidence score, 0 to 1 (set on completion)
	ErrorMessage  string         // Error message if the analysis failed
	RequestedBy   *uuid.UUID     // User who requested the analysis
	StartedAt     *time.Time     // When processing started
	CompletedAt   *time.Time     // When the analysis reached a terminal state
}

// NewDocumentAnalysis creates a new analysis request in pending state
func NewDocumentAnalysis(
	tenantID uuid.UUID,
	sourceFileKey string,
	kind AnalysisKind,
	requestedBy uuid.UUID,
) (*DocumentAnalysis, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if strings.TrimSpace(sourceFileKey) == "" {
		return nil, shared.NewDomainError("INVALID_FILE_KEY", "Source file key cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ANALYSIS_KIND", "Invalid analysis kind: "+kind.String())
	}

	analysis := &DocumentAnalysis{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SourceFileKey:       sourceFileKey,
		Kind:                kind,
		Status:              JobStatusPending,
	}
	if requestedBy != uuid.Nil {
		analysis.RequestedBy = &requestedBy
	}

	analysis.AddDomainEvent(NewAnalysisRequestedEvent(analysis))

	return analysis, nil
}

// SetSourceJob links the analysis to the OCR job that produced its input text
func (a *DocumentAnalysis) SetSourceJob(jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return shared.NewDomainError("INVALID_JOB", "Source job ID cannot be empty")
	}

	a.SourceJobID = &jobID
	a.UpdatedAt = time.Now()

	return nil
}

// Start marks the analysis as picked up by an engine
func (a *DocumentAnalysis) Start() error {
	if !a.Status.CanTransitionTo(JobStatusProcessing) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start processing from status: "+a.Status.String())
	}

	a.Status = JobStatusProcessing
	now := time.Now()
	a.StartedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()

	return nil
}

// Complete marks the analysis as completed with the engine output
func (a *DocumentAnalysis) Complete(result map[string]any, confidence float64) error {
	if !a.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot complete from status: "+a.Status.String())
	}
	if confidence < 0 || confidence > 1 {
		return shared.NewDomainError("INVALID_CONFIDENCE", "Confidence must be between 0 and 1")
	}

	a.Status = JobStatusCompleted
	a.Result = result
	a.Confidence = confidence
	now := time.Now()
	a.CompletedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()

	a.AddDomainEvent(NewAnalysisCompletedEvent(a))

	return nil
}

// Fail marks the analysis as failed with an error message
func (a *DocumentAnalysis) Fail(errorMessage string) error {
	if a.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail an analysis that is already in terminal status: "+a.Status.String())
	}

	a.Status = JobStatusFailed
	a.ErrorMessage = errorMessage
	now := time.Now()
	a.CompletedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()

	a.AddDomainEvent(NewAnalysisFailedEvent(a))

	return nil
}

// IsPending returns true if the analysis is waiting for a worker
func (a *DocumentAnalysis) IsPending() bool {
	return a.Status == JobStatusPending
}

// IsCompleted returns true if the analysis completed successfully
func (a *DocumentAnalysis) IsCompleted() bool {
	return a.Status == JobStatusCompleted
}

// IsTerminal returns true if the analysis is in a terminal state
func (a *DocumentAnalysis) IsTerminal() bool {
	return a.Status.IsTerminal()
}

// HasResult returns true if engine output is available
func (a *DocumentAnalysis) HasResult() bool {
	return a.Status == JobStatusCompleted && a.Result != nil
}
