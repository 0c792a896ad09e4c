package document

import (
	"strings"
	"time"

	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OCRJob represents a text extraction job over an uploaded document.
// Each job corresponds to one uploaded file being OCRed.
type OCRJob struct {
	shared.TenantAggregateRoot
	SourceFileKey    string     // Object storage key of the uploaded document
	OriginalFilename string     // Filename as uploaded by the client
	ContentType      string     // MIME type of the uploaded document
	SizeBytes        int64      // Upload size in bytes
	LanguageHint     string     // Optional language hint for the engine (BCP 47)
	Status           JobStatus  // Current job status
	PageCount        int        // Number of pages processed (set on completion)
	ExtractedTextKey string     // Object storage key of the extracted text
	ErrorMessage     string     // Error message if the job failed
	SubmittedBy      *uuid.UUID // User who submitted the job
	StartedAt        *time.Time // When processing started
	CompletedAt      *time.Time // When the job reached a terminal state
}

// NewOCRJob creates a new OCR job in pending state
func NewOCRJob(
	tenantID uuid.UUID,
	sourceFileKey string,
	originalFilename string,
	submittedBy uuid.UUID,
) (*OCRJob, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if strings.TrimSpace(sourceFileKey) == "" {
		return nil, shared.NewDomainError("INVALID_FILE_KEY", "Source file key cannot be empty")
	}
	if strings.TrimSpace(originalFilename) == "" {
		return nil, shared.NewDomainError("INVALID_FILENAME", "Original filename cannot be empty")
	}

	job := &OCRJob{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SourceFileKey:       sourceFileKey,
		OriginalFilename:    originalFilename,
		Status:              JobStatusPending,
	}
	if submittedBy != uuid.Nil {
		job.SubmittedBy = &submittedBy
	}

	job.AddDomainEvent(NewOCRJobSubmittedEvent(job))

	return job, nil
}

// SetFileInfo records the MIME type and size of the upload
func (j *OCRJob) SetFileInfo(contentType string, sizeBytes int64) error {
	if sizeBytes < 0 {
		return shared.NewDomainError("INVALID_FILE_SIZE", "File size cannot be negative")
	}

	j.ContentType = contentType
	j.SizeBytes = sizeBytes
	j.UpdatedAt = time.Now()

	return nil
}

// SetLanguageHint sets the optional language hint passed to the engine
func (j *OCRJob) SetLanguageHint(hint string) {
	j.LanguageHint = strings.TrimSpace(hint)
	j.UpdatedAt = time.Now()
}

// Start marks the job as picked up by an engine
func (j *OCRJob) Start() error {
	if !j.Status.CanTransitionTo(JobStatusProcessing) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start processing from status: "+j.Status.String())
	}

	j.Status = JobStatusProcessing
	now := time.Now()
	j.StartedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	return nil
}

// Complete marks the job as completed with the extraction results
func (j *OCRJob) Complete(pageCount int, extractedTextKey string) error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot complete from status: "+j.Status.String())
	}
	if pageCount < 1 {
		return shared.NewDomainError("INVALID_PAGE_COUNT", "Page count must be at least 1")
	}
	if strings.TrimSpace(extractedTextKey) == "" {
		return shared.NewDomainError("INVALID_TEXT_KEY", "Extracted text key cannot be empty")
	}

	j.Status = JobStatusCompleted
	j.PageCount = pageCount
	j.ExtractedTextKey = extractedTextKey
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewOCRJobCompletedEvent(j))

	return nil
}

// Fail marks the job as failed with an error message
func (j *OCRJob) Fail(errorMessage string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail a job that is already in terminal status: "+j.Status.String())
	}

	j.Status = JobStatusFailed
	j.ErrorMessage = errorMessage
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewOCRJobFailedEvent(j))

	return nil
}

// IsPending returns true if the job is waiting for a worker
func (j *OCRJob) IsPending() bool {
	return j.Status == JobStatusPending
}

// IsProcessing returns true if the job is being processed
func (j *OCRJob) IsProcessing() bool {
	return j.Status == JobStatusProcessing
}

// IsCompleted returns true if the job completed successfully
func (j *OCRJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted
}

// IsFailed returns true if the job failed
func (j *OCRJob) IsFailed() bool {
	return j.Status == JobStatusFailed
}

// IsTerminal returns true if the job is in a terminal state
func (j *OCRJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// HasExtractedText returns true if extraction output is available
func (j *OCRJob) HasExtractedText() bool {
	return j.ExtractedTextKey != ""
}
