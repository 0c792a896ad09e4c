package document

import (
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeOCRJob           = "OCRJob"
	AggregateTypeDocumentAnalysis = "DocumentAnalysis"
	AggregateTypeFormTemplate     = "FormTemplate"
	AggregateTypeGeneratedForm    = "GeneratedForm"
)

// Event type constants for OCRJob
const (
	EventTypeOCRJobSubmitted = "OCRJobSubmitted"
	EventTypeOCRJobCompleted = "OCRJobCompleted"
	EventTypeOCRJobFailed    = "OCRJobFailed"
)

// Event type constants for DocumentAnalysis
const (
	EventTypeAnalysisRequested = "AnalysisRequested"
	EventTypeAnalysisCompleted = "AnalysisCompleted"
	EventTypeAnalysisFailed    = "AnalysisFailed"
)

// Event type constants for FormTemplate
const (
	EventTypeFormTemplateCreated = "FormTemplateCreated"
	EventTypeFormTemplateUpdated = "FormTemplateUpdated"
)

// Event type constants for GeneratedForm
const (
	EventTypeFormRequested = "FormRequested"
	EventTypeFormCompleted = "FormCompleted"
	EventTypeFormFailed    = "FormFailed"
)

// OCRJobSubmittedEvent is published when a new OCR job is accepted
type OCRJobSubmittedEvent struct {
	shared.BaseDomainEvent
	JobID            uuid.UUID `json:"job_id"`
	SourceFileKey    string    `json:"source_file_key"`
	OriginalFilename string    `json:"original_filename"`
}

// NewOCRJobSubmittedEvent creates a new OCRJobSubmittedEvent
func NewOCRJobSubmittedEvent(job *OCRJob) *OCRJobSubmittedEvent {
	return &OCRJobSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeOCRJobSubmitted,
			AggregateTypeOCRJob,
			job.ID,
			job.TenantID,
		),
		JobID:            job.ID,
		SourceFileKey:    job.SourceFileKey,
		OriginalFilename: job.OriginalFilename,
	}
}

// OCRJobCompletedEvent is published when an OCR job finishes successfully
type OCRJobCompletedEvent struct {
	shared.BaseDomainEvent
	JobID            uuid.UUID `json:"job_id"`
	PageCount        int       `json:"page_count"`
	ExtractedTextKey string    `json:"extracted_text_key"`
}

// NewOCRJobCompletedEvent creates a new OCRJobCompletedEvent
func NewOCRJobCompletedEvent(job *OCRJob) *OCRJobCompletedEvent {
	return &OCRJobCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeOCRJobCompleted,
			AggregateTypeOCRJob,
			job.ID,
			job.TenantID,
		),
		JobID:            job.ID,
		PageCount:        job.PageCount,
		ExtractedTextKey: job.ExtractedTextKey,
	}
}

// OCRJobFailedEvent is published when an OCR job fails
type OCRJobFailedEvent struct {
	shared.BaseDomainEvent
	JobID        uuid.UUID `json:"job_id"`
	ErrorMessage string    `json:"error_message"`
}

// NewOCRJobFailedEvent creates a new OCRJobFailedEvent
func NewOCRJobFailedEvent(job *OCRJob) *OCRJobFailedEvent {
	return &OCRJobFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeOCRJobFailed,
			AggregateTypeOCRJob,
			job.ID,
			job.TenantID,
		),
		JobID:        job.ID,
		ErrorMessage: job.ErrorMessage,
	}
}

// AnalysisRequestedEvent is published when a new analysis is accepted
type AnalysisRequestedEvent struct {
	shared.BaseDomainEvent
	AnalysisID    uuid.UUID    `json:"analysis_id"`
	Kind          AnalysisKind `json:"kind"`
	SourceFileKey string       `json:"source_file_key"`
}

// NewAnalysisRequestedEvent creates a new AnalysisRequestedEvent
func NewAnalysisRequestedEvent(analysis *DocumentAnalysis) *AnalysisRequestedEvent {
	return &AnalysisRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeAnalysisRequested,
			AggregateTypeDocumentAnalysis,
			analysis.ID,
			analysis.TenantID,
		),
		AnalysisID:    analysis.ID,
		Kind:          analysis.Kind,
		SourceFileKey: analysis.SourceFileKey,
	}
}

// AnalysisCompletedEvent is published when an analysis finishes successfully
type AnalysisCompletedEvent struct {
	shared.BaseDomainEvent
	AnalysisID uuid.UUID    `json:"analysis_id"`
	Kind       AnalysisKind `json:"kind"`
	Confidence float64      `json:"confidence"`
}

// NewAnalysisCompletedEvent creates a new AnalysisCompletedEvent
func NewAnalysisCompletedEvent(analysis *DocumentAnalysis) *AnalysisCompletedEvent {
	return &AnalysisCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeAnalysisCompleted,
			AggregateTypeDocumentAnalysis,
			analysis.ID,
			analysis.TenantID,
		),
		AnalysisID: analysis.ID,
		Kind:       analysis.Kind,
		Confidence: analysis.Confidence,
	}
}

// AnalysisFailedEvent is published when an analysis fails
type AnalysisFailedEvent struct {
	shared.BaseDomainEvent
	AnalysisID   uuid.UUID    `json:"analysis_id"`
	Kind         AnalysisKind `json:"kind"`
	ErrorMessage string       `json:"error_message"`
}

// NewAnalysisFailedEvent creates a new AnalysisFailedEvent
func NewAnalysisFailedEvent(analysis *DocumentAnalysis) *AnalysisFailedEvent {
	return &AnalysisFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeAnalysisFailed,
			AggregateTypeDocumentAnalysis,
			analysis.ID,
			analysis.TenantID,
		),
		AnalysisID:   analysis.ID,
		Kind:         analysis.Kind,
		ErrorMessage: analysis.ErrorMessage,
	}
}

// FormTemplateCreatedEvent is published when a new form template is created
type FormTemplateCreatedEvent struct {
	shared.BaseDomainEvent
	TemplateID uuid.UUID `json:"template_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
}

// NewFormTemplateCreatedEvent creates a new FormTemplateCreatedEvent
func NewFormTemplateCreatedEvent(template *FormTemplate) *FormTemplateCreatedEvent {
	return &FormTemplateCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeFormTemplateCreated,
			AggregateTypeFormTemplate,
			template.ID,
			template.TenantID,
		),
		TemplateID: template.ID,
		Code:       template.Code,
		Name:       template.Name,
	}
}

// FormTemplateUpdatedEvent is published when a form template is updated
type FormTemplateUpdatedEvent struct {
	shared.BaseDomainEvent
	TemplateID uuid.UUID `json:"template_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
}

// NewFormTemplateUpdatedEvent creates a new FormTemplateUpdatedEvent
func NewFormTemplateUpdatedEvent(template *FormTemplate) *FormTemplateUpdatedEvent {
	return &FormTemplateUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeFormTemplateUpdated,
			AggregateTypeFormTemplate,
			template.ID,
			template.TenantID,
		),
		TemplateID: template.ID,
		Code:       template.Code,
		Name:       template.Name,
	}
}

// FormRequestedEvent is published when a new form generation is accepted
type FormRequestedEvent struct {
	shared.BaseDomainEvent
	FormID       uuid.UUID `json:"form_id"`
	TemplateID   uuid.UUID `json:"template_id"`
	TemplateCode string    `json:"template_code"`
}

// NewFormRequestedEvent creates a new FormRequestedEvent
func NewFormRequestedEvent(form *GeneratedForm) *FormRequestedEvent {
	return &FormRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeFormRequested,
			AggregateTypeGeneratedForm,
			form.ID,
			form.TenantID,
		),
		FormID:       form.ID,
		TemplateID:   form.TemplateID,
		TemplateCode: form.TemplateCode,
	}
}

// FormCompletedEvent is published when a form is rendered successfully
type FormCompletedEvent struct {
	shared.BaseDomainEvent
	FormID        uuid.UUID `json:"form_id"`
	TemplateCode  string    `json:"template_code"`
	OutputFileKey string    `json:"output_file_key"`
	PageCount     int       `json:"page_count"`
}

// NewFormCompletedEvent creates a new FormCompletedEvent
func NewFormCompletedEvent(form *GeneratedForm) *FormCompletedEvent {
	return &FormCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeFormCompleted,
			AggregateTypeGeneratedForm,
			form.ID,
			form.TenantID,
		),
		FormID:        form.ID,
		TemplateCode:  form.TemplateCode,
		OutputFileKey: form.OutputFileKey,
		PageCount:     form.PageCount,
	}
}

// FormFailedEvent is published when form rendering fails
type FormFailedEvent struct {
	shared.BaseDomainEvent
	FormID       uuid.UUID `json:"form_id"`
	TemplateCode string    `json:"template_code"`
	ErrorMessage string    `json:"error_message"`
}

// NewFormFailedEvent creates a new FormFailedEvent
func NewFormFailedEvent(form *GeneratedForm) *FormFailedEvent {
	return &FormFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeFormFailed,
			AggregateTypeGeneratedForm,
			form.ID,
			form.TenantID,
		),
		FormID:       form.ID,
		TemplateCode: form.TemplateCode,
		ErrorMessage: form.ErrorMessage,
	}
}
