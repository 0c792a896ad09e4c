package document

import (
	"time"

	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/google/uuid"
)

// =============================================================================
// OCR Job DTOs
// =============================================================================

// SubmitOCRJobRequest represents a request to submit a document for OCR
type SubmitOCRJobRequest struct {
	Filename     string `json:"filename" binding:"required,min=1,max=255"`
	ContentType  string `json:"content_type" binding:"required"`
	LanguageHint string `json:"language_hint" binding:"omitempty,max=16"`
	// Data is the raw upload, populated by the handler from the multipart body
	Data []byte `json:"-"`
	// Request metadata, populated by the handler
	IdempotencyKey string `json:"-"`
	IPAddress      string `json:"-"`
	UserAgent      string `json:"-"`
}

// OCRJobListFilter contains filters for listing OCR jobs
type OCRJobListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`
	Status   string `form:"status"`
}

// OCRJobResponse represents an OCR job.
// Storage keys stay internal, extracted text is fetched through the
// dedicated download endpoint.
type OCRJobResponse struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	OriginalFilename string     `json:"original_filename"`
	ContentType      string     `json:"content_type"`
	SizeBytes        int64      `json:"size_bytes"`
	LanguageHint     string     `json:"language_hint,omitempty"`
	Status           string     `json:"status"`
	PageCount        int        `json:"page_count"`
	HasText          bool       `json:"has_text"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SubmittedBy      string     `json:"submitted_by,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SubmitOCRJobResponse is the outcome of a job submission
type SubmitOCRJobResponse struct {
	Job          OCRJobResponse        `json:"job"`
	Quota        QuotaSnapshotResponse `json:"quota"`
	Deduplicated bool                  `json:"deduplicated"`
}

// ListOCRJobsResponse represents a paginated list of OCR jobs
type ListOCRJobsResponse struct {
	Items []OCRJobResponse `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

// =============================================================================
// Document Analysis DTOs
// =============================================================================

// CreateAnalysisRequest represents a request to run a document analysis.
// Exactly one of SourceJobID and SourceFileKey must be provided.
type CreateAnalysisRequest struct {
	Kind          string     `json:"kind" binding:"required"`
	SourceJobID   *uuid.UUID `json:"source_job_id"`
	SourceFileKey string     `json:"source_file_key"`
	// Request metadata, populated by the handler
	IdempotencyKey string `json:"-"`
	IPAddress      string `json:"-"`
	UserAgent      string `json:"-"`
}

// AnalysisListFilter contains filters for listing analyses
type AnalysisListFilter struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	OrderBy     string `form:"order_by"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Kind        string `form:"kind"`
	Status      string `form:"status"`
	SourceJobID string `form:"source_job_id"`
}

// AnalysisResponse represents a document analysis
type AnalysisResponse struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Kind         string         `json:"kind"`
	SourceJobID  string         `json:"source_job_id,omitempty"`
	Status       string         `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	Confidence   float64        `json:"confidence"`
	ErrorMessage string         `json:"error_message,omitempty"`
	RequestedBy  string         `json:"requested_by,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CreateAnalysisResponse is the outcome of an analysis request
type CreateAnalysisResponse struct {
	Analysis     AnalysisResponse      `json:"analysis"`
	Quota        QuotaSnapshotResponse `json:"quota"`
	Deduplicated bool                  `json:"deduplicated"`
}

// ListAnalysesResponse represents a paginated list of analyses
type ListAnalysesResponse struct {
	Items []AnalysisResponse `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
}

// =============================================================================
// Form Template DTOs
// =============================================================================

// CreateTemplateRequest represents a request to create a form template
type CreateTemplateRequest struct {
	Code        string      `json:"code" binding:"required,min=1,max=64"`
	Name        string      `json:"name" binding:"required,min=1,max=100"`
	Description string      `json:"description" binding:"max=500"`
	Content     string      `json:"content" binding:"required"`
	PaperSize   string      `json:"paper_size"`
	Orientation string      `json:"orientation"`
	Margins     *MarginsDTO `json:"margins"`
}

// UpdateTemplateRequest represents a request to update a form template
type UpdateTemplateRequest struct {
	Name        *string     `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string     `json:"description" binding:"omitempty,max=500"`
	Content     *string     `json:"content"`
	PaperSize   *string     `json:"paper_size"`
	Orientation *string     `json:"orientation"`
	Margins     *MarginsDTO `json:"margins"`
}

// TemplateListFilter contains filters for listing templates
type TemplateListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`
	Status   string `form:"status"`
}

// TemplateResponse represents a form template
type TemplateResponse struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Content     string     `json:"content,omitempty"`
	PaperSize   string     `json:"paper_size"`
	Orientation string     `json:"orientation"`
	Margins     MarginsDTO `json:"margins"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListTemplatesResponse represents a paginated list of templates
type ListTemplatesResponse struct {
	Items []TemplateResponse `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
}

// MarginsDTO represents page margins in millimeters
type MarginsDTO struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// =============================================================================
// Generated Form DTOs
// =============================================================================

// GenerateFormRequest represents a request to generate a PDF form.
// The template is selected by ID or by code, ID wins when both are set.
type GenerateFormRequest struct {
	TemplateID   *uuid.UUID     `json:"template_id"`
	TemplateCode string         `json:"template_code"`
	FieldValues  map[string]any `json:"field_values"`
	// Request metadata, populated by the handler
	IdempotencyKey string `json:"-"`
	IPAddress      string `json:"-"`
	UserAgent      string `json:"-"`
}

// FormListFilter contains filters for listing generated forms
type FormListFilter struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	TemplateID string `form:"template_id"`
	Status     string `form:"status"`
}

// FormResponse represents a generated form
type FormResponse struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	TemplateID   string     `json:"template_id"`
	TemplateCode string     `json:"template_code"`
	Status       string     `json:"status"`
	PageCount    int        `json:"page_count"`
	HasPDF       bool       `json:"has_pdf"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RequestedBy  string     `json:"requested_by,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GenerateFormResponse is the outcome of a form generation
type GenerateFormResponse struct {
	Form         FormResponse          `json:"form"`
	Quota        QuotaSnapshotResponse `json:"quota"`
	Deduplicated bool                  `json:"deduplicated"`
}

// ListFormsResponse represents a paginated list of generated forms
type ListFormsResponse struct {
	Items []FormResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// =============================================================================
// Shared DTOs
// =============================================================================

// QuotaSnapshotResponse reports the quota state after a metered action
type QuotaSnapshotResponse struct {
	Kind      string `json:"kind"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// DownloadURLResponse carries a presigned download URL
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// =============================================================================
// Mappers
// =============================================================================

func toOCRJobResponse(j *document.OCRJob) OCRJobResponse {
	return OCRJobResponse{
		ID:               j.ID.String(),
		TenantID:         j.TenantID.String(),
		OriginalFilename: j.OriginalFilename,
		ContentType:      j.ContentType,
		SizeBytes:        j.SizeBytes,
		LanguageHint:     j.LanguageHint,
		Status:           string(j.Status),
		PageCount:        j.PageCount,
		HasText:          j.HasExtractedText(),
		ErrorMessage:     j.ErrorMessage,
		SubmittedBy:      uuidString(j.SubmittedBy),
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

func toAnalysisResponse(a *document.DocumentAnalysis) AnalysisResponse {
	return AnalysisResponse{
		ID:           a.ID.String(),
		TenantID:     a.TenantID.String(),
		Kind:         string(a.Kind),
		SourceJobID:  uuidString(a.SourceJobID),
		Status:       string(a.Status),
		Result:       a.Result,
		Confidence:   a.Confidence,
		ErrorMessage: a.ErrorMessage,
		RequestedBy:  uuidString(a.RequestedBy),
		StartedAt:    a.StartedAt,
		CompletedAt:  a.CompletedAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toTemplateResponse(t *document.FormTemplate) TemplateResponse {
	return TemplateResponse{
		ID:          t.ID.String(),
		TenantID:    t.TenantID.String(),
		Code:        t.Code,
		Name:        t.Name,
		Description: t.Description,
		Content:     t.Content,
		PaperSize:   string(t.PaperSize),
		Orientation: string(t.Orientation),
		Margins: MarginsDTO{
			Top:    t.Margins.Top,
			Right:  t.Margins.Right,
			Bottom: t.Margins.Bottom,
			Left:   t.Margins.Left,
		},
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toFormResponse(f *document.GeneratedForm) FormResponse {
	return FormResponse{
		ID:           f.ID.String(),
		TenantID:     f.TenantID.String(),
		TemplateID:   f.TemplateID.String(),
		TemplateCode: f.TemplateCode,
		Status:       string(f.Status),
		PageCount:    f.PageCount,
		HasPDF:       f.HasPDF(),
		ErrorMessage: f.ErrorMessage,
		RequestedBy:  uuidString(f.RequestedBy),
		CompletedAt:  f.CompletedAt,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func toQuotaSnapshotResponse(q metering.QuotaCheckResult) QuotaSnapshotResponse {
	return QuotaSnapshotResponse{
		Kind:      string(q.Kind),
		Used:      q.Used,
		Limit:     q.Limit,
		Remaining: q.Remaining,
		Unlimited: q.IsUnlimited(),
	}
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
