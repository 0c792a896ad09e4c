package document

import (
	"context"

	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OCRJobRepository defines the interface for OCR job persistence
type OCRJobRepository interface {
	// FindByID finds a job by ID
	FindByID(ctx context.Context, id uuid.UUID) (*OCRJob, error)

	// FindByIDForTenant finds a job by ID within a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*OCRJob, error)

	// FindAllForTenant finds all jobs for a specific tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]OCRJob, error)

	// FindPending finds all pending jobs for processing
	FindPending(ctx context.Context, limit int) ([]OCRJob, error)

	// Save saves a job (insert or update)
	Save(ctx context.Context, job *OCRJob) error

	// Delete deletes a job by ID
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForTenant returns the total count of jobs for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// CountByStatus counts jobs by status for a tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID, status JobStatus) (int64, error)

	// DeleteOlderThan deletes terminal jobs older than the specified number of days
	// Used for job history cleanup
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// DocumentAnalysisRepository defines the interface for document analysis persistence
type DocumentAnalysisRepository interface {
	// FindByID finds an analysis by ID
	FindByID(ctx context.Context, id uuid.UUID) (*DocumentAnalysis, error)

	// FindByIDForTenant finds an analysis by ID within a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*DocumentAnalysis, error)

	// FindAllForTenant finds all analyses for a specific tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]DocumentAnalysis, error)

	// FindBySourceJob finds all analyses derived from a specific OCR job
	FindBySourceJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]DocumentAnalysis, error)

	// FindPending finds all pending analyses for processing
	FindPending(ctx context.Context, limit int) ([]DocumentAnalysis, error)

	// Save saves an analysis (insert or update)
	Save(ctx context.Context, analysis *DocumentAnalysis) error

	// Delete deletes an analysis by ID
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForTenant returns the total count of analyses for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// CountByStatus counts analyses by status for a tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID, status JobStatus) (int64, error)

	// DeleteOlderThan deletes terminal analyses older than the specified number of days
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// FormTemplateRepository defines the interface for form template persistence
type FormTemplateRepository interface {
	// FindByID finds a template by ID
	FindByID(ctx context.Context, id uuid.UUID) (*FormTemplate, error)

	// FindByIDForTenant finds a template by ID within a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FormTemplate, error)

	// FindByCode finds a template by its code within a tenant
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*FormTemplate, error)

	// FindAllForTenant finds all templates for a specific tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]FormTemplate, error)

	// FindActive finds all active templates for a tenant
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]FormTemplate, error)

	// Save saves a template (insert or update)
	Save(ctx context.Context, template *FormTemplate) error

	// Delete deletes a template by ID
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForTenant returns the total count of templates for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// ExistsByCode checks if a template with the given code exists
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string, excludeID *uuid.UUID) (bool, error)
}

// GeneratedFormRepository defines the interface for generated form persistence
type GeneratedFormRepository interface {
	// FindByID finds a generated form by ID
	FindByID(ctx context.Context, id uuid.UUID) (*GeneratedForm, error)

	// FindByIDForTenant finds a generated form by ID within a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*GeneratedForm, error)

	// FindAllForTenant finds all generated forms for a specific tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]GeneratedForm, error)

	// FindByTemplate finds all generated forms produced from a specific template
	FindByTemplate(ctx context.Context, tenantID, templateID uuid.UUID) ([]GeneratedForm, error)

	// Save saves a generated form (insert or update)
	Save(ctx context.Context, form *GeneratedForm) error

	// Delete deletes a generated form by ID
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForTenant returns the total count of generated forms for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// CountByStatus counts generated forms by status for a tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID, status JobStatus) (int64, error)

	// DeleteOlderThan deletes terminal generated forms older than the specified number of days
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// OCRJobFilter extends the standard filter with OCR job specific criteria
type OCRJobFilter struct {
	shared.Filter
	Status        *JobStatus // Filter by status
	SubmittedByID *uuid.UUID // Filter by submitting user
	DateFrom      *string    // Filter by date range start (YYYY-MM-DD)
	DateTo        *string    // Filter by date range end (YYYY-MM-DD)
}

// DocumentAnalysisFilter extends the standard filter with analysis specific criteria
type DocumentAnalysisFilter struct {
	shared.Filter
	Kind          *AnalysisKind // Filter by analysis kind
	Status        *JobStatus    // Filter by status
	SourceJobID   *uuid.UUID    // Filter by source OCR job
	RequestedByID *uuid.UUID    // Filter by requesting user
}

// FormTemplateFilter extends the standard filter with template specific criteria
type FormTemplateFilter struct {
	shared.Filter
	Status    *TemplateStatus // Filter by status
	PaperSize *PaperSize      // Filter by paper size
}

// GeneratedFormFilter extends the standard filter with generated form specific criteria
type GeneratedFormFilter struct {
	shared.Filter
	TemplateID    *uuid.UUID // Filter by template
	Status        *JobStatus // Filter by status
	RequestedByID *uuid.UUID // Filter by requesting user
}
