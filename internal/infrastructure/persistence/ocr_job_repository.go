package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OCRJobModel is the GORM model for OCR jobs
type OCRJobModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy        *uuid.UUID `gorm:"type:uuid"`
	SourceFileKey    string     `gorm:"type:varchar(500);not null"`
	OriginalFilename string     `gorm:"type:varchar(255);not null"`
	ContentType      string     `gorm:"type:varchar(100)"`
	SizeBytes        int64      `gorm:"not null;default:0"`
	LanguageHint     string     `gorm:"type:varchar(35)"`
	Status           string     `gorm:"type:varchar(20);not null;index"`
	PageCount        int        `gorm:"not null;default:0"`
	ExtractedTextKey string     `gorm:"type:varchar(500)"`
	ErrorMessage     string     `gorm:"type:text"`
	SubmittedBy      *uuid.UUID `gorm:"type:uuid;index"`
	StartedAt        *time.Time
	CompletedAt      *time.Time `gorm:"index"`
	Version          int        `gorm:"not null;default:1"`
	CreatedAt        time.Time  `gorm:"not null;index"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

// TableName returns the table name for the model
func (OCRJobModel) TableName() string {
	return "ocr_jobs"
}

// ToEntity converts the model to a domain entity
func (m *OCRJobModel) ToEntity() *document.OCRJob {
	return &document.OCRJob{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		SourceFileKey:    m.SourceFileKey,
		OriginalFilename: m.OriginalFilename,
		ContentType:      m.ContentType,
		SizeBytes:        m.SizeBytes,
		LanguageHint:     m.LanguageHint,
		Status:           document.JobStatus(m.Status),
		PageCount:        m.PageCount,
		ExtractedTextKey: m.ExtractedTextKey,
		ErrorMessage:     m.ErrorMessage,
		SubmittedBy:      m.SubmittedBy,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
	}
}

// OCRJobModelFromEntity creates a model from a domain entity
func OCRJobModelFromEntity(j *document.OCRJob) *OCRJobModel {
	return &OCRJobModel{
		ID:               j.ID,
		TenantID:         j.TenantID,
		CreatedBy:        j.CreatedBy,
		SourceFileKey:    j.SourceFileKey,
		OriginalFilename: j.OriginalFilename,
		ContentType:      j.ContentType,
		SizeBytes:        j.SizeBytes,
		LanguageHint:     j.LanguageHint,
		Status:           j.Status.String(),
		PageCount:        j.PageCount,
		ExtractedTextKey: j.ExtractedTextKey,
		ErrorMessage:     j.ErrorMessage,
		SubmittedBy:      j.SubmittedBy,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		Version:          j.Version,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

// GormOCRJobRepository implements OCRJobRepository using GORM
type GormOCRJobRepository struct {
	db *gorm.DB
}

// NewGormOCRJobRepository creates a new GormOCRJobRepository
func NewGormOCRJobRepository(db *gorm.DB) *GormOCRJobRepository {
	return &GormOCRJobRepository{db: db}
}

// FindByID finds a job by its ID
func (r *GormOCRJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.OCRJob, error) {
	var model OCRJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByIDForTenant finds a job by ID within a tenant
func (r *GormOCRJobRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*document.OCRJob, error) {
	var model OCRJobModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindAllForTenant finds all jobs for a tenant
func (r *GormOCRJobRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.OCRJob, error) {
	var models []OCRJobModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&OCRJobModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	jobs := make([]document.OCRJob, len(models))
	for i := range models {
		jobs[i] = *models[i].ToEntity()
	}
	return jobs, nil
}

// FindPending finds pending jobs ordered oldest first, for recovery scans
func (r *GormOCRJobRepository) FindPending(ctx context.Context, limit int) ([]document.OCRJob, error) {
	var models []OCRJobModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", document.JobStatusPending.String()).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	jobs := make([]document.OCRJob, len(models))
	for i := range models {
		jobs[i] = *models[i].ToEntity()
	}
	return jobs, nil
}

// Save creates or updates a job
func (r *GormOCRJobRepository) Save(ctx context.Context, job *document.OCRJob) error {
	model := OCRJobModelFromEntity(job)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a job
func (r *GormOCRJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&OCRJobModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountForTenant counts jobs for a tenant
func (r *GormOCRJobRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&OCRJobModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts jobs by status for a tenant
func (r *GormOCRJobRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID, status document.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&OCRJobModel{}).
		Where("tenant_id = ? AND status = ?", tenantID, status.String()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteOlderThan deletes terminal jobs that completed more than the given
// number of days ago
func (r *GormOCRJobRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?",
			[]string{document.JobStatusCompleted.String(), document.JobStatusFailed.String()},
			cutoff,
		).
		Delete(&OCRJobModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// applyFilter applies filter options to the query
func (r *GormOCRJobRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, OCRJobSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormOCRJobRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("original_filename ILIKE ?", search)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "submitted_by":
			query = query.Where("submitted_by = ?", value)
		case "language_hint":
			query = query.Where("language_hint = ?", value)
		case "content_type":
			query = query.Where("content_type = ?", value)
		case "created_after":
			query = query.Where("created_at >= ?", value)
		case "created_before":
			query = query.Where("created_at <= ?", value)
		}
	}

	return query
}

// Ensure GormOCRJobRepository implements OCRJobRepository
var _ document.OCRJobRepository = (*GormOCRJobRepository)(nil)
