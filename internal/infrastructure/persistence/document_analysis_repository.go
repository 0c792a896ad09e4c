package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/documind/backend/internal/domain/document"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentAnalysisModel is the GORM model for document analyses. The
// engine's result payload is schemaless and stored as jsonb.
type DocumentAnalysisModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy     *uuid.UUID `gorm:"type:uuid"`
	SourceFileKey string     `gorm:"type:varchar(500);not null"`
	SourceJobID   *uuid.UUID `gorm:"type:uuid;index"`
	Kind          string     `gorm:"type:varchar(30);not null;index"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	Result        []byte     `gorm:"type:jsonb"`
	Confidence    float64    `gorm:"not null;default:0"`
	ErrorMessage  string     `gorm:"type:text"`
	RequestedBy   *uuid.UUID `gorm:"type:uuid;index"`
	StartedAt     *time.Time
	CompletedAt   *time.Time `gorm:"index"`
	Version       int        `gorm:"not null;default:1"`
	CreatedAt     time.Time  `gorm:"not null;index"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for the model
func (DocumentAnalysisModel) TableName() string {
	return "document_analyses"
}

// ToEntity converts the model to a domain entity
func (m *DocumentAnalysisModel) ToEntity() *document.DocumentAnalysis {
	var result map[string]any
	if len(m.Result) > 0 {
		_ = json.Unmarshal(m.Result, &result)
	}

	return &document.DocumentAnalysis{
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
		SourceFileKey: m.SourceFileKey,
		SourceJobID:   m.SourceJobID,
		Kind:          document.AnalysisKind(m.Kind),
		Status:        document.JobStatus(m.Status),
		Result:        result,
		Confidence:    m.Confidence,
		ErrorMessage:  m.ErrorMessage,
		RequestedBy:   m.RequestedBy,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
	}
}

// DocumentAnalysisModelFromEntity creates a model from a domain entity
func DocumentAnalysisModelFromEntity(a *document.DocumentAnalysis) *DocumentAnalysisModel {
	var resultBytes []byte
	if a.Result != nil {
		resultBytes, _ = json.Marshal(a.Result)
	}

	return &DocumentAnalysisModel{
		ID:            a.ID,
		TenantID:      a.TenantID,
		CreatedBy:     a.CreatedBy,
		SourceFileKey: a.SourceFileKey,
		SourceJobID:   a.SourceJobID,
		Kind:          a.Kind.String(),
		Status:        a.Status.String(),
		Result:        resultBytes,
		Confidence:    a.Confidence,
		ErrorMessage:  a.ErrorMessage,
		RequestedBy:   a.RequestedBy,
		StartedAt:     a.StartedAt,
		CompletedAt:   a.CompletedAt,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// GormDocumentAnalysisRepository implements DocumentAnalysisRepository using GORM
type GormDocumentAnalysisRepository struct {
	db *gorm.DB
}

// NewGormDocumentAnalysisRepository creates a new GormDocumentAnalysisRepository
func NewGormDocumentAnalysisRepository(db *gorm.DB) *GormDocumentAnalysisRepository {
	return &GormDocumentAnalysisRepository{db: db}
}

// FindByID finds an analysis by its ID
func (r *GormDocumentAnalysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.DocumentAnalysis, error) {
	var model DocumentAnalysisModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByIDForTenant finds an analysis by ID within a tenant
func (r *GormDocumentAnalysisRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*document.DocumentAnalysis, error) {
	var model DocumentAnalysisModel
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

// FindAllForTenant finds all analyses for a tenant
func (r *GormDocumentAnalysisRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.DocumentAnalysis, error) {
	var models []DocumentAnalysisModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&DocumentAnalysisModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	analyses := make([]document.DocumentAnalysis, len(models))
	for i := range models {
		analyses[i] = *models[i].ToEntity()
	}
	return analyses, nil
}

// FindBySourceJob finds all analyses derived from a specific OCR job
func (r *GormDocumentAnalysisRepository) FindBySourceJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]document.DocumentAnalysis, error) {
	var models []DocumentAnalysisModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_job_id = ?", tenantID, jobID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	analyses := make([]document.DocumentAnalysis, len(models))
	for i := range models {
		analyses[i] = *models[i].ToEntity()
	}
	return analyses, nil
}

// FindPending finds pending analyses ordered oldest first
func (r *GormDocumentAnalysisRepository) FindPending(ctx context.Context, limit int) ([]document.DocumentAnalysis, error) {
	var models []DocumentAnalysisModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", document.JobStatusPending.String()).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	analyses := make([]document.DocumentAnalysis, len(models))
	for i := range models {
		analyses[i] = *models[i].ToEntity()
	}
	return analyses, nil
}

// Save creates or updates an analysis
func (r *GormDocumentAnalysisRepository) Save(ctx context.Context, analysis *document.DocumentAnalysis) error {
	model := DocumentAnalysisModelFromEntity(analysis)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes an analysis
func (r *GormDocumentAnalysisRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&DocumentAnalysisModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountForTenant counts analyses for a tenant
func (r *GormDocumentAnalysisRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&DocumentAnalysisModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts analyses by status for a tenant
func (r *GormDocumentAnalysisRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID, status document.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&DocumentAnalysisModel{}).
		Where("tenant_id = ? AND status = ?", tenantID, status.String()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteOlderThan deletes terminal analyses that completed more than the
// given number of days ago
func (r *GormDocumentAnalysisRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?",
			[]string{document.JobStatusCompleted.String(), document.JobStatusFailed.String()},
			cutoff,
		).
		Delete(&DocumentAnalysisModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// applyFilter applies filter options to the query
func (r *GormDocumentAnalysisRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, DocumentAnalysisSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormDocumentAnalysisRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "kind":
			query = query.Where("kind = ?", value)
		case "source_job_id":
			query = query.Where("source_job_id = ?", value)
		case "requested_by":
			query = query.Where("requested_by = ?", value)
		case "min_confidence":
			query = query.Where("confidence >= ?", value)
		case "created_after":
			query = query.Where("created_at >= ?", value)
		case "created_before":
			query = query.Where("created_at <= ?", value)
		}
	}

	return query
}

// Ensure GormDocumentAnalysisRepository implements DocumentAnalysisRepository
var _ document.DocumentAnalysisRepository = (*GormDocumentAnalysisRepository)(nil)
