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

// GeneratedFormModel is the GORM model for generated forms
type GeneratedFormModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy     *uuid.UUID `gorm:"type:uuid"`
	TemplateID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	TemplateCode  string     `gorm:"type:varchar(50);not null"`
	FieldValues   []byte     `gorm:"type:jsonb;default:'{}'"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	OutputFileKey string     `gorm:"type:varchar(500)"`
	PageCount     int        `gorm:"not null;default:0"`
	ErrorMessage  string     `gorm:"type:text"`
	RequestedBy   *uuid.UUID `gorm:"type:uuid;index"`
	CompletedAt   *time.Time `gorm:"index"`
	Version       int        `gorm:"not null;default:1"`
	CreatedAt     time.Time  `gorm:"not null;index"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for the model
func (GeneratedFormModel) TableName() string {
	return "generated_forms"
}

// ToEntity converts the model to a domain entity
func (m *GeneratedFormModel) ToEntity() *document.GeneratedForm {
	var fieldValues map[string]any
	if len(m.FieldValues) > 0 {
		_ = json.Unmarshal(m.FieldValues, &fieldValues)
	}
	if fieldValues == nil {
		fieldValues = make(map[string]any)
	}

	return &document.GeneratedForm{
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
		TemplateID:    m.TemplateID,
		TemplateCode:  m.TemplateCode,
		FieldValues:   fieldValues,
		Status:        document.JobStatus(m.Status),
		OutputFileKey: m.OutputFileKey,
		PageCount:     m.PageCount,
		ErrorMessage:  m.ErrorMessage,
		RequestedBy:   m.RequestedBy,
		CompletedAt:   m.CompletedAt,
	}
}

// GeneratedFormModelFromEntity creates a model from a domain entity
func GeneratedFormModelFromEntity(f *document.GeneratedForm) *GeneratedFormModel {
	var fieldValuesBytes []byte
	if f.FieldValues != nil {
		fieldValuesBytes, _ = json.Marshal(f.FieldValues)
	} else {
		fieldValuesBytes = []byte("{}")
	}

	return &GeneratedFormModel{
		ID:            f.ID,
		TenantID:      f.TenantID,
		CreatedBy:     f.CreatedBy,
		TemplateID:    f.TemplateID,
		TemplateCode:  f.TemplateCode,
		FieldValues:   fieldValuesBytes,
		Status:        f.Status.String(),
		OutputFileKey: f.OutputFileKey,
		PageCount:     f.PageCount,
		ErrorMessage:  f.ErrorMessage,
		RequestedBy:   f.RequestedBy,
		CompletedAt:   f.CompletedAt,
		Version:       f.Version,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// GormGeneratedFormRepository implements GeneratedFormRepository using GORM
type GormGeneratedFormRepository struct {
	db *gorm.DB
}

// NewGormGeneratedFormRepository creates a new GormGeneratedFormRepository
func NewGormGeneratedFormRepository(db *gorm.DB) *GormGeneratedFormRepository {
	return &GormGeneratedFormRepository{db: db}
}

// FindByID finds a generated form by its ID
func (r *GormGeneratedFormRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.GeneratedForm, error) {
	var model GeneratedFormModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByIDForTenant finds a generated form by ID within a tenant
func (r *GormGeneratedFormRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*document.GeneratedForm, error) {
	var model GeneratedFormModel
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

// FindAllForTenant finds all generated forms for a tenant
func (r *GormGeneratedFormRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.GeneratedForm, error) {
	var models []GeneratedFormModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&GeneratedFormModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	forms := make([]document.GeneratedForm, len(models))
	for i := range models {
		forms[i] = *models[i].ToEntity()
	}
	return forms, nil
}

// FindByTemplate finds all generated forms produced from a specific template
func (r *GormGeneratedFormRepository) FindByTemplate(ctx context.Context, tenantID, templateID uuid.UUID) ([]document.GeneratedForm, error) {
	var models []GeneratedFormModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND template_id = ?", tenantID, templateID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	forms := make([]document.GeneratedForm, len(models))
	for i := range models {
		forms[i] = *models[i].ToEntity()
	}
	return forms, nil
}

// Save creates or updates a generated form
func (r *GormGeneratedFormRepository) Save(ctx context.Context, form *document.GeneratedForm) error {
	model := GeneratedFormModelFromEntity(form)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a generated form
func (r *GormGeneratedFormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&GeneratedFormModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountForTenant counts generated forms for a tenant
func (r *GormGeneratedFormRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&GeneratedFormModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts generated forms by status for a tenant
func (r *GormGeneratedFormRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID, status document.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&GeneratedFormModel{}).
		Where("tenant_id = ? AND status = ?", tenantID, status.String()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteOlderThan deletes terminal generated forms that completed more than
// the given number of days ago
func (r *GormGeneratedFormRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?",
			[]string{document.JobStatusCompleted.String(), document.JobStatusFailed.String()},
			cutoff,
		).
		Delete(&GeneratedFormModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// applyFilter applies filter options to the query
func (r *GormGeneratedFormRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, GeneratedFormSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormGeneratedFormRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("template_code ILIKE ?", search)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "template_id":
			query = query.Where("template_id = ?", value)
		case "requested_by":
			query = query.Where("requested_by = ?", value)
		case "created_after":
			query = query.Where("created_at >= ?", value)
		case "created_before":
			query = query.Where("created_at <= ?", value)
		}
	}

	return query
}

// Ensure GormGeneratedFormRepository implements GeneratedFormRepository
var _ document.GeneratedFormRepository = (*GormGeneratedFormRepository)(nil)
