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

// FormTemplateModel is the GORM model for form templates. The template
// code is unique per tenant, enforced by a composite index.
type FormTemplateModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_form_templates_tenant_code"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid"`
	Code         string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_form_templates_tenant_code"`
	Name         string     `gorm:"type:varchar(200);not null"`
	Description  string     `gorm:"type:text"`
	Content      string     `gorm:"type:text;not null"`
	PaperSize    string     `gorm:"type:varchar(10);not null;default:'A4'"`
	Orientation  string     `gorm:"type:varchar(10);not null;default:'portrait'"`
	MarginTop    int        `gorm:"not null;default:20"`
	MarginRight  int        `gorm:"not null;default:20"`
	MarginBottom int        `gorm:"not null;default:20"`
	MarginLeft   int        `gorm:"not null;default:20"`
	Status       string     `gorm:"type:varchar(20);not null;index"`
	Version      int        `gorm:"not null;default:1"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
}

// TableName returns the table name for the model
func (FormTemplateModel) TableName() string {
	return "form_templates"
}

// ToEntity converts the model to a domain entity
func (m *FormTemplateModel) ToEntity() *document.FormTemplate {
	return &document.FormTemplate{
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
		Code:        m.Code,
		Name:        m.Name,
		Description: m.Description,
		Content:     m.Content,
		PaperSize:   document.PaperSize(m.PaperSize),
		Orientation: document.Orientation(m.Orientation),
		Margins: document.Margins{
			Top:    m.MarginTop,
			Right:  m.MarginRight,
			Bottom: m.MarginBottom,
			Left:   m.MarginLeft,
		},
		Status: document.TemplateStatus(m.Status),
	}
}

// FormTemplateModelFromEntity creates a model from a domain entity
func FormTemplateModelFromEntity(t *document.FormTemplate) *FormTemplateModel {
	return &FormTemplateModel{
		ID:           t.ID,
		TenantID:     t.TenantID,
		CreatedBy:    t.CreatedBy,
		Code:         t.Code,
		Name:         t.Name,
		Description:  t.Description,
		Content:      t.Content,
		PaperSize:    t.PaperSize.String(),
		Orientation:  t.Orientation.String(),
		MarginTop:    t.Margins.Top,
		MarginRight:  t.Margins.Right,
		MarginBottom: t.Margins.Bottom,
		MarginLeft:   t.Margins.Left,
		Status:       t.Status.String(),
		Version:      t.Version,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// GormFormTemplateRepository implements FormTemplateRepository using GORM
type GormFormTemplateRepository struct {
	db *gorm.DB
}

// NewGormFormTemplateRepository creates a new GormFormTemplateRepository
func NewGormFormTemplateRepository(db *gorm.DB) *GormFormTemplateRepository {
	return &GormFormTemplateRepository{db: db}
}

// FindByID finds a template by its ID
func (r *GormFormTemplateRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.FormTemplate, error) {
	var model FormTemplateModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByIDForTenant finds a template by ID within a tenant
func (r *GormFormTemplateRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*document.FormTemplate, error) {
	var model FormTemplateModel
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

// FindByCode finds a template by its code within a tenant
func (r *GormFormTemplateRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*document.FormTemplate, error) {
	var model FormTemplateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindAllForTenant finds all templates for a tenant
func (r *GormFormTemplateRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.FormTemplate, error) {
	var models []FormTemplateModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&FormTemplateModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	templates := make([]document.FormTemplate, len(models))
	for i := range models {
		templates[i] = *models[i].ToEntity()
	}
	return templates, nil
}

// FindActive finds all active templates for a tenant
func (r *GormFormTemplateRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]document.FormTemplate, error) {
	var models []FormTemplateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, document.TemplateStatusActive.String()).
		Order("code ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	templates := make([]document.FormTemplate, len(models))
	for i := range models {
		templates[i] = *models[i].ToEntity()
	}
	return templates, nil
}

// Save creates or updates a template
func (r *GormFormTemplateRepository) Save(ctx context.Context, template *document.FormTemplate) error {
	model := FormTemplateModelFromEntity(template)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a template
func (r *GormFormTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&FormTemplateModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountForTenant counts templates for a tenant
func (r *GormFormTemplateRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&FormTemplateModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByCode checks if a template with the given code exists, optionally
// excluding one template ID (for rename checks)
func (r *GormFormTemplateRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string, excludeID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&FormTemplateModel{}).
		Where("tenant_id = ? AND code = ?", tenantID, code)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies filter options to the query
func (r *GormFormTemplateRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, FormTemplateSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormFormTemplateRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", search, search)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "paper_size":
			query = query.Where("paper_size = ?", value)
		case "orientation":
			query = query.Where("orientation = ?", value)
		}
	}

	return query
}

// Ensure GormFormTemplateRepository implements FormTemplateRepository
var _ document.FormTemplateRepository = (*GormFormTemplateRepository)(nil)
