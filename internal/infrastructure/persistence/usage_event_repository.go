package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageEventModel is the GORM model for usage events. The idempotency key
// is nullable so that events recorded without one never collide on the
// (tenant_id, idempotency_key) unique index.
type UsageEventModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_usage_events_tenant_idem"`
	Kind           string     `gorm:"type:varchar(50);not null"`
	Quantity       int64      `gorm:"not null"`
	PeriodKey      string     `gorm:"type:varchar(7);not null;index"`
	RecordedAt     time.Time  `gorm:"not null;index"`
	SourceType     string     `gorm:"type:varchar(100)"`
	SourceID       string     `gorm:"type:varchar(255)"`
	IdempotencyKey *string    `gorm:"type:varchar(255);uniqueIndex:idx_usage_events_tenant_idem"`
	UserID         *uuid.UUID `gorm:"type:uuid"`
	IPAddress      string     `gorm:"type:varchar(45)"`
	UserAgent      string     `gorm:"type:text"`
	Metadata       []byte     `gorm:"type:jsonb;default:'{}'"`
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToEntity converts the model to a domain entity
func (m *UsageEventModel) ToEntity() *metering.UsageEvent {
	var metadata metering.Metadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	if metadata == nil {
		metadata = make(metering.Metadata)
	}

	idempotencyKey := ""
	if m.IdempotencyKey != nil {
		idempotencyKey = *m.IdempotencyKey
	}

	return &metering.UsageEvent{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:       m.TenantID,
		Kind:           metering.ResourceKind(m.Kind),
		Quantity:       m.Quantity,
		PeriodKey:      m.PeriodKey,
		RecordedAt:     m.RecordedAt,
		SourceType:     m.SourceType,
		SourceID:       m.SourceID,
		IdempotencyKey: idempotencyKey,
		UserID:         m.UserID,
		IPAddress:      m.IPAddress,
		UserAgent:      m.UserAgent,
		Metadata:       metadata,
	}
}

// UsageEventModelFromEntity creates a model from a domain entity
func UsageEventModelFromEntity(e *metering.UsageEvent) *UsageEventModel {
	var metadataBytes []byte
	if e.Metadata != nil {
		metadataBytes, _ = json.Marshal(e.Metadata)
	} else {
		metadataBytes = []byte("{}")
	}

	var idempotencyKey *string
	if e.IdempotencyKey != "" {
		key := e.IdempotencyKey
		idempotencyKey = &key
	}

	return &UsageEventModel{
		ID:             e.ID,
		TenantID:       e.TenantID,
		Kind:           e.Kind.String(),
		Quantity:       e.Quantity,
		PeriodKey:      e.PeriodKey,
		RecordedAt:     e.RecordedAt,
		SourceType:     e.SourceType,
		SourceID:       e.SourceID,
		IdempotencyKey: idempotencyKey,
		UserID:         e.UserID,
		IPAddress:      e.IPAddress,
		UserAgent:      e.UserAgent,
		Metadata:       metadataBytes,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// UsageEventRepository implements the metering.UsageEventRepository
// interface using GORM
type UsageEventRepository struct {
	db *gorm.DB
}

// NewUsageEventRepository creates a new usage event repository
func NewUsageEventRepository(db *gorm.DB) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// usageEventConflictClause makes inserts idempotent on the tenant's dedup
// key: a second insert with the same key is silently skipped.
func usageEventConflictClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "idempotency_key"}},
		DoNothing: true,
	}
}

// Save persists a new usage event
func (r *UsageEventRepository) Save(ctx context.Context, event *metering.UsageEvent) error {
	model := UsageEventModelFromEntity(event)
	return r.db.WithContext(ctx).Clauses(usageEventConflictClause()).Create(model).Error
}

// SaveBatch persists multiple usage events in batches
func (r *UsageEventRepository) SaveBatch(ctx context.Context, events []*metering.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	models := make([]*UsageEventModel, len(events))
	for i, event := range events {
		models[i] = UsageEventModelFromEntity(event)
	}

	return r.db.WithContext(ctx).Clauses(usageEventConflictClause()).CreateInBatches(models, 100).Error
}

// FindByID retrieves a usage event by its ID
func (r *UsageEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*metering.UsageEvent, error) {
	var model UsageEventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByIdempotencyKey retrieves the event recorded under a tenant's dedup
// key, or nil if none exists
func (r *UsageEventRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*metering.UsageEvent, error) {
	if key == "" {
		return nil, nil
	}

	var model UsageEventModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByTenant retrieves usage events for a tenant
func (r *UsageEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) ([]*metering.UsageEvent, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	query = r.applyFilter(query, filter)

	var models []UsageEventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]*metering.UsageEvent, len(models))
	for i := range models {
		events[i] = models[i].ToEntity()
	}
	return events, nil
}

// CountByTenant counts usage events for a tenant
func (r *UsageEventRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) (int64, error) {
	query := r.db.WithContext(ctx).Model(&UsageEventModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterForCount(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumByTenantAndKind totals the quantity recorded for a tenant, kind and
// accounting period
func (r *UsageEventRepository) SumByTenantAndKind(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, periodKey string) (int64, error) {
	var result struct {
		Total int64
	}

	err := r.db.WithContext(ctx).
		Model(&UsageEventModel{}).
		Select("COALESCE(SUM(quantity), 0) as total").
		Where("tenant_id = ? AND kind = ? AND period_key = ?", tenantID, kind.String(), periodKey).
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// DeleteOlderThan removes usage events recorded before the given time
func (r *UsageEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recorded_at < ?", before).
		Delete(&UsageEventModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// usageEventSortFields contains allowed sort fields for usage events
var usageEventSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"recorded_at": true,
	"kind":        true,
	"quantity":    true,
	"period_key":  true,
	"source_type": true,
}

// applyFilter applies filter options to the query including pagination
func (r *UsageEventRepository) applyFilter(query *gorm.DB, filter metering.UsageEventFilter) *gorm.DB {
	query = r.applyFilterForCount(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, usageEventSortFields, "recorded_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// applyFilterForCount applies filter options without pagination or ordering
func (r *UsageEventRepository) applyFilterForCount(query *gorm.DB, filter metering.UsageEventFilter) *gorm.DB {
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, kind := range filter.Kinds {
			kinds[i] = kind.String()
		}
		query = query.Where("kind IN ?", kinds)
	}
	if filter.PeriodKey != "" {
		query = query.Where("period_key = ?", filter.PeriodKey)
	}
	if filter.SourceType != "" {
		query = query.Where("source_type = ?", filter.SourceType)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.StartTime != nil {
		query = query.Where("recorded_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("recorded_at <= ?", *filter.EndTime)
	}
	return query
}

// Ensure UsageEventRepository implements metering.UsageEventRepository
var _ metering.UsageEventRepository = (*UsageEventRepository)(nil)
