package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageAccountModel is the GORM model for usage accounts. Counters are
// flattened into one column per metered kind so aggregation queries stay
// plain SQL; the period history and plan change log are jsonb documents.
// Plan limits are intentionally not stored: the domain derives them from
// the plan column on every load.
type UsageAccountModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	CreatedBy        *uuid.UUID `gorm:"type:uuid"`
	Plan             string     `gorm:"type:varchar(50);not null;default:'free'"`
	AnalysisCount    int64      `gorm:"not null;default:0"`
	GenerationCount  int64      `gorm:"not null;default:0"`
	OCRCount         int64      `gorm:"column:ocr_count;not null;default:0"`
	PeriodStart      time.Time  `gorm:"not null"`
	CurrentPeriodKey string     `gorm:"type:varchar(7);not null;index"`
	History          []byte     `gorm:"type:jsonb;default:'[]'"`
	PlanChangeLog    []byte     `gorm:"type:jsonb;default:'[]'"`
	Version          int        `gorm:"not null;default:1"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

// TableName returns the table name for the model
func (UsageAccountModel) TableName() string {
	return "usage_accounts"
}

// ToEntity converts the model to a domain entity
func (m *UsageAccountModel) ToEntity() *metering.UsageAccount {
	var history []metering.PeriodSnapshot
	if len(m.History) > 0 {
		_ = json.Unmarshal(m.History, &history)
	}
	if history == nil {
		history = make([]metering.PeriodSnapshot, 0)
	}

	var planChanges []metering.PlanChange
	if len(m.PlanChangeLog) > 0 {
		_ = json.Unmarshal(m.PlanChangeLog, &planChanges)
	}
	if planChanges == nil {
		planChanges = make([]metering.PlanChange, 0)
	}

	return &metering.UsageAccount{
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
		Plan: metering.Plan(m.Plan),
		Counts: map[metering.ResourceKind]int64{
			metering.ResourceKindAnalysis:   m.AnalysisCount,
			metering.ResourceKindGeneration: m.GenerationCount,
			metering.ResourceKindOCR:        m.OCRCount,
		},
		PeriodStart:      m.PeriodStart,
		CurrentPeriodKey: m.CurrentPeriodKey,
		History:          history,
		PlanChangeLog:    planChanges,
	}
}

// UsageAccountModelFromEntity creates a model from a domain entity
func UsageAccountModelFromEntity(a *metering.UsageAccount) *UsageAccountModel {
	historyBytes, _ := json.Marshal(a.History)
	if historyBytes == nil {
		historyBytes = []byte("[]")
	}
	planChangeBytes, _ := json.Marshal(a.PlanChangeLog)
	if planChangeBytes == nil {
		planChangeBytes = []byte("[]")
	}

	return &UsageAccountModel{
		ID:               a.ID,
		TenantID:         a.TenantID,
		CreatedBy:        a.CreatedBy,
		Plan:             a.Plan.String(),
		AnalysisCount:    a.Counts[metering.ResourceKindAnalysis],
		GenerationCount:  a.Counts[metering.ResourceKindGeneration],
		OCRCount:         a.Counts[metering.ResourceKindOCR],
		PeriodStart:      a.PeriodStart,
		CurrentPeriodKey: a.CurrentPeriodKey,
		History:          historyBytes,
		PlanChangeLog:    planChangeBytes,
		Version:          a.Version,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// UsageAccountRepository implements the metering.UsageAccountRepository
// interface using GORM
type UsageAccountRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewUsageAccountRepository creates a new usage account repository
func NewUsageAccountRepository(db *gorm.DB) *UsageAccountRepository {
	return &UsageAccountRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *UsageAccountRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByTenant retrieves the account owned by a tenant
func (r *UsageAccountRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.UsageAccount, error) {
	var model UsageAccountModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// GetOrCreate retrieves the account for a tenant, creating it with
// free-plan defaults if it does not exist yet. Concurrent callers race on
// the tenant_id unique index; the loser of the race falls back to reading
// the winner's row.
func (r *UsageAccountRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID, now time.Time) (*metering.UsageAccount, error) {
	account, err := r.FindByTenant(ctx, tenantID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	account, err = metering.NewUsageAccount(tenantID, now)
	if err != nil {
		return nil, err
	}

	model := UsageAccountModelFromEntity(account)
	created := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}},
				DoNothing: true,
			}).
			Create(model)
		if result.Error != nil {
			return result.Error
		}
		created = result.RowsAffected > 0
		if created {
			return r.saveEventsToOutbox(ctx, tx, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// If the row wasn't created (conflict), fetch the existing one
	if !created {
		return r.FindByTenant(ctx, tenantID)
	}
	return account, nil
}

// Save persists a new account
func (r *UsageAccountRepository) Save(ctx context.Context, account *metering.UsageAccount) error {
	model := UsageAccountModelFromEntity(account)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock persists account changes using optimistic locking. The
// update only lands when the stored row still carries the version the
// aggregate was loaded with.
func (r *UsageAccountRepository) SaveWithLock(ctx context.Context, account *metering.UsageAccount) error {
	model := UsageAccountModelFromEntity(account)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&UsageAccountModel{}).
			Where("id = ? AND version = ?", model.ID, model.Version-1).
			Updates(map[string]interface{}{
				"plan":               model.Plan,
				"analysis_count":     model.AnalysisCount,
				"generation_count":   model.GenerationCount,
				"ocr_count":          model.OCRCount,
				"period_start":       model.PeriodStart,
				"current_period_key": model.CurrentPeriodKey,
				"history":            model.History,
				"plan_change_log":    model.PlanChangeLog,
				"version":            model.Version,
				"updated_at":         model.UpdatedAt,
			})

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Usage account was modified by another transaction")
		}
		return r.saveEventsToOutbox(ctx, tx, account)
	})
}

// saveEventsToOutbox writes the aggregate's pending domain events to the
// outbox within the given transaction, so state change and event delivery
// commit or roll back together. A nil saver means events are dropped at
// this layer and delivery is the caller's problem.
func (r *UsageAccountRepository) saveEventsToOutbox(ctx context.Context, tx *gorm.DB, account *metering.UsageAccount) error {
	if r.outboxSaver == nil {
		return nil
	}
	events := account.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

// FindAll retrieves all accounts ordered by creation time, paginated
func (r *UsageAccountRepository) FindAll(ctx context.Context, offset, limit int) ([]*metering.UsageAccount, error) {
	var models []UsageAccountModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	accounts := make([]*metering.UsageAccount, len(models))
	for i := range models {
		accounts[i] = models[i].ToEntity()
	}
	return accounts, nil
}

// FindStale retrieves accounts whose accounting period differs from
// periodKey, paginated. Used by the monthly rollover sweep.
func (r *UsageAccountRepository) FindStale(ctx context.Context, periodKey string, offset, limit int) ([]*metering.UsageAccount, error) {
	var models []UsageAccountModel
	if err := r.db.WithContext(ctx).
		Where("current_period_key <> ?", periodKey).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	accounts := make([]*metering.UsageAccount, len(models))
	for i := range models {
		accounts[i] = models[i].ToEntity()
	}
	return accounts, nil
}

// CountAll returns the total number of accounts
func (r *UsageAccountRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UsageAccountModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes the account owned by a tenant
func (r *UsageAccountRepository) Delete(ctx context.Context, tenantID uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&UsageAccountModel{}, "tenant_id = ?", tenantID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure UsageAccountRepository implements metering.UsageAccountRepository
var _ metering.UsageAccountRepository = (*UsageAccountRepository)(nil)
