package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UsageAccountRepository defines the interface for persisting usage accounts.
// Implementations must honor optimistic concurrency: SaveWithLock succeeds
// only when the stored row still carries the version the aggregate was
// loaded with.
type UsageAccountRepository interface {
	// FindByTenant retrieves the account owned by a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*UsageAccount, error)

	// GetOrCreate retrieves the account for a tenant, creating it with
	// free-plan defaults if it does not exist yet. now determines the
	// initial accounting period when a new account is created. Safe to
	// call concurrently for the same tenant.
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, now time.Time) (*UsageAccount, error)

	// Save persists a new account
	Save(ctx context.Context, account *UsageAccount) error

	// SaveWithLock persists account changes using optimistic locking.
	// Returns shared.ErrConcurrencyConflict (wrapped in a domain error)
	// when the stored version no longer matches.
	SaveWithLock(ctx context.Context, account *UsageAccount) error

	// FindAll retrieves all accounts, paginated
	FindAll(ctx context.Context, offset, limit int) ([]*UsageAccount, error)

	// FindStale retrieves accounts whose accounting period differs from
	// periodKey, paginated. Used by the monthly rollover sweep.
	FindStale(ctx context.Context, periodKey string, offset, limit int) ([]*UsageAccount, error)

	// CountAll returns the total number of accounts
	CountAll(ctx context.Context) (int64, error)

	// Delete removes the account owned by a tenant
	Delete(ctx context.Context, tenantID uuid.UUID) error
}

// UsageEventRepository defines the interface for persisting and querying
// usage events
type UsageEventRepository interface {
	// Save persists a new usage event
	Save(ctx context.Context, event *UsageEvent) error

	// SaveBatch persists multiple usage events in a single transaction
	SaveBatch(ctx context.Context, events []*UsageEvent) error

	// FindByID retrieves a usage event by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*UsageEvent, error)

	// FindByIdempotencyKey retrieves the event recorded under a tenant's
	// dedup key, or nil if none exists
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*UsageEvent, error)

	// FindByTenant retrieves usage events for a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter UsageEventFilter) ([]*UsageEvent, error)

	// CountByTenant counts usage events for a tenant
	CountByTenant(ctx context.Context, tenantID uuid.UUID, filter UsageEventFilter) (int64, error)

	// SumByTenantAndKind totals the quantity recorded for a tenant, kind
	// and accounting period. Used to reconcile counters against events.
	SumByTenantAndKind(ctx context.Context, tenantID uuid.UUID, kind ResourceKind, periodKey string) (int64, error)

	// DeleteOlderThan removes usage events older than the specified time
	// (for data retention)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// UsageEventFilter defines filtering options for usage event queries
type UsageEventFilter struct {
	Kinds      []ResourceKind // Filter by resource kinds
	PeriodKey  string         // Filter by accounting period
	SourceType string         // Filter by source type
	UserID     *uuid.UUID     // Filter by user
	StartTime  *time.Time     // Filter events from this time
	EndTime    *time.Time     // Filter events until this time
	Page       int            // Page number (1-based)
	PageSize   int            // Number of events per page
	OrderBy    string         // Field to order by
	OrderDir   string         // Order direction (asc/desc)
}

// DefaultUsageEventFilter returns a filter with default values
func DefaultUsageEventFilter() UsageEventFilter {
	return UsageEventFilter{
		Page:     1,
		PageSize: 100,
		OrderBy:  "recorded_at",
		OrderDir: "desc",
	}
}

// WithKinds sets the resource kinds filter
func (f UsageEventFilter) WithKinds(kinds ...ResourceKind) UsageEventFilter {
	f.Kinds = kinds
	return f
}

// WithPeriodKey sets the accounting period filter
func (f UsageEventFilter) WithPeriodKey(periodKey string) UsageEventFilter {
	f.PeriodKey = periodKey
	return f
}

// WithTimeRange sets the time range for the filter
func (f UsageEventFilter) WithTimeRange(start, end time.Time) UsageEventFilter {
	f.StartTime = &start
	f.EndTime = &end
	return f
}

// WithPagination sets pagination options
func (f UsageEventFilter) WithPagination(page, pageSize int) UsageEventFilter {
	f.Page = page
	f.PageSize = pageSize
	return f
}
