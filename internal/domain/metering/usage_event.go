package metering

import (
	"time"

	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UsageEvent is an immutable record of a single successful metered action.
// Events are never updated once written; corrections are made with new
// events. They feed reporting and reconciliation and are written on the
// side of the quota counters, never instead of them.
type UsageEvent struct {
	shared.BaseEntity
	TenantID       uuid.UUID    // The tenant this usage belongs to
	Kind           ResourceKind // Resource kind that was consumed
	Quantity       int64        // Units consumed (always positive)
	PeriodKey      string       // Accounting period the usage was counted in
	RecordedAt     time.Time    // When the usage occurred
	SourceType     string       // Source of the event (e.g., "ocr_job", "api_request")
	SourceID       string       // ID of the source entity (optional)
	IdempotencyKey string       // Client-supplied dedup key (optional)
	UserID         *uuid.UUID   // User who triggered the usage (optional)
	IPAddress      string       // IP address of the request (optional)
	UserAgent      string       // User agent of the request (optional)
	Metadata       Metadata     // Additional context about the usage
}

// Metadata holds additional context about a usage event
type Metadata map[string]any

// NewUsageEvent creates a new usage event with validation
func NewUsageEvent(
	tenantID uuid.UUID,
	kind ResourceKind,
	quantity int64,
	periodKey string,
	recordedAt time.Time,
) (*UsageEvent, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, &InvalidResourceKindError{Kind: kind.String()}
	}
	if quantity <= 0 {
		return nil, &InvalidIncrementAmountError{Count: quantity}
	}
	if !IsValidPeriodKey(periodKey) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period key must be of the form YYYY-MM")
	}

	return &UsageEvent{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Kind:       kind,
		Quantity:   quantity,
		PeriodKey:  periodKey,
		RecordedAt: recordedAt,
		Metadata:   make(Metadata),
	}, nil
}

// WithSource sets the source information for the usage event
func (e *UsageEvent) WithSource(sourceType, sourceID string) *UsageEvent {
	e.SourceType = sourceType
	e.SourceID = sourceID
	return e
}

// WithUser sets the user who triggered the usage
func (e *UsageEvent) WithUser(userID uuid.UUID) *UsageEvent {
	e.UserID = &userID
	return e
}

// WithRequestInfo sets request information for API-originated usage
func (e *UsageEvent) WithRequestInfo(ipAddress, userAgent string) *UsageEvent {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// WithIdempotencyKey sets the client-supplied dedup key
func (e *UsageEvent) WithIdempotencyKey(key string) *UsageEvent {
	e.IdempotencyKey = key
	return e
}

// WithMetadata adds metadata to the usage event
func (e *UsageEvent) WithMetadata(key string, value any) *UsageEvent {
	if e.Metadata == nil {
		e.Metadata = make(Metadata)
	}
	e.Metadata[key] = value
	return e
}
