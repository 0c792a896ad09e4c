package metering

import "github.com/documind/backend/internal/domain/shared"

// AggregateTypeUsageAccount is the aggregate type for usage account events
const AggregateTypeUsageAccount = "UsageAccount"

// Event types for the metering domain
const (
	EventTypeUsageAccountCreated = "UsageAccountCreated"
	EventTypeUsageRecorded       = "UsageRecorded"
	EventTypeQuotaExhausted      = "QuotaExhausted"
	EventTypePeriodRolledOver    = "UsagePeriodRolledOver"
	EventTypePlanChanged         = "PlanChanged"
)

// UsageAccountCreatedEvent is published when a usage account is created
type UsageAccountCreatedEvent struct {
	shared.BaseDomainEvent
	Plan      Plan   `json:"plan"`
	PeriodKey string `json:"period_key"`
}

// NewUsageAccountCreatedEvent creates a new UsageAccountCreatedEvent
func NewUsageAccountCreatedEvent(account *UsageAccount) *UsageAccountCreatedEvent {
	return &UsageAccountCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeUsageAccountCreated,
			AggregateTypeUsageAccount,
			account.ID,
			account.TenantID,
		),
		Plan:      account.Plan,
		PeriodKey: account.CurrentPeriodKey,
	}
}

// UsageRecordedEvent is published when an increment is applied to a counter
type UsageRecordedEvent struct {
	shared.BaseDomainEvent
	Kind      ResourceKind `json:"kind"`
	Quantity  int64        `json:"quantity"`
	UsedAfter int64        `json:"used_after"`
	PeriodKey string       `json:"period_key"`
}

// NewUsageRecordedEvent creates a new UsageRecordedEvent
func NewUsageRecordedEvent(account *UsageAccount, kind ResourceKind, quantity, usedAfter int64) *UsageRecordedEvent {
	return &UsageRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeUsageRecorded,
			AggregateTypeUsageAccount,
			account.ID,
			account.TenantID,
		),
		Kind:      kind,
		Quantity:  quantity,
		UsedAfter: usedAfter,
		PeriodKey: account.CurrentPeriodKey,
	}
}

// QuotaExhaustedEvent is published when an increment consumes the last
// remaining unit of a kind's monthly limit
type QuotaExhaustedEvent struct {
	shared.BaseDomainEvent
	Kind      ResourceKind `json:"kind"`
	Limit     int64        `json:"limit"`
	PeriodKey string       `json:"period_key"`
}

// NewQuotaExhaustedEvent creates a new QuotaExhaustedEvent
func NewQuotaExhaustedEvent(account *UsageAccount, kind ResourceKind, limit int64) *QuotaExhaustedEvent {
	return &QuotaExhaustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypeQuotaExhausted,
			AggregateTypeUsageAccount,
			account.ID,
			account.TenantID,
		),
		Kind:      kind,
		Limit:     limit,
		PeriodKey: account.CurrentPeriodKey,
	}
}

// PeriodRolledOverEvent is published when an account's accounting period
// is closed and a new one opened
type PeriodRolledOverEvent struct {
	shared.BaseDomainEvent
	ClosedPeriodKey string `json:"closed_period_key"`
	NewPeriodKey    string `json:"new_period_key"`
	Archived        bool   `json:"archived"`
}

// NewPeriodRolledOverEvent creates a new PeriodRolledOverEvent
func NewPeriodRolledOverEvent(account *UsageAccount, closedPeriodKey, newPeriodKey string, archived bool) *PeriodRolledOverEvent {
	return &PeriodRolledOverEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypePeriodRolledOver,
			AggregateTypeUsageAccount,
			account.ID,
			account.TenantID,
		),
		ClosedPeriodKey: closedPeriodKey,
		NewPeriodKey:    newPeriodKey,
		Archived:        archived,
	}
}

// PlanChangedEvent is published when an account switches plans
type PlanChangedEvent struct {
	shared.BaseDomainEvent
	OldPlan Plan   `json:"old_plan"`
	NewPlan Plan   `json:"new_plan"`
	Reason  string `json:"reason"`
}

// NewPlanChangedEvent creates a new PlanChangedEvent
func NewPlanChangedEvent(account *UsageAccount, oldPlan, newPlan Plan, reason string) *PlanChangedEvent {
	return &PlanChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			EventTypePlanChanged,
			AggregateTypeUsageAccount,
			account.ID,
			account.TenantID,
		),
		OldPlan: oldPlan,
		NewPlan: newPlan,
		Reason:  reason,
	}
}
