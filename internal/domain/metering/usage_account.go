package metering

import (
	"time"

	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultPlanChangeReason is recorded when a plan change is requested
// without an explicit reason.
const DefaultPlanChangeReason = "plan_change"

// PeriodSnapshot is an archived accounting period. It captures the final
// counter values and the plan that was active when the period closed.
type PeriodSnapshot struct {
	PeriodKey string                 `json:"period_key"`
	Counts    map[ResourceKind]int64 `json:"counts"`
	Plan      Plan                   `json:"plan"`
}

// PlanChange is a single entry in the plan change audit log
type PlanChange struct {
	Plan      Plan      `json:"plan"`
	ChangedAt time.Time `json:"changed_at"`
	Reason    string    `json:"reason"`
}

// PlanChangeResult reports the transition performed by UpdatePlan
type PlanChangeResult struct {
	OldPlan Plan
	NewPlan Plan
}

// QuotaCheckResult represents the outcome of checking one resource kind
// against the account's plan limit
type QuotaCheckResult struct {
	Kind      ResourceKind
	Allowed   bool
	Used      int64
	Limit     int64
	Remaining int64
}

// IsUnlimited returns true if the checked kind has no cap under the plan
func (r QuotaCheckResult) IsUnlimited() bool {
	return r.Limit == UnlimitedUsage
}

// UsageAccount tracks one tenant's metered usage for the current
// accounting period. It is the aggregate root for quota operations.
// There is exactly one account per tenant.
//
// Plan limits are never stored on the account; they are derived from the
// plan through the shared catalog, so limits can never drift out of sync
// with the plan. Period boundaries are supplied by callers so the
// aggregate itself never reads the wall clock for accounting decisions.
type UsageAccount struct {
	shared.TenantAggregateRoot
	Plan             Plan
	Counts           map[ResourceKind]int64
	PeriodStart      time.Time
	CurrentPeriodKey string
	History          []PeriodSnapshot
	PlanChangeLog    []PlanChange
}

// NewUsageAccount creates a usage account for a tenant with free-plan
// defaults and zeroed counters. now determines the initial accounting
// period.
func NewUsageAccount(tenantID uuid.UUID, now time.Time) (*UsageAccount, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	account := &UsageAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Plan:                PlanFree,
		Counts:              zeroCounts(),
		PeriodStart:         now,
		CurrentPeriodKey:    PeriodKeyFor(now),
		History:             make([]PeriodSnapshot, 0),
		PlanChangeLog:       make([]PlanChange, 0),
	}

	account.AddDomainEvent(NewUsageAccountCreatedEvent(account))
	return account, nil
}

// Limits returns the per-kind monthly limits derived from the current plan.
// Unknown plans resolve to the free tier limits.
func (a *UsageAccount) Limits() map[ResourceKind]int64 {
	return LimitsForPlan(a.Plan)
}

// LimitFor returns the monthly limit for one resource kind under the
// current plan
func (a *UsageAccount) LimitFor(kind ResourceKind) int64 {
	return LimitForPlan(a.Plan, kind)
}

// UsedFor returns the current-period counter for one resource kind
func (a *UsageAccount) UsedFor(kind ResourceKind) int64 {
	return a.Counts[kind]
}

// CheckQuota checks whether one more unit of the given kind would be
// allowed. It never modifies the account.
func (a *UsageAccount) CheckQuota(kind ResourceKind) (QuotaCheckResult, error) {
	if !kind.IsValid() {
		return QuotaCheckResult{}, &InvalidResourceKindError{Kind: kind.String()}
	}

	used := a.Counts[kind]
	limit := a.LimitFor(kind)

	result := QuotaCheckResult{
		Kind:  kind,
		Used:  used,
		Limit: limit,
	}

	if limit == UnlimitedUsage {
		result.Allowed = true
		result.Remaining = UnlimitedUsage
		return result, nil
	}

	result.Allowed = used < limit
	result.Remaining = limit - used
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}

// CanConsume checks if the given amount can be consumed without exceeding
// the plan limit. It never modifies the account.
func (a *UsageAccount) CanConsume(kind ResourceKind, count int64) bool {
	if count <= 0 {
		return false
	}
	limit := a.LimitFor(kind)
	if limit == UnlimitedUsage {
		return true
	}
	return a.Counts[kind]+count <= limit
}

// IncrementUsage consumes count units of the given kind. The whole
// increment is applied or none of it: if count units do not fit under the
// plan limit the account is left untouched and a QuotaExceededError is
// returned. On success the returned snapshot reflects the post-increment
// state.
func (a *UsageAccount) IncrementUsage(kind ResourceKind, count int64) (QuotaCheckResult, error) {
	check, err := a.CheckQuota(kind)
	if err != nil {
		return QuotaCheckResult{}, err
	}
	if count <= 0 {
		return QuotaCheckResult{}, &InvalidIncrementAmountError{Count: count}
	}

	if !check.IsUnlimited() && check.Used+count > check.Limit {
		return QuotaCheckResult{}, NewQuotaExceededError(kind, check.Limit, check.Used)
	}

	a.Counts[kind] += count
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	after, err := a.CheckQuota(kind)
	if err != nil {
		return QuotaCheckResult{}, err
	}

	a.AddDomainEvent(NewUsageRecordedEvent(a, kind, count, after.Used))
	if !after.IsUnlimited() && after.Remaining == 0 {
		a.AddDomainEvent(NewQuotaExhaustedEvent(a, kind, after.Limit))
	}
	return after, nil
}

// NeedsRollover returns true if the account's accounting period differs
// from the given period key
func (a *UsageAccount) NeedsRollover(periodKey string) bool {
	return a.CurrentPeriodKey != periodKey
}

// HasNonzeroUsage returns true if any counter is above zero
func (a *UsageAccount) HasNonzeroUsage() bool {
	for _, used := range a.Counts {
		if used > 0 {
			return true
		}
	}
	return false
}

// ResetMonthlyUsage closes the current accounting period and opens the one
// identified by newPeriodKey. The closing period is archived to History
// only when at least one counter is nonzero; all counters are then zeroed
// and the period fields are taken from the caller-supplied values.
//
// History never holds an entry for the live period, so resetting into the
// same period zeroes the counters without archiving. The archived
// snapshot is returned, or nil when nothing was archived.
func (a *UsageAccount) ResetMonthlyUsage(newPeriodKey string, now time.Time) *PeriodSnapshot {
	var archived *PeriodSnapshot
	if a.HasNonzeroUsage() && a.CurrentPeriodKey != newPeriodKey {
		a.History = append(a.History, PeriodSnapshot{
			PeriodKey: a.CurrentPeriodKey,
			Counts:    a.CountsCopy(),
			Plan:      a.Plan,
		})
		archived = &a.History[len(a.History)-1]
	}

	closedPeriodKey := a.CurrentPeriodKey
	for _, kind := range AllResourceKinds() {
		a.Counts[kind] = 0
	}
	a.CurrentPeriodKey = newPeriodKey
	a.PeriodStart = now
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewPeriodRolledOverEvent(a, closedPeriodKey, newPeriodKey, archived != nil))
	return archived
}

// UpdatePlan switches the account to a new plan and appends an entry to
// the plan change audit log. Counters are deliberately left untouched:
// after a downgrade a counter may sit above its new limit, which blocks
// further increments of that kind until the next rollover. Unknown plans
// are accepted and fall back to free tier limits. An empty reason is
// recorded as DefaultPlanChangeReason.
func (a *UsageAccount) UpdatePlan(newPlan Plan, changedAt time.Time, reason string) PlanChangeResult {
	if reason == "" {
		reason = DefaultPlanChangeReason
	}

	oldPlan := a.Plan
	a.Plan = newPlan
	a.PlanChangeLog = append(a.PlanChangeLog, PlanChange{
		Plan:      newPlan,
		ChangedAt: changedAt,
		Reason:    reason,
	})
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewPlanChangedEvent(a, oldPlan, newPlan, reason))
	return PlanChangeResult{OldPlan: oldPlan, NewPlan: newPlan}
}

// CountsCopy returns a defensive copy of the current-period counters
func (a *UsageAccount) CountsCopy() map[ResourceKind]int64 {
	counts := make(map[ResourceKind]int64, len(a.Counts))
	for kind, used := range a.Counts {
		counts[kind] = used
	}
	return counts
}

// CheckAllQuotas checks every metered kind and returns the results keyed
// by kind. It never modifies the account.
func (a *UsageAccount) CheckAllQuotas() map[ResourceKind]QuotaCheckResult {
	results := make(map[ResourceKind]QuotaCheckResult, len(AllResourceKinds()))
	for _, kind := range AllResourceKinds() {
		result, err := a.CheckQuota(kind)
		if err != nil {
			continue
		}
		results[kind] = result
	}
	return results
}

// zeroCounts returns a counter map with every metered kind at zero
func zeroCounts() map[ResourceKind]int64 {
	counts := make(map[ResourceKind]int64, len(AllResourceKinds()))
	for _, kind := range AllResourceKinds() {
		counts[kind] = 0
	}
	return counts
}
