package metering

import (
	"context"
	"errors"
	"time"

	"github.com/documind/backend/internal/domain/identity"
	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordUsageInput contains input for recording a metered action
type RecordUsageInput struct {
	TenantID       uuid.UUID
	Kind           metering.ResourceKind
	Count          int64          // Units to consume (callers default absent counts to 1)
	SourceType     string         // Source of the usage (e.g., "ocr_job")
	SourceID       string         // ID of the source entity (optional)
	IdempotencyKey string         // Client-supplied dedup key (optional)
	UserID         *uuid.UUID     // User who triggered the usage (optional)
	IPAddress      string         // Request IP (optional)
	UserAgent      string         // Request user agent (optional)
	Metadata       map[string]any // Additional event context (optional)
}

// RecordUsageResult contains the outcome of a successful RecordUsage call
type RecordUsageResult struct {
	Snapshot     metering.QuotaCheckResult // Post-increment state of the counter
	Event        *metering.UsageEvent      // The recorded usage event (nil if event storage is disabled)
	Deduplicated bool                      // True when the idempotency key matched a prior event
}

// QuotaItemDTO describes one resource kind's quota state
type QuotaItemDTO struct {
	Kind        string  `json:"kind"`
	DisplayName string  `json:"display_name"`
	Used        int64   `json:"used"`
	Limit       int64   `json:"limit"`
	Remaining   int64   `json:"remaining"`
	IsUnlimited bool    `json:"is_unlimited"`
	Percentage  float64 `json:"percentage"`
}

// QuotaOverviewDTO contains the full quota state for a tenant
type QuotaOverviewDTO struct {
	TenantID        uuid.UUID      `json:"tenant_id"`
	Plan            string         `json:"plan"`
	PlanDisplayName string         `json:"plan_display_name"`
	PeriodKey       string         `json:"period_key"`
	PeriodStart     time.Time      `json:"period_start"`
	Items           []QuotaItemDTO `json:"items"`
}

// ResetResultDTO reports the outcome of a manual period reset
type ResetResultDTO struct {
	TenantID        uuid.UUID `json:"tenant_id"`
	ClosedPeriodKey string    `json:"closed_period_key"`
	NewPeriodKey    string    `json:"new_period_key"`
	Archived        bool      `json:"archived"`
}

// MeteringServiceConfig contains configuration for MeteringService
type MeteringServiceConfig struct {
	// MaxSaveRetries bounds how often a write is retried after an
	// optimistic lock conflict with a writer in another process
	MaxSaveRetries int

	// RetryBaseDelay is the base delay between retries (exponential backoff)
	RetryBaseDelay time.Duration

	// IdempotencyRequired rejects RecordUsage calls that carry no
	// idempotency key instead of recording them un-deduplicated
	IdempotencyRequired bool
}

// DefaultMeteringServiceConfig returns default configuration
func DefaultMeteringServiceConfig() MeteringServiceConfig {
	return MeteringServiceConfig{
		MaxSaveRetries: 5,
		RetryBaseDelay: 20 * time.Millisecond,
	}
}

// MeteringService handles quota checking, usage recording, period resets
// and plan changes for usage accounts.
//
// All mutating operations serialize per tenant through AccountLocks, then
// persist through optimistic locking, so an increment observed as allowed
// is also the increment that lands: a concurrent writer in another
// process forces a reload and a fresh quota check rather than a lost
// update. A quota rejection is always reported as QuotaExceededError and
// never as a lock conflict.
type MeteringService struct {
	accountRepo    metering.UsageAccountRepository
	eventRepo      metering.UsageEventRepository
	tenantRepo     identity.TenantRepository
	eventPublisher shared.EventPublisher
	locks          *AccountLocks
	clock          metering.Clock
	logger         *zap.Logger
	config         MeteringServiceConfig
}

// NewMeteringService creates a new MeteringService. eventRepo and
// tenantRepo may be nil: without eventRepo no usage events are written
// and idempotency keys are ignored; without tenantRepo plan changes are
// not mirrored onto the tenant record.
func NewMeteringService(
	accountRepo metering.UsageAccountRepository,
	eventRepo metering.UsageEventRepository,
	tenantRepo identity.TenantRepository,
	locks *AccountLocks,
	clock metering.Clock,
	logger *zap.Logger,
	config MeteringServiceConfig,
) *MeteringService {
	if clock == nil {
		clock = metering.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = NewAccountLocks()
	}
	if config.MaxSaveRetries <= 0 {
		config.MaxSaveRetries = DefaultMeteringServiceConfig().MaxSaveRetries
	}
	return &MeteringService{
		accountRepo: accountRepo,
		eventRepo:   eventRepo,
		tenantRepo:  tenantRepo,
		locks:       locks,
		clock:       clock,
		logger:      logger,
		config:      config,
	}
}

// SetEventPublisher sets the publisher for domain events
func (s *MeteringService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// GetOrCreateAccount retrieves a tenant's usage account, creating it with
// free-plan defaults on first access. The returned account is already
// rolled into the current accounting period.
func (s *MeteringService) GetOrCreateAccount(ctx context.Context, tenantID uuid.UUID) (*metering.UsageAccount, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	return s.loadCurrentLocked(ctx, tenantID)
}

// CheckQuota checks whether one more unit of the given kind would be
// allowed for the tenant. The check itself never consumes quota.
func (s *MeteringService) CheckQuota(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind) (metering.QuotaCheckResult, error) {
	if tenantID == uuid.Nil {
		return metering.QuotaCheckResult{}, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	account, err := s.loadCurrentLocked(ctx, tenantID)
	if err != nil {
		return metering.QuotaCheckResult{}, err
	}
	return account.CheckQuota(kind)
}

// RecordUsage consumes quota for a metered action. It checks the counter
// against the plan limit and applies the whole increment atomically; on
// rejection the account is untouched and a QuotaExceededError is
// returned. A successful call also appends an immutable usage event.
//
// When input.IdempotencyKey is set and an event with that key already
// exists for the tenant, no quota is consumed and the original event is
// returned with Deduplicated set.
func (s *MeteringService) RecordUsage(ctx context.Context, input RecordUsageInput) (*RecordUsageResult, error) {
	if input.TenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if s.config.IdempotencyRequired && input.IdempotencyKey == "" {
		return nil, shared.NewDomainError("IDEMPOTENCY_KEY_REQUIRED", "An idempotency key is required for usage recording")
	}

	unlock := s.locks.Lock(input.TenantID)
	defer unlock()

	if input.IdempotencyKey != "" && s.eventRepo != nil {
		existing, err := s.eventRepo.FindByIdempotencyKey(ctx, input.TenantID, input.IdempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency lookup failed, recording without dedup",
				zap.String("tenant_id", input.TenantID.String()),
				zap.Error(err))
		} else if existing != nil {
			account, err := s.loadCurrentLocked(ctx, input.TenantID)
			if err != nil {
				return nil, err
			}
			snapshot, err := account.CheckQuota(existing.Kind)
			if err != nil {
				return nil, err
			}
			return &RecordUsageResult{Snapshot: snapshot, Event: existing, Deduplicated: true}, nil
		}
	}

	var (
		account  *metering.UsageAccount
		snapshot metering.QuotaCheckResult
	)
	saved := false
	for attempt := 0; attempt <= s.config.MaxSaveRetries; attempt++ {
		var err error
		account, err = s.loadCurrentLocked(ctx, input.TenantID)
		if err != nil {
			return nil, err
		}

		snapshot, err = account.IncrementUsage(input.Kind, input.Count)
		if err != nil {
			// Domain rejections (quota exceeded, invalid kind or count)
			// are final; only lock conflicts are retried
			return nil, err
		}

		err = s.accountRepo.SaveWithLock(ctx, account)
		if err == nil {
			saved = true
			break
		}
		if !isOptimisticLockConflict(err) {
			return nil, err
		}

		s.logger.Debug("Usage account save conflicted, retrying",
			zap.String("tenant_id", input.TenantID.String()),
			zap.Int("attempt", attempt+1))
		s.backoff(ctx, attempt)
	}
	if !saved {
		s.logger.Error("Usage increment abandoned after repeated lock conflicts",
			zap.String("tenant_id", input.TenantID.String()),
			zap.String("kind", input.Kind.String()),
			zap.Int("max_retries", s.config.MaxSaveRetries))
		return nil, shared.ErrConcurrencyConflict
	}

	s.publishDomainEvents(ctx, account)

	result := &RecordUsageResult{Snapshot: snapshot}
	if s.eventRepo != nil {
		event, err := s.buildUsageEvent(account, input)
		if err == nil {
			err = s.eventRepo.Save(ctx, event)
		}
		if err != nil {
			// The counter is authoritative; a lost event only degrades
			// reporting, so the increment still succeeds
			s.logger.Error("Failed to persist usage event",
				zap.String("tenant_id", input.TenantID.String()),
				zap.String("kind", input.Kind.String()),
				zap.Error(err))
		} else {
			result.Event = event
		}
	}

	s.logger.Debug("Usage recorded",
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("kind", input.Kind.String()),
		zap.Int64("count", input.Count),
		zap.Int64("used", snapshot.Used),
		zap.Int64("remaining", snapshot.Remaining))

	return result, nil
}

// ResetMonthlyUsage manually closes the tenant's accounting period and
// opens the period containing the current clock time. Nonzero counters
// are archived to history first.
func (s *MeteringService) ResetMonthlyUsage(ctx context.Context, tenantID uuid.UUID) (*ResetResultDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	now := s.clock.Now()
	newPeriodKey := metering.PeriodKeyFor(now)

	// The account is loaded raw here, not through loadCurrentLocked, so a
	// stale period is closed by this reset and reported as such instead of
	// being consumed by the lazy rollover first
	var result *ResetResultDTO
	saved := false
	for attempt := 0; attempt <= s.config.MaxSaveRetries; attempt++ {
		account, err := s.accountRepo.GetOrCreate(ctx, tenantID, now)
		if err != nil {
			return nil, err
		}

		closed := account.CurrentPeriodKey
		archived := account.ResetMonthlyUsage(newPeriodKey, now)
		result = &ResetResultDTO{
			TenantID:        tenantID,
			ClosedPeriodKey: closed,
			NewPeriodKey:    newPeriodKey,
			Archived:        archived != nil,
		}

		err = s.accountRepo.SaveWithLock(ctx, account)
		if err == nil {
			saved = true
			s.publishDomainEvents(ctx, account)
			break
		}
		if !isOptimisticLockConflict(err) {
			return nil, err
		}
		s.backoff(ctx, attempt)
	}
	if !saved {
		return nil, shared.ErrConcurrencyConflict
	}

	s.logger.Info("Usage period reset",
		zap.String("tenant_id", tenantID.String()),
		zap.String("closed_period", result.ClosedPeriodKey),
		zap.String("new_period", result.NewPeriodKey),
		zap.Bool("archived", result.Archived))

	return result, nil
}

// UpdatePlan switches the tenant's subscription plan. Counters are left
// untouched; only the limits change. The transition is appended to the
// account's plan change log, and for known plans it is mirrored onto the
// tenant record.
func (s *MeteringService) UpdatePlan(ctx context.Context, tenantID uuid.UUID, newPlan metering.Plan, reason string) (*metering.PlanChangeResult, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	var result metering.PlanChangeResult
	err := s.saveWithRetry(ctx, tenantID, func(account *metering.UsageAccount) error {
		result = account.UpdatePlan(newPlan, s.clock.Now(), reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !newPlan.IsKnown() {
		s.logger.Warn("Unknown plan assigned, free limits apply",
			zap.String("tenant_id", tenantID.String()),
			zap.String("plan", newPlan.String()))
	}

	s.mirrorPlanToTenant(ctx, tenantID, newPlan)

	s.logger.Info("Plan updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("old_plan", result.OldPlan.String()),
		zap.String("new_plan", result.NewPlan.String()),
		zap.String("reason", reason))

	return &result, nil
}

// GetQuotaOverview returns the full quota state for a tenant: plan,
// accounting period and the per-kind usage against limits.
func (s *MeteringService) GetQuotaOverview(ctx context.Context, tenantID uuid.UUID) (*QuotaOverviewDTO, error) {
	account, err := s.GetOrCreateAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	overview := &QuotaOverviewDTO{
		TenantID:        account.TenantID,
		Plan:            account.Plan.String(),
		PlanDisplayName: account.Plan.DisplayName(),
		PeriodKey:       account.CurrentPeriodKey,
		PeriodStart:     account.PeriodStart,
		Items:           make([]QuotaItemDTO, 0, len(metering.AllResourceKinds())),
	}

	for _, kind := range metering.AllResourceKinds() {
		check, err := account.CheckQuota(kind)
		if err != nil {
			return nil, err
		}
		overview.Items = append(overview.Items, QuotaItemDTO{
			Kind:        kind.String(),
			DisplayName: kind.DisplayName(),
			Used:        check.Used,
			Limit:       check.Limit,
			Remaining:   check.Remaining,
			IsUnlimited: check.IsUnlimited(),
			Percentage:  usagePercentage(check.Used, check.Limit),
		})
	}

	return overview, nil
}

// GetHistory returns the archived accounting periods for a tenant,
// oldest first
func (s *MeteringService) GetHistory(ctx context.Context, tenantID uuid.UUID) ([]metering.PeriodSnapshot, error) {
	account, err := s.GetOrCreateAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return account.History, nil
}

// GetPlanChangeLog returns the plan change audit log for a tenant in
// chronological order
func (s *MeteringService) GetPlanChangeLog(ctx context.Context, tenantID uuid.UUID) ([]metering.PlanChange, error) {
	account, err := s.GetOrCreateAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return account.PlanChangeLog, nil
}

// ListUsageEvents returns the tenant's usage events with the given filter
func (s *MeteringService) ListUsageEvents(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) ([]*metering.UsageEvent, int64, error) {
	if s.eventRepo == nil {
		return nil, 0, shared.NewDomainError("EVENTS_DISABLED", "Usage event storage is not configured")
	}
	events, err := s.eventRepo.FindByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.eventRepo.CountByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// loadCurrentLocked loads the tenant's account and rolls it into the
// current accounting period if it is stale. The caller must hold the
// tenant's account lock.
func (s *MeteringService) loadCurrentLocked(ctx context.Context, tenantID uuid.UUID) (*metering.UsageAccount, error) {
	now := s.clock.Now()
	account, err := s.accountRepo.GetOrCreate(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	periodKey := metering.PeriodKeyFor(now)
	if !account.NeedsRollover(periodKey) {
		return account, nil
	}

	closed := account.CurrentPeriodKey
	archived := account.ResetMonthlyUsage(periodKey, now)
	if err := s.accountRepo.SaveWithLock(ctx, account); err != nil {
		if isOptimisticLockConflict(err) {
			// Another process rolled the account over first
			return s.accountRepo.GetOrCreate(ctx, tenantID, now)
		}
		return nil, err
	}
	s.publishDomainEvents(ctx, account)

	s.logger.Info("Usage period rolled over",
		zap.String("tenant_id", tenantID.String()),
		zap.String("closed_period", closed),
		zap.String("new_period", periodKey),
		zap.Bool("archived", archived != nil))

	return account, nil
}

// saveWithRetry loads the account, applies mutate and saves it, retrying
// on optimistic lock conflicts. The caller must hold the tenant's
// account lock.
func (s *MeteringService) saveWithRetry(ctx context.Context, tenantID uuid.UUID, mutate func(*metering.UsageAccount) error) error {
	for attempt := 0; attempt <= s.config.MaxSaveRetries; attempt++ {
		account, err := s.loadCurrentLocked(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := mutate(account); err != nil {
			return err
		}
		err = s.accountRepo.SaveWithLock(ctx, account)
		if err == nil {
			s.publishDomainEvents(ctx, account)
			return nil
		}
		if !isOptimisticLockConflict(err) {
			return err
		}
		s.backoff(ctx, attempt)
	}
	return shared.ErrConcurrencyConflict
}

// buildUsageEvent assembles the immutable event for a successful increment
func (s *MeteringService) buildUsageEvent(account *metering.UsageAccount, input RecordUsageInput) (*metering.UsageEvent, error) {
	event, err := metering.NewUsageEvent(
		input.TenantID,
		input.Kind,
		input.Count,
		account.CurrentPeriodKey,
		s.clock.Now(),
	)
	if err != nil {
		return nil, err
	}

	if input.SourceType != "" {
		event.WithSource(input.SourceType, input.SourceID)
	}
	if input.UserID != nil {
		event.WithUser(*input.UserID)
	}
	if input.IPAddress != "" || input.UserAgent != "" {
		event.WithRequestInfo(input.IPAddress, input.UserAgent)
	}
	if input.IdempotencyKey != "" {
		event.WithIdempotencyKey(input.IdempotencyKey)
	}
	for key, value := range input.Metadata {
		event.WithMetadata(key, value)
	}
	return event, nil
}

// mirrorPlanToTenant keeps the tenant record's plan in sync for known
// plans. Failures are logged, not propagated: the account is the source
// of truth for quota decisions.
func (s *MeteringService) mirrorPlanToTenant(ctx context.Context, tenantID uuid.UUID, newPlan metering.Plan) {
	if s.tenantRepo == nil || !newPlan.IsKnown() {
		return
	}

	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		s.logger.Warn("Plan mirror skipped, tenant lookup failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return
	}
	if err := tenant.SetPlan(identity.TenantPlan(newPlan)); err != nil {
		s.logger.Warn("Plan mirror skipped, tenant rejected plan",
			zap.String("tenant_id", tenantID.String()),
			zap.String("plan", newPlan.String()),
			zap.Error(err))
		return
	}
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		s.logger.Warn("Plan mirror failed to save tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}
}

// publishDomainEvents publishes pending aggregate events
func (s *MeteringService) publishDomainEvents(ctx context.Context, account *metering.UsageAccount) {
	if s.eventPublisher == nil {
		account.ClearDomainEvents()
		return
	}
	events := account.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish errors are logged by the event bus, not propagated
	_ = s.eventPublisher.Publish(ctx, events...)
	account.ClearDomainEvents()
}

// backoff sleeps with exponential backoff unless the context is done
func (s *MeteringService) backoff(ctx context.Context, attempt int) {
	if s.config.RetryBaseDelay <= 0 {
		return
	}
	delay := s.config.RetryBaseDelay * time.Duration(1<<uint(attempt))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// isOptimisticLockConflict reports whether err is a version conflict from
// the repository
func isOptimisticLockConflict(err error) bool {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == "OPTIMISTIC_LOCK_FAILED" || domainErr.Code == "CONCURRENCY_CONFLICT"
	}
	return false
}

// usagePercentage computes how much of the limit is consumed (0-100+).
// Unlimited kinds report zero.
func usagePercentage(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}
