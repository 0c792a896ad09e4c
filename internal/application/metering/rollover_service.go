package metering

import (
	"context"
	"time"

	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RolloverServiceConfig contains configuration for RolloverService
type RolloverServiceConfig struct {
	BatchSize      int           // Accounts fetched per page during a sweep
	MaxSaveRetries int           // Retries per account on optimistic lock conflicts
	RetryBaseDelay time.Duration // Base delay between retries (exponential backoff)
}

// DefaultRolloverServiceConfig returns default configuration
func DefaultRolloverServiceConfig() RolloverServiceConfig {
	return RolloverServiceConfig{
		BatchSize:      100,
		MaxSaveRetries: 5,
		RetryBaseDelay: 20 * time.Millisecond,
	}
}

// RolloverService closes stale accounting periods. It is the scheduled
// counterpart of the lazy rollover performed on account access: a tenant
// that stays idle across a month boundary still gets its period closed,
// so history stays complete without waiting for the next request.
//
// It must share its AccountLocks instance with MeteringService so a
// sweep never interleaves with an increment on the same account.
type RolloverService struct {
	accountRepo    metering.UsageAccountRepository
	eventPublisher shared.EventPublisher
	locks          *AccountLocks
	clock          metering.Clock
	logger         *zap.Logger
	config         RolloverServiceConfig
}

// NewRolloverService creates a new RolloverService
func NewRolloverService(
	accountRepo metering.UsageAccountRepository,
	locks *AccountLocks,
	clock metering.Clock,
	logger *zap.Logger,
	config RolloverServiceConfig,
) *RolloverService {
	if clock == nil {
		clock = metering.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = NewAccountLocks()
	}
	defaults := DefaultRolloverServiceConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxSaveRetries <= 0 {
		config.MaxSaveRetries = defaults.MaxSaveRetries
	}
	return &RolloverService{
		accountRepo: accountRepo,
		locks:       locks,
		clock:       clock,
		logger:      logger,
		config:      config,
	}
}

// SetEventPublisher sets the publisher for domain events
func (s *RolloverService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RolloverTenant closes the tenant's accounting period if it is stale.
// Returns true when a rollover happened, false when the account was
// already in the current period.
func (s *RolloverService) RolloverTenant(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	if tenantID == uuid.Nil {
		return false, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	now := s.clock.Now()
	periodKey := metering.PeriodKeyFor(now)

	for attempt := 0; attempt <= s.config.MaxSaveRetries; attempt++ {
		account, err := s.accountRepo.FindByTenant(ctx, tenantID)
		if err != nil {
			return false, err
		}
		if !account.NeedsRollover(periodKey) {
			return false, nil
		}

		closed := account.CurrentPeriodKey
		archived := account.ResetMonthlyUsage(periodKey, now)
		err = s.accountRepo.SaveWithLock(ctx, account)
		if err == nil {
			s.publishDomainEvents(ctx, account)
			s.logger.Info("Usage period rolled over",
				zap.String("tenant_id", tenantID.String()),
				zap.String("closed_period", closed),
				zap.String("new_period", periodKey),
				zap.Bool("archived", archived != nil))
			return true, nil
		}
		if !isOptimisticLockConflict(err) {
			return false, err
		}
		s.backoff(ctx, attempt)
	}
	return false, shared.ErrConcurrencyConflict
}

// RolloverAllStale sweeps every account whose accounting period lags the
// current month and rolls it over. Failed accounts are reported in the
// result and left for the next sweep.
func (s *RolloverService) RolloverAllStale(ctx context.Context) (*RolloverSweepResult, error) {
	now := s.clock.Now()
	periodKey := metering.PeriodKeyFor(now)

	s.logger.Info("Starting usage period rollover sweep",
		zap.String("period_key", periodKey))

	result := &RolloverSweepResult{
		PeriodKey: periodKey,
		StartedAt: now,
		Errors:    make([]RolloverError, 0),
	}

	// Rolled-over accounts drop out of the stale set, so each page is
	// fetched at an offset that only skips accounts that failed and
	// therefore remain stale
	offset := 0
	for {
		accounts, err := s.accountRepo.FindStale(ctx, periodKey, offset, s.config.BatchSize)
		if err != nil {
			s.logger.Error("Failed to fetch stale accounts", zap.Error(err))
			return result, shared.NewDomainError("FETCH_FAILED", "Failed to fetch stale usage accounts")
		}
		if len(accounts) == 0 {
			break
		}

		failedInPage := 0
		for _, account := range accounts {
			result.TotalAccounts++
			rolled, err := s.RolloverTenant(ctx, account.TenantID)
			switch {
			case err != nil:
				result.Failed++
				failedInPage++
				result.Errors = append(result.Errors, RolloverError{
					TenantID: account.TenantID,
					Error:    err.Error(),
				})
				s.logger.Warn("Failed to roll over account",
					zap.String("tenant_id", account.TenantID.String()),
					zap.Error(err))
			case rolled:
				result.RolledOver++
			default:
				// Already rolled over by a concurrent request
				result.Skipped++
			}
		}
		offset += failedInPage
	}

	s.logger.Info("Usage period rollover sweep completed",
		zap.String("period_key", periodKey),
		zap.Int("total", result.TotalAccounts),
		zap.Int("rolled_over", result.RolledOver),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}

// publishDomainEvents publishes pending aggregate events
func (s *RolloverService) publishDomainEvents(ctx context.Context, account *metering.UsageAccount) {
	if s.eventPublisher == nil {
		account.ClearDomainEvents()
		return
	}
	events := account.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	account.ClearDomainEvents()
}

// backoff sleeps with exponential backoff unless the context is done
func (s *RolloverService) backoff(ctx context.Context, attempt int) {
	if s.config.RetryBaseDelay <= 0 {
		return
	}
	delay := s.config.RetryBaseDelay * time.Duration(1<<uint(attempt))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// RolloverSweepResult contains the result of a rollover sweep
type RolloverSweepResult struct {
	PeriodKey     string          `json:"period_key"`
	StartedAt     time.Time       `json:"started_at"`
	TotalAccounts int             `json:"total_accounts"`
	RolledOver    int             `json:"rolled_over"`
	Skipped       int             `json:"skipped"`
	Failed        int             `json:"failed"`
	Errors        []RolloverError `json:"errors,omitempty"`
}

// RolloverError contains error information for a failed rollover
type RolloverError struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Error    string    `json:"error"`
}
