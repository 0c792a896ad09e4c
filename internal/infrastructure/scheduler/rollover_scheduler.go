package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	appmetering "github.com/documind/backend/internal/application/metering"
	"go.uber.org/zap"
)

// cronTickerInterval is the interval at which the cron scheduler checks for execution
const cronTickerInterval = 1 * time.Minute

// RolloverRunner runs the monthly usage rollover sweep
type RolloverRunner interface {
	RolloverAllStale(ctx context.Context) (*appmetering.RolloverSweepResult, error)
}

// Ensure RolloverService satisfies RolloverRunner
var _ RolloverRunner = (*appmetering.RolloverService)(nil)

// RolloverSchedulerConfig holds configuration for the daily rollover sweep
type RolloverSchedulerConfig struct {
	// Enabled indicates if the rollover scheduler is enabled
	Enabled bool
	// CronHour is the hour (0-23) to run the daily sweep
	CronHour int
	// CronMinute is the minute (0-59) to run the daily sweep
	CronMinute int
	// DailyCronSchedule is the cron expression (parsed to extract hour/minute)
	DailyCronSchedule string
}

// DefaultRolloverSchedulerConfig returns default rollover scheduler configuration.
// Defaults to running at 00:15 daily, shortly after a usage period can flip.
func DefaultRolloverSchedulerConfig() RolloverSchedulerConfig {
	return RolloverSchedulerConfig{
		Enabled:           true,
		CronHour:          0,
		CronMinute:        15,
		DailyCronSchedule: "15 0 * * *",
	}
}

// ParseCronSchedule parses a cron expression "minute hour * * *" to extract hour and minute
// Returns defaults (00:15) if parsing fails or expression is empty
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	// Default values
	hour = 0
	minute = 15

	if cronExpr == "" {
		return hour, minute, nil
	}

	// Use strings.Fields for simple whitespace splitting
	parts := strings.Fields(cronExpr)

	if len(parts) < 2 {
		return hour, minute, nil
	}

	// Parse minute
	if parts[0] != "*" {
		if val, parseErr := parseIntOrDefault(parts[0], 15); parseErr == nil {
			minute = val
		}
	}

	// Parse hour
	if parts[1] != "*" {
		if val, parseErr := parseIntOrDefault(parts[1], 0); parseErr == nil {
			hour = val
		}
	}

	// Validate ranges
	if minute < 0 || minute > 59 {
		return 0, 15, fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	if hour < 0 || hour > 23 {
		return 0, 15, fmt.Errorf("hour must be 0-23, got %d", hour)
	}

	return hour, minute, nil
}

// parseIntOrDefault parses an int string or returns default
func parseIntOrDefault(s string, defaultVal int) (int, error) {
	if s == "" || s == "*" {
		return defaultVal, nil
	}
	var val int
	for _, c := range s {
		if c < '0' || c > '9' {
			return defaultVal, ErrInvalidConfig
		}
		val = val*10 + int(c-'0')
	}
	return val, nil
}

// RolloverScheduler runs the monthly usage rollover sweep on a daily cron.
// Accounts roll over lazily on first touch; the sweep catches tenants that
// were idle across a period boundary so their history stays current.
type RolloverScheduler struct {
	config   RolloverSchedulerConfig
	rollover RolloverRunner
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Last execution tracking
	lastRunDate string // which date we last ran for, guards double fires
	lastRunAt   *time.Time
	nextRunAt   *time.Time
}

// NewRolloverScheduler creates a new rollover scheduler
func NewRolloverScheduler(
	config RolloverSchedulerConfig,
	rollover RolloverRunner,
	logger *zap.Logger,
) *RolloverScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverScheduler{
		config:   config,
		rollover: rollover,
		logger:   logger,
	}
}

// Start starts the rollover scheduler
func (s *RolloverScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Calculate next run time
	s.calculateNextRunTime()

	// Start the cron ticker
	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Rollover scheduler started",
		zap.Int("cron_hour", s.config.CronHour),
		zap.Int("cron_minute", s.config.CronMinute),
		zap.Timep("next_run_at", s.nextRunAt),
	)

	return nil
}

// Stop stops the rollover scheduler
func (s *RolloverScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	// Cancel the cron loop
	if s.cancel != nil {
		s.cancel()
	}

	// Wait for cron loop to finish
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Rollover scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Rollover scheduler stop timed out")
		return ctx.Err()
	}
}

// cronLoop runs the main cron loop
func (s *RolloverScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	// Use a ticker that checks every minute for cron execution
	ticker := time.NewTicker(cronTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.runRollover(ctx)
				s.calculateNextRunTime()
			}
		}
	}
}

// shouldRun checks if the cron should run at the given time
func (s *RolloverScheduler) shouldRun(now time.Time) bool {
	if now.Hour() != s.config.CronHour || now.Minute() != s.config.CronMinute {
		return false
	}

	// Skip if we already ran today
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunDate != now.Format("2006-01-02")
}

// calculateNextRunTime calculates the next run time
func (s *RolloverScheduler) calculateNextRunTime() {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.CronHour, s.config.CronMinute, 0, 0, now.Location())

	// If we've already passed today's run time, schedule for tomorrow
	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}

	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()
}

// runRollover runs the rollover sweep across all stale accounts
func (s *RolloverScheduler) runRollover(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.lastRunDate = now.Format("2006-01-02")
	s.mu.Unlock()

	s.logger.Info("Starting monthly usage rollover sweep")

	result, err := s.rollover.RolloverAllStale(ctx)
	if err != nil {
		s.logger.Error("Rollover sweep failed", zap.Error(err))
		return
	}

	s.logger.Info("Rollover sweep finished",
		zap.String("period_key", result.PeriodKey),
		zap.Int("total_accounts", result.TotalAccounts),
		zap.Int("rolled_over", result.RolledOver),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
}

// TriggerImmediateRollover triggers a sweep outside the daily schedule
// Note: Uses background context to avoid premature cancellation when the HTTP request completes
func (s *RolloverScheduler) TriggerImmediateRollover() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	go s.runRollover(context.Background())
	return nil
}

// GetStatus returns the current status of the rollover scheduler
func (s *RolloverScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":     s.config.Enabled,
		"is_running":  s.isRunning,
		"cron_hour":   s.config.CronHour,
		"cron_minute": s.config.CronMinute,
		"last_run_at": s.lastRunAt,
		"next_run_at": s.nextRunAt,
	}
}

// GetNextRunAt returns when the next scheduled run will occur
func (s *RolloverScheduler) GetNextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// GetLastRunAt returns when the last run occurred
func (s *RolloverScheduler) GetLastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}
