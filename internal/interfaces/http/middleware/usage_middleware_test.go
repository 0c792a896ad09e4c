package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/documind/backend/internal/domain/metering"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockUsageEventRepository is a mock implementation of metering.UsageEventRepository
type MockUsageEventRepository struct {
	mock.Mock
	mu          sync.Mutex
	savedEvents []*metering.UsageEvent
}

func NewMockUsageEventRepository() *MockUsageEventRepository {
	return &MockUsageEventRepository{
		savedEvents: make([]*metering.UsageEvent, 0),
	}
}

func (m *MockUsageEventRepository) Save(ctx context.Context, event *metering.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedEvents = append(m.savedEvents, event)
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockUsageEventRepository) SaveBatch(ctx context.Context, events []*metering.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedEvents = append(m.savedEvents, events...)
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockUsageEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*metering.UsageEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metering.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*metering.UsageEvent, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metering.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) ([]*metering.UsageEvent, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*metering.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageEventRepository) SumByTenantAndKind(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, periodKey string) (int64, error) {
	args := m.Called(ctx, tenantID, kind, periodKey)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageEventRepository) GetSavedEvents() []*metering.UsageEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*metering.UsageEvent, len(m.savedEvents))
	copy(result, m.savedEvents)
	return result
}

// Test helper functions

func createTestTenantID() uuid.UUID {
	return uuid.MustParse("11111111-1111-1111-1111-111111111111")
}

func newTestUsageEvent(t *testing.T, tenantID uuid.UUID) *metering.UsageEvent {
	t.Helper()
	event, err := metering.NewUsageEvent(tenantID, metering.ResourceKindOCR, 1, "2024-03", time.Now())
	require.NoError(t, err)
	return event
}

// TestDefaultUsageTrackerConfig tests the default configuration
func TestDefaultUsageTrackerConfig(t *testing.T) {
	cfg := DefaultUsageTrackerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 10000, cfg.BufferSize)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.FlushInterval)
}

// TestNewUsageTracker tests creating a new usage tracker
func TestNewUsageTracker(t *testing.T) {
	repo := NewMockUsageEventRepository()
	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()

	tracker, err := NewUsageTracker(cfg, repo)

	require.NoError(t, err)
	assert.NotNil(t, tracker)
	assert.False(t, tracker.IsRunning())
}

// TestUsageTrackerStartStop tests starting and stopping the tracker
func TestUsageTrackerStartStop(t *testing.T) {
	repo := NewMockUsageEventRepository()
	repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()
	cfg.FlushInterval = 100 * time.Millisecond

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	// Start the tracker
	tracker.Start()
	assert.True(t, tracker.IsRunning())

	// Starting again should be a no-op
	tracker.Start()
	assert.True(t, tracker.IsRunning())

	// Stop the tracker
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = tracker.Stop(ctx)
	assert.NoError(t, err)
	assert.False(t, tracker.IsRunning())

	// Stopping again should be a no-op
	err = tracker.Stop(ctx)
	assert.NoError(t, err)
}

// TestUsageTrackerTrack tests tracking usage events
func TestUsageTrackerTrack(t *testing.T) {
	repo := NewMockUsageEventRepository()
	repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()
	cfg.FlushInterval = 100 * time.Millisecond
	cfg.BatchSize = 5

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	tracker.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracker.Stop(ctx)
	}()

	tenantID := createTestTenantID()

	// Track some events
	for i := 0; i < 10; i++ {
		assert.True(t, tracker.Track(newTestUsageEvent(t, tenantID)))
	}

	// Wait for batch to be written
	time.Sleep(300 * time.Millisecond)

	// Verify events were saved
	savedEvents := repo.GetSavedEvents()
	assert.GreaterOrEqual(t, len(savedEvents), 5)
}

// TestUsageTrackerBufferFull tests behavior when the buffer is full
func TestUsageTrackerBufferFull(t *testing.T) {
	repo := NewMockUsageEventRepository()
	// Don't set up SaveBatch expectation - we want the buffer to fill up

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()
	cfg.BufferSize = 5
	cfg.FlushInterval = 10 * time.Second // Long interval to prevent flushing
	cfg.BatchSize = 100                  // Large batch size to prevent flushing

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	tracker.Start()
	defer func() {
		repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracker.Stop(ctx)
	}()

	tenantID := createTestTenantID()

	// Fill the buffer
	for i := 0; i < 5; i++ {
		tracker.Track(newTestUsageEvent(t, tenantID))
	}

	// Next track should fail (buffer full)
	assert.False(t, tracker.Track(newTestUsageEvent(t, tenantID)))
}

// TestUsageTrackerStopDrainsBuffer tests that Stop flushes buffered events
func TestUsageTrackerStopDrainsBuffer(t *testing.T) {
	repo := NewMockUsageEventRepository()
	repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()
	cfg.FlushInterval = 10 * time.Minute // Only the drain should write
	cfg.BatchSize = 100

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	tracker.Start()

	tenantID := createTestTenantID()
	for i := 0; i < 7; i++ {
		require.True(t, tracker.Track(newTestUsageEvent(t, tenantID)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tracker.Stop(ctx))

	assert.Len(t, repo.GetSavedEvents(), 7)
}

// TestUsageTrackerSaveBuffered tests the repository facade's async path
func TestUsageTrackerSaveBuffered(t *testing.T) {
	repo := NewMockUsageEventRepository()
	repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()
	cfg.FlushInterval = 10 * time.Minute
	cfg.BatchSize = 100

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	tracker.Start()

	tenantID := createTestTenantID()
	require.NoError(t, tracker.Save(context.Background(), newTestUsageEvent(t, tenantID)))

	// Not yet flushed; the event sits in the buffer
	assert.Empty(t, repo.GetSavedEvents())
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tracker.Stop(ctx))

	assert.Len(t, repo.GetSavedEvents(), 1)
}

// TestUsageTrackerSaveWriteThrough tests that Save falls back to a
// synchronous write when the tracker is not running
func TestUsageTrackerSaveWriteThrough(t *testing.T) {
	repo := NewMockUsageEventRepository()
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	// Tracker never started
	tenantID := createTestTenantID()
	require.NoError(t, tracker.Save(context.Background(), newTestUsageEvent(t, tenantID)))

	assert.Len(t, repo.GetSavedEvents(), 1)
	repo.AssertExpectations(t)
}

// TestUsageTrackerReadsDelegate tests that reads pass through to the
// wrapped repository
func TestUsageTrackerReadsDelegate(t *testing.T) {
	repo := NewMockUsageEventRepository()
	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	tenantID := createTestTenantID()
	event := newTestUsageEvent(t, tenantID)

	repo.On("FindByIdempotencyKey", mock.Anything, tenantID, "req-1").Return(event, nil)
	repo.On("SumByTenantAndKind", mock.Anything, tenantID, metering.ResourceKindOCR, "2024-03").Return(int64(4), nil)

	found, err := tracker.FindByIdempotencyKey(context.Background(), tenantID, "req-1")
	require.NoError(t, err)
	assert.Equal(t, event, found)

	sum, err := tracker.SumByTenantAndKind(context.Background(), tenantID, metering.ResourceKindOCR, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum)

	repo.AssertExpectations(t)
}

// TestUsageTrackerStats tests getting tracker statistics
func TestUsageTrackerStats(t *testing.T) {
	repo := NewMockUsageEventRepository()
	repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()
	cfg.BufferSize = 100

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	stats := tracker.Stats()
	assert.Equal(t, 0, stats.BufferSize)
	assert.Equal(t, 100, stats.BufferCapacity)
	assert.Equal(t, 0.0, stats.BufferUsage)
	assert.False(t, stats.Running)

	tracker.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracker.Stop(ctx)
	}()

	stats = tracker.Stats()
	assert.True(t, stats.Running)
}

// TestUsageTrackerConcurrentTracking tests tracking from many goroutines
func TestUsageTrackerConcurrentTracking(t *testing.T) {
	repo := NewMockUsageEventRepository()
	repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	cfg := DefaultUsageTrackerConfig()
	cfg.Logger = zap.NewNop()
	cfg.FlushInterval = 100 * time.Millisecond
	cfg.BatchSize = 10
	cfg.BufferSize = 1000

	tracker, err := NewUsageTracker(cfg, repo)
	require.NoError(t, err)

	tracker.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracker.Stop(ctx)
	}()

	tenantID := createTestTenantID()

	// Track events concurrently
	var wg sync.WaitGroup
	var successCount atomic.Int64

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event, err := metering.NewUsageEvent(tenantID, metering.ResourceKindAnalysis, 1, "2024-03", time.Now())
			if err != nil {
				return
			}
			if tracker.Track(event) {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// All events should have been tracked
	assert.Equal(t, int64(100), successCount.Load())

	// Wait for batches to be written
	time.Sleep(500 * time.Millisecond)

	// Verify events were saved
	savedEvents := repo.GetSavedEvents()
	assert.GreaterOrEqual(t, len(savedEvents), 50) // At least half should be saved
}
