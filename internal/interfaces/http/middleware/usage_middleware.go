// Package middleware provides HTTP middleware for the document service.
package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// UsageTrackerConfig holds configuration for the buffered usage event writer.
type UsageTrackerConfig struct {
	// Enabled controls whether buffered writes are active.
	Enabled bool
	// BufferSize is the size of the async write buffer.
	BufferSize int
	// BatchSize is the number of events to batch before writing.
	BatchSize int
	// FlushInterval is the maximum time to wait before flushing the buffer.
	FlushInterval time.Duration
	// MeterProvider is the OpenTelemetry meter provider for metrics.
	MeterProvider *telemetry.MeterProvider
	// Logger for tracker logging.
	Logger *zap.Logger
}

// DefaultUsageTrackerConfig returns default usage tracker configuration.
func DefaultUsageTrackerConfig() UsageTrackerConfig {
	return UsageTrackerConfig{
		Enabled:       true,
		BufferSize:    10000,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// UsageTracker is a write-behind buffer in front of the usage event store.
// Successful metered actions produce one event each; under submission
// bursts the per-event INSERTs become the bottleneck, so events are
// collected in a channel and flushed in batches by a background writer.
//
// The tracker implements metering.UsageEventRepository: writes are absorbed
// into the buffer and reads pass through to the wrapped repository, so the
// metering service can be pointed at the tracker without knowing whether
// event writes are buffered.
type UsageTracker struct {
	config     UsageTrackerConfig
	repository metering.UsageEventRepository
	buffer     chan *metering.UsageEvent
	logger     *zap.Logger
	metrics    *usageMetrics
	wg         sync.WaitGroup
	stopCh     chan struct{}
	mu         sync.RWMutex
	running    bool
}

var _ metering.UsageEventRepository = (*UsageTracker)(nil)

// usageMetrics holds OpenTelemetry metrics for the event writer.
type usageMetrics struct {
	bufferSize        metric.Int64Gauge
	batchWriteLatency *telemetry.Histogram
	batchWriteErrors  *telemetry.Counter
	eventsWritten     *telemetry.Counter
	eventsDropped     *telemetry.Counter
}

// newUsageMetrics creates OpenTelemetry metrics for the event writer.
func newUsageMetrics(meter metric.Meter) (*usageMetrics, error) {
	bufferSize, err := meter.Int64Gauge(
		"usage_event_buffer_size",
		metric.WithDescription("Current size of the usage event buffer"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	batchWriteLatency, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "usage_event_batch_write_duration_seconds",
		Description: "Latency of batch writes to the usage_events table",
		Unit:        "s",
		Boundaries:  telemetry.DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	batchWriteErrors, err := telemetry.NewCounter(
		meter,
		"usage_event_batch_write_errors_total",
		"Total number of batch write errors",
		"{error}",
	)
	if err != nil {
		return nil, err
	}

	eventsWritten, err := telemetry.NewCounter(
		meter,
		"usage_events_written_total",
		"Total number of usage events written to the database",
		"{event}",
	)
	if err != nil {
		return nil, err
	}

	eventsDropped, err := telemetry.NewCounter(
		meter,
		"usage_events_dropped_total",
		"Total number of usage events dropped due to buffer overflow",
		"{event}",
	)
	if err != nil {
		return nil, err
	}

	return &usageMetrics{
		bufferSize:        bufferSize,
		batchWriteLatency: batchWriteLatency,
		batchWriteErrors:  batchWriteErrors,
		eventsWritten:     eventsWritten,
		eventsDropped:     eventsDropped,
	}, nil
}

// NewUsageTracker creates a new usage tracker wrapping the given repository.
func NewUsageTracker(cfg UsageTrackerConfig, repo metering.UsageEventRepository) (*UsageTracker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tracker := &UsageTracker{
		config:     cfg,
		repository: repo,
		buffer:     make(chan *metering.UsageEvent, cfg.BufferSize),
		logger:     logger,
		stopCh:     make(chan struct{}),
	}

	// Initialize metrics if meter provider is available
	if cfg.MeterProvider != nil && cfg.MeterProvider.IsEnabled() {
		meter := cfg.MeterProvider.Meter("usage.tracker")
		metrics, err := newUsageMetrics(meter)
		if err != nil {
			logger.Warn("Failed to create usage metrics, continuing without metrics", zap.Error(err))
		} else {
			tracker.metrics = metrics
		}
	}

	return tracker, nil
}

// Start begins the background batch writer goroutine.
func (t *UsageTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}

	t.running = true
	t.wg.Add(1)
	go t.batchWriter()

	t.logger.Info("Usage event writer started",
		zap.Int("buffer_size", t.config.BufferSize),
		zap.Int("batch_size", t.config.BatchSize),
		zap.Duration("flush_interval", t.config.FlushInterval),
	)
}

// Stop gracefully stops the tracker, flushing remaining events.
func (t *UsageTracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.mu.Unlock()

	t.logger.Info("Stopping usage event writer...")

	// Signal the batch writer to stop
	close(t.stopCh)

	// Wait for the batch writer to finish with timeout
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Usage event writer stopped gracefully")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Usage event writer stop timed out")
		return ctx.Err()
	}
}

// batchWriter is the background goroutine that batches and writes events.
func (t *UsageTracker) batchWriter() {
	defer t.wg.Done()

	batch := make([]*metering.UsageEvent, 0, t.config.BatchSize)
	ticker := time.NewTicker(t.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		start := time.Now()
		err := t.repository.SaveBatch(ctx, batch)
		duration := time.Since(start)

		if t.metrics != nil {
			t.metrics.batchWriteLatency.RecordDuration(ctx, duration)
		}

		if err != nil {
			t.logger.Error("Failed to write usage event batch",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			if t.metrics != nil {
				t.metrics.batchWriteErrors.Inc(ctx)
			}
		} else {
			t.logger.Debug("Wrote usage event batch",
				zap.Int("batch_size", len(batch)),
				zap.Duration("duration", duration),
			)
			if t.metrics != nil {
				t.metrics.eventsWritten.Add(ctx, int64(len(batch)))
			}
		}

		// Clear the batch
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-t.buffer:
			if !ok {
				// Channel closed, flush remaining and exit
				flush()
				return
			}

			batch = append(batch, event)

			// Flush if batch is full
			if len(batch) >= t.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			// Periodic flush
			flush()

			// Update buffer size metric
			if t.metrics != nil {
				t.metrics.bufferSize.Record(context.Background(), int64(len(t.buffer)))
			}

		case <-t.stopCh:
			// Drain remaining events from buffer
			for {
				select {
				case event := <-t.buffer:
					batch = append(batch, event)
					if len(batch) >= t.config.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// enqueue attempts to add an event to the buffer without blocking.
func (t *UsageTracker) enqueue(event *metering.UsageEvent) bool {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()

	if !running || !t.config.Enabled {
		return false
	}

	select {
	case t.buffer <- event:
		return true
	default:
		return false
	}
}

// Track adds a usage event to the buffer for async writing.
// Returns true if the event was added, false if it was dropped because
// the buffer is full or the tracker is not running.
func (t *UsageTracker) Track(event *metering.UsageEvent) bool {
	if t.enqueue(event) {
		return true
	}

	if t.metrics != nil {
		t.metrics.eventsDropped.Inc(context.Background())
	}
	t.logger.Warn("Usage event buffer full, dropping event",
		zap.String("kind", event.Kind.String()),
		zap.String("tenant_id", event.TenantID.String()),
	)
	return false
}

// Save buffers the event for async writing. When the buffer is
// unavailable (tracker stopped, disabled, or full) the event is written
// through to the wrapped repository synchronously so it is not lost.
func (t *UsageTracker) Save(ctx context.Context, event *metering.UsageEvent) error {
	if t.enqueue(event) {
		return nil
	}
	return t.repository.Save(ctx, event)
}

// SaveBatch writes an already-assembled batch straight through.
func (t *UsageTracker) SaveBatch(ctx context.Context, events []*metering.UsageEvent) error {
	return t.repository.SaveBatch(ctx, events)
}

// FindByID passes through to the wrapped repository.
func (t *UsageTracker) FindByID(ctx context.Context, id uuid.UUID) (*metering.UsageEvent, error) {
	return t.repository.FindByID(ctx, id)
}

// FindByIdempotencyKey passes through to the wrapped repository. A key
// whose event is still in the buffer is not visible yet; the unique
// index on (tenant_id, idempotency_key) absorbs the resulting replay
// at the persistence layer.
func (t *UsageTracker) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*metering.UsageEvent, error) {
	return t.repository.FindByIdempotencyKey(ctx, tenantID, key)
}

// FindByTenant passes through to the wrapped repository.
func (t *UsageTracker) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) ([]*metering.UsageEvent, error) {
	return t.repository.FindByTenant(ctx, tenantID, filter)
}

// CountByTenant passes through to the wrapped repository.
func (t *UsageTracker) CountByTenant(ctx context.Context, tenantID uuid.UUID, filter metering.UsageEventFilter) (int64, error) {
	return t.repository.CountByTenant(ctx, tenantID, filter)
}

// SumByTenantAndKind passes through to the wrapped repository.
func (t *UsageTracker) SumByTenantAndKind(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, periodKey string) (int64, error) {
	return t.repository.SumByTenantAndKind(ctx, tenantID, kind, periodKey)
}

// DeleteOlderThan passes through to the wrapped repository.
func (t *UsageTracker) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return t.repository.DeleteOlderThan(ctx, before)
}

// UsageTrackerStats returns current statistics about the usage tracker.
type UsageTrackerStats struct {
	BufferSize     int
	BufferCapacity int
	BufferUsage    float64
	Running        bool
}

// Stats returns current statistics about the usage tracker.
func (t *UsageTracker) Stats() UsageTrackerStats {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()

	bufferLen := len(t.buffer)
	bufferCap := cap(t.buffer)

	var usage float64
	if bufferCap > 0 {
		usage = float64(bufferLen) / float64(bufferCap) * 100
	}

	return UsageTrackerStats{
		BufferSize:     bufferLen,
		BufferCapacity: bufferCap,
		BufferUsage:    usage,
		Running:        running,
	}
}

// IsRunning returns whether the usage tracker is currently running.
func (t *UsageTracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}
