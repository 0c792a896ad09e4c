package metering

import (
	"context"
	"fmt"

	"github.com/documind/backend/internal/domain/metering"
	"github.com/documind/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// QuotaAlertHandler handles QuotaExhaustedEvent and emits an operational
// alert when a tenant burns through a monthly limit. Delivery runs through
// the outbox, so the handler must tolerate redelivery (it is wrapped with
// the idempotent handler at wiring time).
type QuotaAlertHandler struct {
	logger *zap.Logger
}

// NewQuotaAlertHandler creates a new handler for quota exhaustion events
func NewQuotaAlertHandler(logger *zap.Logger) *QuotaAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaAlertHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *QuotaAlertHandler) EventTypes() []string {
	return []string{metering.EventTypeQuotaExhausted}
}

// Handle processes a QuotaExhaustedEvent
func (h *QuotaAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	exhausted, ok := event.(*metering.QuotaExhaustedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", metering.EventTypeQuotaExhausted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			metering.EventTypeQuotaExhausted, event.EventType())
	}

	h.logger.Warn("tenant exhausted monthly quota",
		zap.String("tenant_id", exhausted.TenantID().String()),
		zap.String("account_id", exhausted.AggregateID().String()),
		zap.String("kind", exhausted.Kind.String()),
		zap.Int64("limit", exhausted.Limit),
		zap.String("period_key", exhausted.PeriodKey),
	)

	return nil
}
