package metering

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsageEvent(t *testing.T) {
	tenantID := uuid.New()
	recordedAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("creates valid event", func(t *testing.T) {
		event, err := NewUsageEvent(tenantID, ResourceKindOCR, 3, "2024-03", recordedAt)

		require.NoError(t, err)
		assert.Equal(t, tenantID, event.TenantID)
		assert.Equal(t, ResourceKindOCR, event.Kind)
		assert.Equal(t, int64(3), event.Quantity)
		assert.Equal(t, "2024-03", event.PeriodKey)
		assert.Equal(t, recordedAt, event.RecordedAt)
		assert.NotEqual(t, uuid.Nil, event.ID)
	})

	t.Run("fails with nil tenant", func(t *testing.T) {
		_, err := NewUsageEvent(uuid.Nil, ResourceKindOCR, 1, "2024-03", recordedAt)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Tenant ID cannot be empty")
	})

	t.Run("fails with invalid kind", func(t *testing.T) {
		_, err := NewUsageEvent(tenantID, ResourceKind("video"), 1, "2024-03", recordedAt)

		assert.True(t, IsInvalidResourceKind(err))
	})

	t.Run("fails with non-positive quantity", func(t *testing.T) {
		_, err := NewUsageEvent(tenantID, ResourceKindOCR, 0, "2024-03", recordedAt)
		assert.True(t, IsInvalidIncrementAmount(err))

		_, err = NewUsageEvent(tenantID, ResourceKindOCR, -2, "2024-03", recordedAt)
		assert.True(t, IsInvalidIncrementAmount(err))
	})

	t.Run("fails with malformed period key", func(t *testing.T) {
		_, err := NewUsageEvent(tenantID, ResourceKindOCR, 1, "march", recordedAt)

		assert.Error(t, err)
	})
}

func TestUsageEvent_Builders(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	event, err := NewUsageEvent(tenantID, ResourceKindAnalysis, 1, "2024-03", time.Now())
	require.NoError(t, err)

	event.WithSource("analysis_job", "job-42").
		WithUser(userID).
		WithRequestInfo("203.0.113.9", "documind-cli/1.4").
		WithIdempotencyKey("req-abc-123").
		WithMetadata("pages", 12)

	assert.Equal(t, "analysis_job", event.SourceType)
	assert.Equal(t, "job-42", event.SourceID)
	require.NotNil(t, event.UserID)
	assert.Equal(t, userID, *event.UserID)
	assert.Equal(t, "203.0.113.9", event.IPAddress)
	assert.Equal(t, "documind-cli/1.4", event.UserAgent)
	assert.Equal(t, "req-abc-123", event.IdempotencyKey)
	assert.Equal(t, 12, event.Metadata["pages"])
}
