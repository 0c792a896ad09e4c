package metering

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaExceededError(t *testing.T) {
	err := NewQuotaExceededError(ResourceKindAnalysis, 5, 5)

	assert.Equal(t, ResourceKindAnalysis, err.Kind)
	assert.Equal(t, int64(5), err.Limit)
	assert.Equal(t, int64(5), err.Used)
	assert.Contains(t, err.Error(), "Document Analyses")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatusCode())

	t.Run("detected through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("record usage: %w", err)
		assert.True(t, IsQuotaExceeded(wrapped))
		assert.False(t, IsQuotaExceeded(fmt.Errorf("boom")))
	})
}

func TestInvalidResourceKindError(t *testing.T) {
	err := &InvalidResourceKindError{Kind: "video"}

	assert.Equal(t, "invalid resource kind: video", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatusCode())
	assert.True(t, IsInvalidResourceKind(fmt.Errorf("check: %w", err)))
}

func TestInvalidIncrementAmountError(t *testing.T) {
	err := &InvalidIncrementAmountError{Count: -3}

	assert.Contains(t, err.Error(), "-3")
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatusCode())
	assert.True(t, IsInvalidIncrementAmount(fmt.Errorf("check: %w", err)))
}
