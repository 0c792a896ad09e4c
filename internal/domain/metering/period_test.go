package metering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodKeyFor(t *testing.T) {
	t.Run("formats calendar month", func(t *testing.T) {
		assert.Equal(t, "2024-03", PeriodKeyFor(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2024-12", PeriodKeyFor(time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)))
	})

	t.Run("normalizes to UTC", func(t *testing.T) {
		// 2024-03-31 23:30 in UTC+2 is still March in UTC
		loc := time.FixedZone("UTC+2", 2*60*60)
		assert.Equal(t, "2024-03", PeriodKeyFor(time.Date(2024, 3, 31, 23, 30, 0, 0, loc)))

		// 2024-04-01 01:30 in UTC+2 is March 31 in UTC
		assert.Equal(t, "2024-03", PeriodKeyFor(time.Date(2024, 4, 1, 1, 30, 0, 0, loc)))
	})
}

func TestParsePeriodKey(t *testing.T) {
	t.Run("parses valid key", func(t *testing.T) {
		start, err := ParsePeriodKey("2024-03")

		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
	})

	t.Run("rejects malformed keys", func(t *testing.T) {
		for _, key := range []string{"", "2024", "2024-3", "03-2024", "2024-13", "march"} {
			_, err := ParsePeriodKey(key)
			assert.Error(t, err, "key %q must be rejected", key)
		}
	})
}

func TestIsValidPeriodKey(t *testing.T) {
	assert.True(t, IsValidPeriodKey("2024-03"))
	assert.False(t, IsValidPeriodKey("2024-3"))
	assert.False(t, IsValidPeriodKey(""))
}
