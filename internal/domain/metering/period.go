package metering

import (
	"fmt"
	"time"
)

// periodKeyLayout is the Go time layout for accounting period keys ("2024-03").
const periodKeyLayout = "2006-01"

// PeriodKeyFor returns the accounting period key for the given instant.
// Periods are calendar months in UTC.
func PeriodKeyFor(t time.Time) string {
	return t.UTC().Format(periodKeyLayout)
}

// ParsePeriodKey parses a period key back into the first instant of
// that period (midnight UTC on the first of the month).
func ParsePeriodKey(key string) (time.Time, error) {
	t, err := time.Parse(periodKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period key %q: %w", key, err)
	}
	return t.UTC(), nil
}

// IsValidPeriodKey returns true if the key is a well-formed period key
func IsValidPeriodKey(key string) bool {
	_, err := ParsePeriodKey(key)
	return err == nil
}
