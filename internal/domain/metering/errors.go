package metering

import (
	"errors"
	"fmt"
	"net/http"
)

// QuotaExceededError is returned when an increment would push a counter
// past the plan limit. The account is left unmodified when it is returned.
type QuotaExceededError struct {
	Kind    ResourceKind
	Limit   int64
	Used    int64
	Message string
}

// Error implements the error interface
func (e *QuotaExceededError) Error() string {
	return e.Message
}

// HTTPStatusCode returns the HTTP status code for this error (429 Too Many Requests)
func (e *QuotaExceededError) HTTPStatusCode() int {
	return http.StatusTooManyRequests
}

// NewQuotaExceededError creates a new QuotaExceededError
func NewQuotaExceededError(kind ResourceKind, limit, used int64) *QuotaExceededError {
	return &QuotaExceededError{
		Kind:  kind,
		Limit: limit,
		Used:  used,
		Message: fmt.Sprintf(
			"Quota exceeded for %s: used %d of limit %d",
			kind.DisplayName(), used, limit,
		),
	}
}

// IsQuotaExceeded reports whether err is (or wraps) a QuotaExceededError
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// InvalidResourceKindError is returned when an operation names a resource
// kind that is not part of the metered catalog
type InvalidResourceKindError struct {
	Kind string
}

// Error implements the error interface
func (e *InvalidResourceKindError) Error() string {
	return fmt.Sprintf("invalid resource kind: %s", e.Kind)
}

// HTTPStatusCode returns the HTTP status code for this error (400 Bad Request)
func (e *InvalidResourceKindError) HTTPStatusCode() int {
	return http.StatusBadRequest
}

// IsInvalidResourceKind reports whether err is (or wraps) an InvalidResourceKindError
func IsInvalidResourceKind(err error) bool {
	var ie *InvalidResourceKindError
	return errors.As(err, &ie)
}

// InvalidIncrementAmountError is returned when an increment is requested
// with a zero or negative count
type InvalidIncrementAmountError struct {
	Count int64
}

// Error implements the error interface
func (e *InvalidIncrementAmountError) Error() string {
	return fmt.Sprintf("increment amount must be positive, got %d", e.Count)
}

// HTTPStatusCode returns the HTTP status code for this error (400 Bad Request)
func (e *InvalidIncrementAmountError) HTTPStatusCode() int {
	return http.StatusBadRequest
}

// IsInvalidIncrementAmount reports whether err is (or wraps) an InvalidIncrementAmountError
func IsInvalidIncrementAmount(err error) bool {
	var ie *InvalidIncrementAmountError
	return errors.As(err, &ie)
}
