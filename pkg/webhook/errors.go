package webhook

import (
	"errors"
	"fmt"
)

// Sentinel errors for webhook delivery. Configuration errors fail fast before any
// request is made; delivery errors are returned after the retry budget is spent.
var (
	ErrDeliveryFailed       = errors.New("webhook delivery failed")
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrInvalidURL           = errors.New("invalid webhook URL")
	ErrInvalidMethod        = errors.New("unsupported webhook method")
	ErrTimeout              = errors.New("webhook request timeout")
	ErrTemporaryFailure     = errors.New("temporary webhook failure")
	ErrCircuitOpen          = errors.New("webhook circuit breaker is open")
	ErrSignatureMismatch    = errors.New("webhook signature mismatch")
)

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// IsCircuitOpen checks if an error indicates the circuit breaker is open
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
