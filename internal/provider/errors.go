package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ProviderError is a failed provider call. Transient errors are retried on the same channel;
// permanent ones (invalid recipient, rejected content) skip the retry budget.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	parts := []string{kind + " provider error"}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Permanent wraps a rejection that retrying cannot fix.
func Permanent(message string, cause error) *ProviderError {
	return &ProviderError{Message: message, Cause: cause}
}

// Transient wraps a failure that a later attempt may not hit again.
func Transient(message string, cause error) *ProviderError {
	return &ProviderError{Message: message, Transient: true, Cause: cause}
}

// FromStatus classifies a non-2xx gateway reply. 408, 429 and 5xx are transient.
func FromStatus(statusCode int, body string) *ProviderError {
	message := fmt.Sprintf("gateway returned status %d", statusCode)
	if body = strings.TrimSpace(body); body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}

	transient := statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)

	return &ProviderError{StatusCode: statusCode, Message: message, Transient: transient}
}

// IsTransient reports whether an error should be retried. A cancelled context is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Transient {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if providerErr != nil {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
