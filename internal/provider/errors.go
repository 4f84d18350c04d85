package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ProviderError classifies mail provider failures as transient or permanent.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	head := "mail provider error"
	if e.Provider != "" {
		head = e.Provider + " error"
	}

	parts := []string{head}
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

// IsRateLimited reports whether the provider refused the send with 429.
func IsRateLimited(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.StatusCode == http.StatusTooManyRequests
}

// FailureReason buckets a send error for metrics: rate_limited, transient or permanent.
func FailureReason(err error) string {
	switch {
	case IsRateLimited(err):
		return "rate_limited"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}

// IsTransient reports whether a send may succeed if tried again later, as
// opposed to a rejected address or payload.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
