package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error classifies gateway call failures. Transient failures are eligible
// for retry; RouteUnusable failures mean the submitted routing rule cannot
// carry the message and the next declared rule should be tried.
type Error struct {
	StatusCode    int
	ProviderCode  int
	Message       string
	Transient     bool
	RouteUnusable bool
	Cause         error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.ProviderCode != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.ProviderCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error should be retried.
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

	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsRouteUnusable reports whether the failed routing rule should be skipped
// in favor of the binding's next declared rule.
func IsRouteUnusable(err error) bool {
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.RouteUnusable
	}
	return false
}
