package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

// Error is a failed provider call. Ambiguous is set when the request may
// have reached the provider (timeouts, dropped connections, 5xx), so the
// operation's outcome is unknown and must be reconciled rather than failed.
// ExternalReference is set when the provider handle was known before the
// failure, e.g. a signed transaction's hash.
type Error struct {
	Provider          string
	Op                string
	StatusCode        int
	Ambiguous         bool
	ExternalReference string
	Err               error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{apperror.ErrGateway, e.Err}
}

// IsAmbiguous reports whether err leaves the provider-side outcome unknown.
func IsAmbiguous(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Ambiguous
	}
	return false
}

// ExternalReferenceOf returns the provider handle carried by err, if any.
func ExternalReferenceOf(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.ExternalReference
	}
	return ""
}

// Rejected builds a definite rejection: the provider answered and refused.
func Rejected(provider, op string, status int, err error) *Error {
	return &Error{Provider: provider, Op: op, StatusCode: status, Err: err}
}

// ClassifyStatus wraps a non-2xx response. 5xx and 429 are ambiguous.
func ClassifyStatus(provider, op string, status int, body string) *Error {
	return &Error{
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Ambiguous:  status >= 500 || status == 429,
		Err:        fmt.Errorf("non-2xx response: %s", truncate(body, 512)),
	}
}

// ClassifyTransport wraps an http.Client error.
func ClassifyTransport(ctx context.Context, provider, op string, err error) *Error {
	switch {
	case isTimeoutError(ctx, err):
		return &Error{Provider: provider, Op: op, Ambiguous: true, Err: fmt.Errorf("timeout: %w", err)}
	case isNetworkError(err):
		// Connection refused never reached the provider; other network errors may have.
		return &Error{Provider: provider, Op: op, Ambiguous: !errors.Is(err, syscall.ECONNREFUSED), Err: fmt.Errorf("network error: %w", err)}
	default:
		return &Error{Provider: provider, Op: op, Ambiguous: true, Err: fmt.Errorf("request error: %w", err)}
	}
}

func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
