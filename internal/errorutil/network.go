package errorutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// NetworkError describes a failed call to an upstream service
type NetworkError struct {
	Operation  string        // e.g. "forecast request", "city catalog download"
	URL        string        // endpoint that was called
	StatusCode int           // HTTP status, zero when no response arrived
	Timeout    time.Duration // configured timeout when the call timed out
	Underlying error
	Retryable  bool
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed for %s: HTTP %d: %v", e.Operation, e.URL, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.URL, e.Underlying)
}

func (e *NetworkError) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether retrying might succeed
func (e *NetworkError) IsRetryable() bool {
	return e.Retryable
}

// NewNetworkError wraps a transport-level failure (no HTTP response)
func NewNetworkError(operation, url string, err error) *NetworkError {
	return &NetworkError{
		Operation:  operation,
		URL:        url,
		Underlying: err,
		Retryable:  isRetryableError(err),
	}
}

// NewStatusError wraps a non-2xx HTTP response
func NewStatusError(operation, url string, statusCode int, err error) *NetworkError {
	if err == nil {
		err = errors.New(http.StatusText(statusCode))
	}
	return &NetworkError{
		Operation:  operation,
		URL:        url,
		StatusCode: statusCode,
		Underlying: err,
		Retryable:  IsRetryableStatus(statusCode),
	}
}

// WithTimeout records the timeout that applied to a timed out call
func (e *NetworkError) WithTimeout(timeout time.Duration) *NetworkError {
	if IsTimeout(e.Underlying) {
		e.Timeout = timeout
	}
	return e
}

// LogNetworkError logs the error at warn when retryable and error otherwise
func LogNetworkError(logger *slog.Logger, netErr *NetworkError) *NetworkError {
	if logger == nil {
		return netErr
	}

	attrs := []slog.Attr{
		slog.String("operation", netErr.Operation),
		slog.String("url", netErr.URL),
		slog.String("error", netErr.Underlying.Error()),
		slog.Bool("retryable", netErr.Retryable),
	}
	if netErr.StatusCode > 0 {
		attrs = append(attrs, slog.Int("status_code", netErr.StatusCode))
	}
	if netErr.Timeout > 0 {
		attrs = append(attrs, slog.Duration("timeout", netErr.Timeout))
	}

	level := slog.LevelError
	if netErr.Retryable {
		level = slog.LevelWarn
	}
	logger.LogAttrs(context.Background(), level, "Network operation failed", attrs...)
	return netErr
}

// IsRetryableStatus reports whether an HTTP status is worth retrying
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return statusCode == 529 // upstream overloaded
}

// IsTimeout reports whether err is a network or context timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsTimeout(err) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
