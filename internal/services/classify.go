package services

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// transientMarkers are message fragments of well-known transient network failures.
var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"temporary failure",
	"eai_again",
	"socket hang up",
	"too many requests",
	"network is unreachable",
}

// IsRetryable reports whether err is worth retrying. Taxonomy errors answer
// for themselves; foreign errors are retryable only when they look like a
// transient network failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) {
		return true
	}
	return isTransientNetwork(err)
}

// SeverityOf returns err's severity. Foreign transient network failures are
// high; everything else defaults to medium.
func SeverityOf(err error) Severity {
	if err == nil {
		return 0
	}
	var pe PipelineError
	if errors.As(err, &pe) {
		return pe.Severity()
	}
	if isTransientNetwork(err) {
		return SeverityHigh
	}
	return SeverityMedium
}

func isTransientNetwork(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
			syscall.ETIMEDOUT, syscall.EPIPE, syscall.EHOSTUNREACH, syscall.ENETUNREACH:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
