package services

import "time"

// RetryContext is the bookkeeping for one retried operation. It is embedded in
// file-operation errors so callers can see how hard the operation was tried.
type RetryContext struct {
	Operation  string        `json:"operation"`
	Resource   string        `json:"resource"`
	Attempt    int           `json:"attempt"`
	MaxRetries int           `json:"max_retries"`
	LastError  string        `json:"last_error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	StartedAt  time.Time     `json:"started_at"`

	lastErr error
}

// NewRetryContext starts bookkeeping for an operation against resource.
func NewRetryContext(operation, resource string, maxRetries int, startedAt time.Time) *RetryContext {
	return &RetryContext{
		Operation:  operation,
		Resource:   resource,
		MaxRetries: maxRetries,
		StartedAt:  startedAt,
	}
}

// RecordFailure notes a failed attempt.
func (r *RetryContext) RecordFailure(attempt int, err error, now time.Time) {
	if r == nil {
		return
	}
	r.Attempt = attempt
	r.lastErr = err
	if err != nil {
		r.LastError = err.Error()
	}
	r.Elapsed = now.Sub(r.StartedAt)
}

// LastErr returns the most recent failure.
func (r *RetryContext) LastErr() error {
	if r == nil {
		return nil
	}
	return r.lastErr
}
