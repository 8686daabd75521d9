package retry

import (
	"context"
	"log/slog"
	"time"

	"baton/internal/logging"
	"baton/internal/services"
)

// Op is a retryable operation.
type Op[T any] func(ctx context.Context) (T, error)

// Result reports the outcome of a retried operation.
type Result[T any] struct {
	Value    T
	Success  bool
	Attempts int
	Elapsed  time.Duration
	// Err and Context are set on failure only.
	Err     error
	Context *services.RetryContext
}

// Option customises a single Do/Run call.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes per-attempt logs for policies with Logging enabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Do runs fn under policy p. operation and resource label the attempt for
// diagnostics (e.g. "write", "/logs/handoffs/x.json").
func Do[T any](ctx context.Context, p Policy, operation, resource string, fn Op[T], opts ...Option) Result[T] {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil || !p.Logging {
		logger = logging.NewNop()
	}
	logger = logger.With(
		logging.String(logging.FieldComponent, "retry"),
		logging.String("operation", operation),
		logging.String("resource", resource),
		logging.String("policy", p.Name),
	)

	maxAttempts := p.attempts()
	start := time.Now()
	rc := services.NewRetryContext(operation, resource, maxAttempts, start)

	var zero T
	for attempt := 1; ; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", logging.Int("attempts", attempt))
			}
			return Result[T]{Value: value, Success: true, Attempts: attempt, Elapsed: time.Since(start)}
		}
		rc.RecordFailure(attempt, err, time.Now())

		class := Classify(err)
		if !p.Allows(class) || attempt >= maxAttempts {
			logger.Warn("operation failed",
				logging.Int("attempts", attempt),
				logging.String("failure_class", class.String()),
				logging.Bool("retryable", p.Allows(class)),
				logging.Error(err),
			)
			return Result[T]{Value: zero, Attempts: attempt, Elapsed: time.Since(start), Err: err, Context: rc}
		}

		delay := p.Delay(attempt)
		logger.Debug("operation failed; backing off",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String("failure_class", class.String()),
			logging.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			rc.RecordFailure(attempt, ctx.Err(), time.Now())
			return Result[T]{Value: zero, Attempts: attempt, Elapsed: time.Since(start), Err: ctx.Err(), Context: rc}
		case <-timer.C:
		}
	}
}

// Run is the error-returning variant of Do. On failure it returns a
// *services.FileOperationError whose Retry field holds the bookkeeping.
func Run[T any](ctx context.Context, p Policy, operation, resource string, fn Op[T], opts ...Option) (T, error) {
	res := Do(ctx, p, operation, resource, fn, opts...)
	if res.Success {
		return res.Value, nil
	}
	return res.Value, services.NewFileOperationError(
		operation, resource, res.Context,
		operation+" "+resource+" failed",
		services.WithCause(res.Err),
		services.WithRetryable(Classify(res.Err) != ClassOther),
	)
}

// Exec adapts an error-only operation to Run.
func Exec(ctx context.Context, p Policy, operation, resource string, fn func(ctx context.Context) error, opts ...Option) error {
	_, err := Run(ctx, p, operation, resource, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}
