package retry

import (
	"math"
	"slices"
	"time"
)

// Policy configures one retry loop. MaxRetries is the total attempt budget:
// the loop stops as soon as the attempt count reaches it.
type Policy struct {
	Name         string
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Retryable    []Class
	Logging      bool
}

// Named presets. MaxRetries counts the first attempt, so Conservative retries
// five times, Lean twice and Debug once.
var (
	// Conservative guards data the pipeline cannot proceed without.
	Conservative = Policy{
		Name:         "conservative",
		MaxRetries:   6,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Retryable:    TransientClasses,
		Logging:      true,
	}

	// Lean is for best-effort bulk operations.
	Lean = Policy{
		Name:         "lean",
		MaxRetries:   3,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   2.0,
		Retryable:    TransientClasses,
		Logging:      false,
	}

	// Debug retries once after the first attempt and logs every step.
	Debug = Policy{
		Name:         "verbose-single-retry",
		MaxRetries:   2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   1.0,
		Retryable:    TransientClasses,
		Logging:      true,
	}
)

// Delay returns the wait after the given failed attempt (1-based):
// min(InitialDelay * Multiplier^(attempt-1), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Allows reports whether failures of class c may be retried.
func (p Policy) Allows(c Class) bool {
	return slices.Contains(p.Retryable, c)
}

// WithMaxRetries returns a copy of p with a different attempt budget.
func (p Policy) WithMaxRetries(n int) Policy {
	if n > 0 {
		p.MaxRetries = n
	}
	p.Retryable = slices.Clone(p.Retryable)
	return p
}

// MaxWait bounds the total time the loop can spend sleeping.
func (p Policy) MaxWait() time.Duration {
	return time.Duration(p.attempts()) * p.MaxDelay
}

func (p Policy) attempts() int {
	if p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}
