package retry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"baton/internal/services"
)

func testPolicy(maxRetries int) Policy {
	return Policy{
		Name:         "test",
		MaxRetries:   maxRetries,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2.0,
		Retryable:    TransientClasses,
	}
}

func busyErr() error {
	return &os.PathError{Op: "open", Path: "/tmp/locked", Err: unix.EBUSY}
}

func TestDoSucceedsAfterRetryableFailures(t *testing.T) {
	p := testPolicy(5)
	const failures = 3
	calls := 0

	res := Do(context.Background(), p, "write", "/tmp/x", func(ctx context.Context) (string, error) {
		calls++
		if calls <= failures {
			return "", busyErr()
		}
		return "ok", nil
	})

	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Attempts != failures+1 {
		t.Fatalf("attempts = %d, want %d", res.Attempts, failures+1)
	}
	if res.Value != "ok" {
		t.Fatalf("value = %q", res.Value)
	}
	var minElapsed time.Duration
	for attempt := 1; attempt <= failures; attempt++ {
		minElapsed += p.Delay(attempt)
	}
	if res.Elapsed < minElapsed {
		t.Fatalf("elapsed %v shorter than backoff sum %v", res.Elapsed, minElapsed)
	}
	if res.Context != nil || res.Err != nil {
		t.Fatal("expected no failure bookkeeping on success")
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	start := time.Now()
	res := Do(context.Background(), testPolicy(5), "parse", "/tmp/x", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("unexpected token")
	})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Attempts != 1 || calls != 1 {
		t.Fatalf("attempts = %d calls = %d, want 1", res.Attempts, calls)
	}
	if time.Since(start) >= 10*time.Millisecond {
		t.Fatal("expected no backoff sleep for non-retryable error")
	}
	if res.Context == nil || res.Context.LastError != "unexpected token" {
		t.Fatalf("expected retry context with last error, got %+v", res.Context)
	}
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	calls := 0
	res := Do(context.Background(), testPolicy(3), "stat", "/tmp/x", func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("stat: %w", fs.ErrNotExist)
	})
	if res.Success {
		t.Fatal("expected failure")
	}
	if calls != 3 || res.Attempts != 3 {
		t.Fatalf("calls = %d attempts = %d, want 3", calls, res.Attempts)
	}
	if !errors.Is(res.Err, fs.ErrNotExist) {
		t.Fatalf("expected last error to be kept, got %v", res.Err)
	}
	if res.Context.Attempt != 3 || res.Context.MaxRetries != 3 {
		t.Fatalf("unexpected retry context: %+v", res.Context)
	}
}

func TestDoHonoursCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := testPolicy(5)
	p.InitialDelay = time.Second
	p.MaxDelay = time.Second

	res := Do(ctx, p, "write", "/tmp/x", func(ctx context.Context) (int, error) {
		cancel()
		return 0, busyErr()
	})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", res.Err)
	}
	if res.Elapsed >= time.Second {
		t.Fatal("expected cancellation to cut the backoff short")
	}
}

func TestRunEmbedsRetryContext(t *testing.T) {
	_, err := Run(context.Background(), testPolicy(2), "write", "/tmp/out.json", func(ctx context.Context) (int, error) {
		return 0, busyErr()
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var fileErr *services.FileOperationError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected FileOperationError, got %T", err)
	}
	if fileErr.Retry == nil || fileErr.Retry.Attempt != 2 {
		t.Fatalf("expected retry context with 2 attempts, got %+v", fileErr.Retry)
	}
	if !errors.Is(err, unix.EBUSY) {
		t.Fatal("expected cause to unwrap to EBUSY")
	}
	if !errors.Is(err, services.ErrFileOperation) {
		t.Fatal("expected file-operation marker")
	}
}

func TestDelayFormula(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 3}
	cases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 300 * time.Millisecond,
		3: 900 * time.Millisecond,
		4: time.Second,
	}
	for attempt, want := range cases {
		if got := p.Delay(attempt); got != want {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{busyErr(), ClassBusy},
		{fmt.Errorf("open: %w", unix.EMFILE), ClassTooManyHandles},
		{fmt.Errorf("read: %w", unix.EAGAIN), ClassUnavailable},
		{fs.ErrNotExist, ClassNotFound},
		{&os.PathError{Op: "mkdir", Path: "/x", Err: unix.EEXIST}, ClassExists},
		{services.NewValidationError("f", nil, "", "bad"), ClassOther},
		{errors.New("boom"), ClassOther},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestPresets(t *testing.T) {
	if Conservative.MaxRetries != 6 || !Conservative.Logging {
		t.Fatalf("unexpected conservative preset: %+v", Conservative)
	}
	if Lean.MaxRetries != 3 || Lean.Logging {
		t.Fatalf("unexpected lean preset: %+v", Lean)
	}
	if !Debug.Logging || Debug.MaxRetries != 2 {
		t.Fatalf("unexpected debug preset: %+v", Debug)
	}
	if Conservative.MaxWait() != 30*time.Second {
		t.Fatalf("unexpected max wait %v", Conservative.MaxWait())
	}
}
