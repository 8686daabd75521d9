package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"baton/internal/logging"
	"baton/internal/monitor"
	"baton/internal/runctx"
)

// Background owns the periodic run-context sweep and the monitor health
// loop. Nothing runs until Start; Stop cancels both loops and waits.
type Background struct {
	contexts *runctx.Manager
	monitor  *monitor.Monitor
	logger   *slog.Logger

	CleanupInterval time.Duration
	MaxAge          time.Duration
	HealthInterval  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBackground builds the task set. Either collaborator may be nil, which
// skips its loop.
func NewBackground(contexts *runctx.Manager, mon *monitor.Monitor, logger *slog.Logger) *Background {
	return &Background{
		contexts:        contexts,
		monitor:         mon,
		logger:          logging.NewComponentLogger(logger, "background"),
		CleanupInterval: 5 * time.Minute,
		MaxAge:          runctx.DefaultMaxAge,
		HealthInterval:  30 * time.Second,
	}
}

// Start launches the loops.
func (b *Background) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return errors.New("background tasks already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true

	if b.contexts != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.contexts.RunSweeper(runCtx, b.CleanupInterval, b.MaxAge)
		}()
	}
	if b.monitor != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.monitor.RunHealthLoop(runCtx, b.HealthInterval)
		}()
	}

	b.logger.Debug("background tasks started",
		logging.Duration("cleanup_interval", b.CleanupInterval),
		logging.Duration("health_interval", b.HealthInterval),
	)
	return nil
}

// Stop terminates the loops and waits for them to return.
func (b *Background) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
	b.logger.Debug("background tasks stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (b *Background) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}
