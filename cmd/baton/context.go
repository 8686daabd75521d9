package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"baton/internal/config"
	"baton/internal/fileutil"
	"baton/internal/ledger"
	"baton/internal/logging"
	"baton/internal/monitor"
	"baton/internal/notifications"
	"baton/internal/retry"
	"baton/internal/runctx"
	"baton/internal/tracing"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// wantJSON reports whether output to w should be JSON: either requested, or
// w is not a terminal.
func (c *commandContext) wantJSON(w io.Writer) bool {
	if c.jsonFlag != nil && *c.jsonFlag {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// runtime is the service graph one command invocation works against.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *fileutil.Store
	ledger   *ledger.Store
	tracing  *tracing.Provider
	notifier notifications.Service
	contexts *runctx.Manager
	monitor  *monitor.Monitor
}

func (c *commandContext) openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// retry_count counts retries after the first attempt.
	policy := retry.Conservative.WithMaxRetries(cfg.Handoff.RetryCount + 1)
	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		store:  fileutil.New(policy, logger, cfg.OperationTimeout()),
	}

	provider, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt.tracing = provider
	rt.notifier = notifications.NewService(cfg, logger)

	monOpts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithNotifier(rt.notifier),
		monitor.WithTracer(provider.Tracer()),
	}
	if cfg.Ledger.Enabled {
		l, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		rt.ledger = l
		monOpts = append(monOpts, monitor.WithRecorder(l))
	}
	rt.monitor = monitor.NewFromConfig(cfg, rt.store, monOpts...)

	ctxOpts := []runctx.Option{runctx.WithLogger(logger)}
	if cfg.Context.Snapshots {
		ctxOpts = append(ctxOpts, runctx.WithSnapshots(cfg.Paths.DebugDir))
	}
	rt.contexts = runctx.NewManager(rt.store, ctxOpts...)
	return rt, nil
}

func (rt *runtime) requireLedger() (*ledger.Store, error) {
	if rt.ledger == nil {
		return nil, errors.New("handoff ledger is disabled; set [ledger] enabled = true")
	}
	return rt.ledger, nil
}

// Close flushes spans and releases the ledger and event bus.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.notifier != nil {
		errs = append(errs, rt.notifier.Close())
	}
	if rt.tracing != nil {
		errs = append(errs, rt.tracing.Shutdown(ctx))
	}
	if rt.ledger != nil {
		errs = append(errs, rt.ledger.Close())
	}
	return errors.Join(errs...)
}

func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*runtime) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := c.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(context.WithoutCancel(ctx)); err == nil {
			err = closeErr
		}
	}()
	return fn(rt)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
