package testsupport

import (
	"path/filepath"
	"testing"

	"baton/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Notifications and tracing are off unless an option turns them on.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "campaigns")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DebugDir = filepath.Join(base, "debug")
	cfgVal.Notifications.Enabled = false
	cfgVal.Tracing.Enabled = false
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithValidation toggles handoff contract validation.
func WithValidation(enabled bool) ConfigOption {
	return func(b *configBuilder) { b.cfg.Handoff.ValidationEnabled = enabled }
}

// WithMonitoring toggles metric history.
func WithMonitoring(enabled bool) ConfigOption {
	return func(b *configBuilder) { b.cfg.Handoff.MonitoringEnabled = enabled }
}

// WithLedger toggles the SQLite handoff index.
func WithLedger(enabled bool) ConfigOption {
	return func(b *configBuilder) { b.cfg.Ledger.Enabled = enabled }
}

// WithNotifications turns on the in-process event bus.
func WithNotifications() ConfigOption {
	return func(b *configBuilder) { b.cfg.Notifications.Enabled = true }
}

// WithSnapshots enables run context debug snapshots.
func WithSnapshots() ConfigOption {
	return func(b *configBuilder) { b.cfg.Context.Snapshots = true }
}

// WithMaxPayloadBytes sets the soft payload ceiling.
func WithMaxPayloadBytes(n int64) ConfigOption {
	return func(b *configBuilder) { b.cfg.Handoff.MaxPayloadBytes = n }
}
