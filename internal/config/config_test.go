package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"baton/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "baton", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "baton", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.HandoffDir() != filepath.Join(wantLogs, "handoffs") {
		t.Fatalf("unexpected handoff dir %q", cfg.HandoffDir())
	}
	if cfg.LedgerPath() != filepath.Join(wantLogs, "handoffs.db") {
		t.Fatalf("unexpected ledger path %q", cfg.LedgerPath())
	}
	if cfg.Handoff.MaxPayloadBytes != 10*1024*1024 {
		t.Fatalf("unexpected payload ceiling %d", cfg.Handoff.MaxPayloadBytes)
	}
	if !cfg.Handoff.ValidationEnabled || !cfg.Handoff.MonitoringEnabled {
		t.Fatal("expected validation and monitoring enabled by default")
	}
	if cfg.HealthInterval() != 30*time.Second || cfg.HealthWindow() != 5*time.Minute {
		t.Fatalf("unexpected monitor cadence %s/%s", cfg.HealthInterval(), cfg.HealthWindow())
	}
	if cfg.ContextMaxAge() != time.Hour {
		t.Fatalf("unexpected context max age %s", cfg.ContextMaxAge())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "baton.toml")
	custom := config.Default()
	custom.Paths.WorkspaceDir = "~/campaigns"
	custom.Handoff.RetryCount = 3
	custom.Monitor.FailureRateThreshold = 0.5
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.WorkspaceDir != filepath.Join(tempHome, "campaigns") {
		t.Fatalf("unexpected workspace dir %q", cfg.Paths.WorkspaceDir)
	}
	if cfg.Handoff.RetryCount != 3 || cfg.Monitor.FailureRateThreshold != 0.5 {
		t.Fatalf("custom values lost: %+v %+v", cfg.Handoff, cfg.Monitor)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized json format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "baton.toml")
	if err := os.WriteFile(configPath, []byte("[handoff]\nmax_payload = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvMaxPayloadBytes, "2048")
	t.Setenv(config.EnvValidationEnabled, "false")
	t.Setenv(config.EnvMonitoringEnabled, "0")
	t.Setenv(config.EnvOperationTimeout, "7")
	t.Setenv(config.EnvRetryCount, "2")
	t.Setenv(config.EnvOTLPEndpoint, "collector:4318")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Handoff.MaxPayloadBytes != 2048 {
		t.Fatalf("unexpected payload ceiling %d", cfg.Handoff.MaxPayloadBytes)
	}
	if cfg.Handoff.ValidationEnabled || cfg.Handoff.MonitoringEnabled {
		t.Fatal("expected toggles disabled by env")
	}
	if cfg.OperationTimeout() != 7*time.Second || cfg.Handoff.RetryCount != 2 {
		t.Fatalf("unexpected timeout/retries %s/%d", cfg.OperationTimeout(), cfg.Handoff.RetryCount)
	}
	if cfg.Tracing.Endpoint != "collector:4318" {
		t.Fatalf("unexpected tracing endpoint %q", cfg.Tracing.Endpoint)
	}
}

func TestEnvOverrideParseError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvRetryCount, "many")
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), config.EnvRetryCount) {
		t.Fatalf("expected parse error naming %s, got %v", config.EnvRetryCount, err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"payload", func(c *config.Config) { c.Handoff.MaxPayloadBytes = 0 }, "handoff.max_payload_bytes"},
		{"retries", func(c *config.Config) { c.Handoff.RetryCount = 0 }, "handoff.retry_count"},
		{"ratio", func(c *config.Config) { c.Monitor.FailureRateThreshold = 1.5 }, "monitor.failure_rate_threshold"},
		{"window", func(c *config.Config) { c.Monitor.WindowSeconds = 0 }, "monitor.window_seconds"},
		{"ttl", func(c *config.Config) { c.Context.MaxAgeSeconds = -1 }, "context.max_age_seconds"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "ws")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DebugDir = filepath.Join(base, "debug")
	cfg.Context.Snapshots = true

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkspaceDir, cfg.HandoffDir(), cfg.SummaryDir(), cfg.Paths.DebugDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
