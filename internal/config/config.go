package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout for persisted artifacts.
type Paths struct {
	// WorkspaceDir holds per-campaign directories (docs/ snapshots live beneath each).
	WorkspaceDir string `toml:"workspace_dir"`
	// LogDir holds handoffs/, summaries/, the ledger database, and baton.log.
	LogDir string `toml:"log_dir"`
	// DebugDir receives run context snapshots when snapshotting is enabled.
	DebugDir string `toml:"debug_dir"`
}

// Handoff contains the externally supplied handoff toggles.
type Handoff struct {
	MaxPayloadBytes         int64 `toml:"max_payload_bytes"`
	ValidationEnabled       bool  `toml:"validation_enabled"`
	MonitoringEnabled       bool  `toml:"monitoring_enabled"`
	OperationTimeoutSeconds int   `toml:"operation_timeout_seconds"`
	RetryCount              int   `toml:"retry_count"`
}

// Monitor contains health-check thresholds.
type Monitor struct {
	HealthIntervalSeconds int     `toml:"health_interval_seconds"`
	WindowSeconds         int     `toml:"window_seconds"`
	FailureRateThreshold  float64 `toml:"failure_rate_threshold"`
	SlowHandoffSeconds    int     `toml:"slow_handoff_seconds"`
}

// Context contains run context registry settings.
type Context struct {
	MaxAgeSeconds          int  `toml:"max_age_seconds"`
	CleanupIntervalSeconds int  `toml:"cleanup_interval_seconds"`
	Snapshots              bool `toml:"snapshots"`
}

// Ledger controls the SQLite handoff index.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications controls the in-process event bus.
type Notifications struct {
	Enabled bool  `toml:"enabled"`
	Buffer  int64 `toml:"buffer"`
}

// Tracing controls OpenTelemetry span export.
type Tracing struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
	Insecure    bool   `toml:"insecure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for baton.
//
// Configuration sections by subsystem:
//   - Paths: workspace, log, and debug directories
//   - Handoff: payload ceiling, validation/monitoring toggles, timeouts, retries
//   - Monitor: health check cadence and alert thresholds
//   - Context: run context TTL, sweep cadence, debug snapshots
//   - Ledger: SQLite index of persisted envelopes
//   - Notifications: in-process handoff event bus
//   - Tracing: OpenTelemetry export
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Handoff       Handoff       `toml:"handoff"`
	Monitor       Monitor       `toml:"monitor"`
	Context       Context       `toml:"context"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Tracing       Tracing       `toml:"tracing"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("baton.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.LogDir, c.HandoffDir(), c.SummaryDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Context.Snapshots {
		if err := os.MkdirAll(c.Paths.DebugDir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Paths.DebugDir, err)
		}
	}
	return nil
}

// HandoffDir is where one envelope file per handoff id is written.
func (c *Config) HandoffDir() string {
	return filepath.Join(c.Paths.LogDir, "handoffs")
}

// SummaryDir is where per-pipeline summary reports are written.
func (c *Config) SummaryDir() string {
	return filepath.Join(c.Paths.LogDir, "summaries")
}

// LedgerPath returns the SQLite database location.
func (c *Config) LedgerPath() string {
	if strings.TrimSpace(c.Ledger.Path) != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.Paths.LogDir, "handoffs.db")
}

// LockPath returns the single-owner lock file used by `baton run`.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "baton.lock")
}

// CampaignDir returns the per-campaign workspace directory.
func (c *Config) CampaignDir(campaignID string) string {
	return filepath.Join(c.Paths.WorkspaceDir, campaignID)
}

// OperationTimeout is the per-operation deadline applied to persistence.
func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.Handoff.OperationTimeoutSeconds) * time.Second
}

// HealthInterval is the period between monitor health checks.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Monitor.HealthIntervalSeconds) * time.Second
}

// HealthWindow is the trailing window inspected by a health check.
func (c *Config) HealthWindow() time.Duration {
	return time.Duration(c.Monitor.WindowSeconds) * time.Second
}

// SlowHandoff is the average duration above which a health alert fires.
func (c *Config) SlowHandoff() time.Duration {
	return time.Duration(c.Monitor.SlowHandoffSeconds) * time.Second
}

// ContextMaxAge is the idle TTL after which run contexts are swept.
func (c *Config) ContextMaxAge() time.Duration {
	return time.Duration(c.Context.MaxAgeSeconds) * time.Second
}

// CleanupInterval is the period between run context sweeps.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Context.CleanupIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
