package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment overrides, read once at load.
const (
	EnvMaxPayloadBytes   = "BATON_MAX_PAYLOAD_BYTES"
	EnvValidationEnabled = "BATON_VALIDATION_ENABLED"
	EnvMonitoringEnabled = "BATON_MONITORING_ENABLED"
	EnvOperationTimeout  = "BATON_OPERATION_TIMEOUT"
	EnvRetryCount        = "BATON_RETRY_COUNT"
	EnvOTLPEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

func (c *Config) applyEnv() error {
	if value, ok := lookupEnv(EnvMaxPayloadBytes); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxPayloadBytes, err)
		}
		c.Handoff.MaxPayloadBytes = parsed
	}
	if value, ok := lookupEnv(EnvValidationEnabled); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvValidationEnabled, err)
		}
		c.Handoff.ValidationEnabled = parsed
	}
	if value, ok := lookupEnv(EnvMonitoringEnabled); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMonitoringEnabled, err)
		}
		c.Handoff.MonitoringEnabled = parsed
	}
	if value, ok := lookupEnv(EnvOperationTimeout); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvOperationTimeout, err)
		}
		c.Handoff.OperationTimeoutSeconds = parsed
	}
	if value, ok := lookupEnv(EnvRetryCount); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetryCount, err)
		}
		c.Handoff.RetryCount = parsed
	}
	if strings.TrimSpace(c.Tracing.Endpoint) == "" {
		if value, ok := lookupEnv(EnvOTLPEndpoint); ok {
			c.Tracing.Endpoint = value
		}
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTracing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DebugDir) == "" {
		c.Paths.DebugDir = defaultDebugDir
	}
	if c.Paths.DebugDir, err = expandPath(c.Paths.DebugDir); err != nil {
		return fmt.Errorf("paths.debug_dir: %w", err)
	}
	if c.Ledger.Path, err = expandPath(strings.TrimSpace(c.Ledger.Path)); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTracing() {
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultTracingServiceName
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
