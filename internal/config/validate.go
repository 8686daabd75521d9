package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateHandoff(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateContext(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateHandoff() error {
	if c.Handoff.MaxPayloadBytes <= 0 {
		return errors.New("handoff.max_payload_bytes must be positive")
	}
	if c.Handoff.RetryCount < 1 {
		return errors.New("handoff.retry_count must be >= 1")
	}
	return ensurePositiveMap(map[string]int{
		"handoff.operation_timeout_seconds": c.Handoff.OperationTimeoutSeconds,
	})
}

func (c *Config) validateMonitor() error {
	if err := ensurePositiveMap(map[string]int{
		"monitor.health_interval_seconds": c.Monitor.HealthIntervalSeconds,
		"monitor.window_seconds":          c.Monitor.WindowSeconds,
		"monitor.slow_handoff_seconds":    c.Monitor.SlowHandoffSeconds,
	}); err != nil {
		return err
	}
	if c.Monitor.FailureRateThreshold <= 0 || c.Monitor.FailureRateThreshold > 1 {
		return errors.New("monitor.failure_rate_threshold must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateContext() error {
	return ensurePositiveMap(map[string]int{
		"context.max_age_seconds":          c.Context.MaxAgeSeconds,
		"context.cleanup_interval_seconds": c.Context.CleanupIntervalSeconds,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.Buffer < 0 {
		return errors.New("notifications.buffer must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
