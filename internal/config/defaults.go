package config

const (
	defaultConfigPath           = "~/.config/baton/config.toml"
	defaultWorkspaceDir         = "~/.local/share/baton/campaigns"
	defaultLogDir               = "~/.local/share/baton/logs"
	defaultDebugDir             = "~/.local/share/baton/debug"
	defaultMaxPayloadBytes      = 10 * 1024 * 1024
	defaultOperationTimeout     = 30
	defaultRetryCount           = 5
	defaultHealthInterval       = 30
	defaultHealthWindow         = 300
	defaultFailureRateThreshold = 0.2
	defaultSlowHandoffSeconds   = 30
	defaultContextMaxAge        = 3600
	defaultCleanupInterval      = 300
	defaultNotificationBuffer   = 64
	defaultTracingServiceName   = "baton"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
			DebugDir:     defaultDebugDir,
		},
		Handoff: Handoff{
			MaxPayloadBytes:         defaultMaxPayloadBytes,
			ValidationEnabled:       true,
			MonitoringEnabled:       true,
			OperationTimeoutSeconds: defaultOperationTimeout,
			RetryCount:              defaultRetryCount,
		},
		Monitor: Monitor{
			HealthIntervalSeconds: defaultHealthInterval,
			WindowSeconds:         defaultHealthWindow,
			FailureRateThreshold:  defaultFailureRateThreshold,
			SlowHandoffSeconds:    defaultSlowHandoffSeconds,
		},
		Context: Context{
			MaxAgeSeconds:          defaultContextMaxAge,
			CleanupIntervalSeconds: defaultCleanupInterval,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Notifications: Notifications{
			Enabled: true,
			Buffer:  defaultNotificationBuffer,
		},
		Tracing: Tracing{
			ServiceName: defaultTracingServiceName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
