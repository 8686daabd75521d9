package monitor

import (
	"context"
	"fmt"
	"time"

	"baton/internal/logging"
	"baton/internal/notifications"
)

// Alert kinds raised by HealthCheck.
const (
	AlertHighFailureRate = "high_failure_rate"
	AlertSlowHandoffs    = "slow_handoffs"
)

// Thresholds configure the health check.
type Thresholds struct {
	// Window is how far back metrics are considered.
	Window time.Duration
	// FailureRate alerts when exceeded, as a fraction in [0,1].
	FailureRate float64
	// SlowAverage alerts when the average duration exceeds it.
	SlowAverage time.Duration
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Window <= 0 {
		t.Window = 5 * time.Minute
	}
	if t.FailureRate <= 0 {
		t.FailureRate = 0.2
	}
	if t.SlowAverage <= 0 {
		t.SlowAverage = 30 * time.Second
	}
	return t
}

// Alert is one threshold breach.
type Alert struct {
	Kind      string  `json:"kind"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// HealthReport is the outcome of one health check.
type HealthReport struct {
	CheckedAt       time.Time     `json:"checked_at"`
	Window          time.Duration `json:"window"`
	Total           int           `json:"total"`
	Failed          int           `json:"failed"`
	FailureRate     float64       `json:"failure_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	Alerts          []Alert       `json:"alerts"`
}

// Healthy reports whether no alert was raised.
func (r HealthReport) Healthy() bool {
	return len(r.Alerts) == 0
}

// HealthCheck inspects metrics started inside the trailing window and raises
// a warning-level alert when the failure ratio or average duration exceeds
// its threshold. Alerts are observational; handoffs are never throttled.
func (m *Monitor) HealthCheck(ctx context.Context) HealthReport {
	now := m.now()
	cutoff := now.Add(-m.thresholds.Window)
	recent := m.history.filter(func(metric Metric) bool { return !metric.StartedAt.Before(cutoff) })

	report := Evaluate(recent, m.thresholds)
	report.CheckedAt = now.UTC()
	logger := logging.WithContext(ctx, m.logger)
	for _, alert := range report.Alerts {
		logging.WarnWithContext(logger, alert.Message, "monitor_alert",
			logging.Alert(alert.Kind),
			logging.Float64("value", alert.Value),
			logging.Float64("threshold", alert.Threshold),
			logging.Int("handoffs", report.Total),
			logging.String(logging.FieldErrorHint, "inspect recent handoff failures with `baton handoffs`"),
			logging.String(logging.FieldImpact, "observational only; handoffs continue"),
		)
		m.publish(ctx, logger, notifications.EventMonitorAlert, notifications.Payload{
			"alert":     alert.Kind,
			"message":   alert.Message,
			"value":     alert.Value,
			"threshold": alert.Threshold,
			"handoffs":  report.Total,
		})
	}
	return report
}

// Evaluate applies thresholds to metrics. The window is not applied here.
func Evaluate(metrics []Metric, t Thresholds) HealthReport {
	t = t.withDefaults()
	report := HealthReport{Window: t.Window, Total: len(metrics), Alerts: []Alert{}}
	if report.Total == 0 {
		return report
	}
	var total time.Duration
	for _, metric := range metrics {
		total += metric.Duration
		if !metric.Success {
			report.Failed++
		}
	}
	report.FailureRate = float64(report.Failed) / float64(report.Total)
	report.AverageDuration = total / time.Duration(report.Total)

	if report.FailureRate > t.FailureRate {
		report.Alerts = append(report.Alerts, Alert{
			Kind: AlertHighFailureRate,
			Message: fmt.Sprintf("high handoff failure rate: %d of %d failed (%.0f%% > %.0f%%)",
				report.Failed, report.Total, report.FailureRate*100, t.FailureRate*100),
			Value:     report.FailureRate,
			Threshold: t.FailureRate,
		})
	}
	if report.AverageDuration > t.SlowAverage {
		report.Alerts = append(report.Alerts, Alert{
			Kind: AlertSlowHandoffs,
			Message: fmt.Sprintf("slow handoffs: average %s exceeds %s",
				report.AverageDuration.Round(time.Millisecond), t.SlowAverage),
			Value:     report.AverageDuration.Seconds(),
			Threshold: t.SlowAverage.Seconds(),
		})
	}
	return report
}

// RunHealthLoop runs HealthCheck every interval until ctx is cancelled. It
// does nothing when monitoring is disabled.
func (m *Monitor) RunHealthLoop(ctx context.Context, interval time.Duration) {
	if !m.monitoringEnabled {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.HealthCheck(ctx)
		}
	}
}
