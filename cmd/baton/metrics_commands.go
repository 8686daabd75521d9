package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"baton/internal/logging"
	"baton/internal/monitor"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Read pipeline summaries and metric exports",
	}

	metricsCmd.AddCommand(newMetricsSummaryCommand(ctx))
	metricsCmd.AddCommand(newMetricsHealthCommand(ctx))
	metricsCmd.AddCommand(newMetricsValidateCommand(ctx))

	return metricsCmd
}

func newMetricsSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <pipeline-id>",
		Short: "Show the summary report written for a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				summary, err := monitor.LoadSummary(cmd.Context(), rt.store, rt.monitor.SummaryPath(strings.TrimSpace(args[0])))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ctx.wantJSON(out) {
					return writeJSON(cmd, summary)
				}
				fmt.Fprint(out, renderSummary(summary))
				return nil
			})
		},
	}
}

func newMetricsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health <export.json>",
		Short: "Evaluate alert thresholds over an exported metric history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				added, err := rt.monitor.Import(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rt.logger.Debug("metrics imported", logging.Int("metrics", added))

				report := monitor.Evaluate(rt.monitor.Metrics(), monitor.Thresholds{
					Window:      rt.cfg.HealthWindow(),
					FailureRate: rt.cfg.Monitor.FailureRateThreshold,
					SlowAverage: rt.cfg.SlowHandoff(),
				})
				report.CheckedAt = time.Now().UTC()

				out := cmd.OutOrStdout()
				if ctx.wantJSON(out) {
					return writeJSON(cmd, report)
				}
				fmt.Fprintf(out, "Handoffs: %d, failed: %d (%.0f%%), average %s\n",
					report.Total, report.Failed, report.FailureRate*100, formatDuration(report.AverageDuration))
				if report.Healthy() {
					fmt.Fprintln(out, "Healthy")
					return nil
				}
				for _, alert := range report.Alerts {
					fmt.Fprintf(out, "ALERT %s: %s\n", alert.Kind, alert.Message)
				}
				return nil
			})
		},
	}
}

func newMetricsValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <export.json>",
		Short: "Check a metric export file against its JSON schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				data, err := rt.store.ReadFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := monitor.ValidateExport(data); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Metric export valid")
				return nil
			})
		},
	}
}
