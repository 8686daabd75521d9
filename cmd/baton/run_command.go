package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"baton/internal/logging"
	"baton/internal/pipeline"
	"baton/internal/stagecontext"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var fixturesPath string
	var requestID string
	var exportPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a campaign through every stage using fixture collaborators",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(fixturesPath) == "" {
				return errors.New("--fixtures is required")
			}
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				lock := flock.New(rt.cfg.LockPath())
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire lock: %w", err)
				}
				if !ok {
					return fmt.Errorf("another baton run holds %s", rt.cfg.LockPath())
				}
				defer func() {
					if err := lock.Unlock(); err != nil {
						rt.logger.Warn("failed to release run lock", logging.Error(err))
					}
				}()

				fx, err := pipeline.LoadFixtures(cmd.Context(), rt.store, fixturesPath)
				if err != nil {
					return err
				}
				if strings.TrimSpace(requestID) != "" {
					fx.Request.ID = requestID
				}

				bg := pipeline.NewBackground(rt.contexts, rt.monitor, rt.logger)
				bg.CleanupInterval = rt.cfg.CleanupInterval()
				bg.MaxAge = rt.cfg.ContextMaxAge()
				bg.HealthInterval = rt.cfg.HealthInterval()
				if err := bg.Start(cmd.Context()); err != nil {
					return err
				}
				defer bg.Stop()

				runner := pipeline.NewRunner(rt.cfg, rt.store, rt.contexts, rt.monitor, fx.Collaborators,
					pipeline.WithLogger(rt.logger),
					pipeline.WithNotifier(rt.notifier),
				)
				result, runErr := runner.Run(cmd.Context(), fx.Request, fx.Overrides())

				if exportPath != "" {
					n, err := rt.monitor.Export(cmd.Context(), exportPath)
					if err != nil {
						return errors.Join(runErr, fmt.Errorf("export metrics: %w", err))
					}
					rt.logger.Info("metrics exported", logging.String("path", exportPath), logging.Int("metrics", n))
				}
				if result == nil {
					return runErr
				}
				if err := printRunResult(cmd, ctx, result); err != nil {
					return errors.Join(runErr, err)
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "", "Fixture file with the request and collaborator output")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Override the fixture request id")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the run's metric history to this file")
	return cmd
}

type runReport struct {
	RequestID string   `json:"request_id"`
	Campaign  string   `json:"campaign_id"`
	Chain     []string `json:"chain"`
	Snapshots []string `json:"snapshots"`
	Quality   string   `json:"quality,omitempty"`
	Delivery  string   `json:"delivery,omitempty"`
	Summary   any      `json:"summary,omitempty"`
}

func printRunResult(cmd *cobra.Command, ctx *commandContext, result *pipeline.Result) error {
	report := runReport{
		RequestID: result.RequestID,
		Campaign:  result.Context.Campaign.ID,
		Chain:     result.Context.Chain(),
		Snapshots: result.Snapshots,
	}
	if result.Quality != nil {
		report.Quality = result.Quality.ApprovalStatus
	}
	if result.Delivery != nil {
		report.Delivery = deliveryLine(result.Delivery)
	}
	if result.Summary != nil {
		report.Summary = result.Summary
	}

	out := cmd.OutOrStdout()
	if ctx.wantJSON(out) {
		return writeJSON(cmd, report)
	}
	fmt.Fprintf(out, "Request %s (campaign %s)\n", report.RequestID, report.Campaign)
	if len(result.Handoffs) > 0 {
		fmt.Fprint(out, renderMetrics(result.Handoffs))
	}
	if report.Quality != "" {
		fmt.Fprintf(out, "Quality: %s\n", report.Quality)
	}
	if report.Delivery != "" {
		fmt.Fprintf(out, "Delivery: %s\n", report.Delivery)
	}
	if result.Summary != nil {
		fmt.Fprintf(out, "Summary: %s\n", result.Summary.Path)
	}
	return nil
}

func deliveryLine(d *stagecontext.DeliveryContext) string {
	parts := []string{d.Status, "via " + d.Channel}
	for _, a := range d.Artifacts {
		parts = append(parts, a.Path)
	}
	return strings.Join(parts, " ")
}
