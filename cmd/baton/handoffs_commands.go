package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"baton/internal/ledger"
	"baton/internal/monitor"
)

func newHandoffsCommand(ctx *commandContext) *cobra.Command {
	handoffsCmd := &cobra.Command{
		Use:   "handoffs",
		Short: "Inspect persisted handoffs",
	}

	handoffsCmd.AddCommand(newHandoffsListCommand(ctx))
	handoffsCmd.AddCommand(newHandoffsShowCommand(ctx))
	handoffsCmd.AddCommand(newHandoffsStatsCommand(ctx))

	return handoffsCmd
}

func newHandoffsListCommand(ctx *commandContext) *cobra.Command {
	var pipelineID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed handoffs, newest first or by pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				store, err := rt.requireLedger()
				if err != nil {
					return err
				}
				var entries []*ledger.Entry
				if id := strings.TrimSpace(pipelineID); id != "" {
					entries, err = store.ListByPipeline(cmd.Context(), id)
				} else {
					entries, err = store.Recent(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if ctx.wantJSON(out) {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "No handoffs recorded")
					return nil
				}
				fmt.Fprint(out, renderEntries(entries))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&pipelineID, "pipeline", "p", "", "Only show handoffs of this pipeline")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries when no pipeline is given")
	return cmd
}

func newHandoffsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <handoff-id>",
		Short: "Load a persisted envelope and verify its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				id := strings.TrimSpace(args[0])
				path := rt.monitor.HandoffPath(id)
				if rt.ledger != nil {
					entry, err := rt.ledger.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					if entry != nil && entry.Status == ledger.StatusFailed {
						return fmt.Errorf("handoff %s failed and has no envelope: %s", id, entry.ErrorMessage)
					}
					if entry != nil && entry.Path != "" {
						path = entry.Path
					}
				}

				env, err := monitor.LoadEnvelope(cmd.Context(), rt.store, path)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if ctx.wantJSON(out) {
					return writeJSON(cmd, env)
				}
				rows := [][]string{
					{"ID", env.HandoffID},
					{"Pipeline", env.PipelineID},
					{"Handoff", env.Source.String() + "->" + env.Target.String()},
					{"Timestamp", env.Timestamp.Format("2006-01-02 15:04:05 MST")},
					{"Size", fmt.Sprintf("%d bytes", env.Metadata.SizeBytes)},
					{"Checksum", env.Metadata.Checksum + " (verified)"},
					{"Request", env.Metadata.RequestID},
					{"Correlation", env.Metadata.CorrelationID},
				}
				for _, w := range env.Metadata.Warnings {
					rows = append(rows, []string{"Warning", w})
				}
				fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newHandoffsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count indexed handoffs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *runtime) error {
				store, err := rt.requireLedger()
				if err != nil {
					return err
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ctx.wantJSON(out) {
					return writeJSON(cmd, stats)
				}
				rows := [][]string{}
				for _, status := range []ledger.Status{ledger.StatusPersisted, ledger.StatusFailed} {
					rows = append(rows, []string{string(status), fmt.Sprint(stats[status])})
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
