package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"baton/internal/ledger"
	"baton/internal/monitor"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}

func metricRows(metrics []monitor.Metric) [][]string {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		status := "ok"
		if !m.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			m.Label(),
			status,
			formatDuration(m.Duration),
			strconv.Itoa(m.DataSize),
			m.HandoffID,
		})
	}
	return rows
}

func renderMetrics(metrics []monitor.Metric) string {
	return renderTable(
		[]string{"Handoff", "Status", "Duration", "Bytes", "ID"},
		metricRows(metrics),
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func renderSummary(s monitor.Summary) string {
	rows := [][]string{
		{"Pipeline", s.PipelineID},
		{"Handoffs", strconv.Itoa(s.Total)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Success rate", fmt.Sprintf("%.0f%%", s.SuccessRate*100)},
		{"Average duration", formatDuration(s.AverageDuration)},
		{"Bytes", strconv.FormatInt(s.TotalBytes, 10)},
	}
	for i, label := range s.Chain {
		rows = append(rows, []string{fmt.Sprintf("Chain %d", i+1), label})
	}
	for _, msg := range s.Errors {
		rows = append(rows, []string{"Error", msg})
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}

func renderEntries(entries []*ledger.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID,
			e.PipelineID,
			e.PairLabel(),
			string(e.Status),
			e.CreatedAt.Format(time.RFC3339),
			strconv.FormatInt(e.SizeBytes, 10),
		})
	}
	return renderTable(
		[]string{"ID", "Pipeline", "Handoff", "Status", "Created", "Bytes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
