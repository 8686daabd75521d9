package monitor

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"baton/internal/fileutil"
	"baton/internal/logging"
	"baton/internal/services"
)

// Summary aggregates one pipeline's handoffs.
type Summary struct {
	PipelineID      string        `json:"pipeline_id"`
	GeneratedAt     time.Time     `json:"generated_at"`
	Total           int           `json:"total"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	TotalBytes      int64         `json:"total_bytes"`
	Chain           []string      `json:"chain"`
	Errors          []string      `json:"errors"`
	Path            string        `json:"-"`
}

// SummaryPath is where the summary for pipelineID is written.
func (m *Monitor) SummaryPath(pipelineID string) string {
	return filepath.Join(m.summaryDir, pipelineID+"-summary.json")
}

// GenerateSummary aggregates the pipeline's metric history, writes it to the
// summary directory, and returns it. Chain labels are ordered by start time
// and include failed attempts.
func (m *Monitor) GenerateSummary(ctx context.Context, pipelineID string) (Summary, error) {
	if strings.TrimSpace(pipelineID) == "" {
		return Summary{}, services.NewValidationError("pipeline_id", pipelineID, "non-empty string", "pipeline id is required")
	}
	summary := Summarize(pipelineID, m.MetricsFor(pipelineID), m.now())
	path := m.SummaryPath(pipelineID)
	if _, err := m.store.WriteJSON(ctx, path, summary); err != nil {
		return Summary{}, err
	}
	summary.Path = path

	logging.WithContext(ctx, m.logger).Info("pipeline summary written",
		logging.String(logging.FieldPipelineID, pipelineID),
		logging.String("path", path),
		logging.Int("handoffs", summary.Total),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Summarize builds a Summary from metrics without writing it.
func Summarize(pipelineID string, metrics []Metric, now time.Time) Summary {
	sorted := append([]Metric(nil), metrics...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartedAt.Before(sorted[j].StartedAt) })

	summary := Summary{
		PipelineID:  pipelineID,
		GeneratedAt: now.UTC(),
		Chain:       make([]string, 0, len(sorted)),
		Errors:      []string{},
	}
	var total time.Duration
	for _, metric := range sorted {
		summary.Total++
		total += metric.Duration
		summary.TotalBytes += int64(metric.DataSize)
		summary.Chain = append(summary.Chain, metric.Label())
		if metric.Success {
			summary.Succeeded++
			continue
		}
		summary.Failed++
		if metric.Error != "" {
			summary.Errors = append(summary.Errors, metric.Error)
		}
	}
	if summary.Total > 0 {
		summary.AverageDuration = total / time.Duration(summary.Total)
		summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Total)
	}
	return summary
}

// LoadSummary reads a summary written by GenerateSummary.
func LoadSummary(ctx context.Context, store *fileutil.Store, path string) (Summary, error) {
	var summary Summary
	if err := store.ReadJSON(ctx, path, &summary); err != nil {
		return Summary{}, err
	}
	summary.Path = path
	return summary, nil
}
