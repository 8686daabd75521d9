package monitor

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"baton/internal/logging"
	"baton/internal/services"
)

//go:embed metrics_schema.json
var metricsSchema string

const exportVersion = 1

// ExportFile is the on-disk form of the metric history.
type ExportFile struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Metrics    []Metric  `json:"metrics"`
}

// Export writes the full metric history to path and returns how many metrics
// were written.
func (m *Monitor) Export(ctx context.Context, path string) (int, error) {
	file := ExportFile{Version: exportVersion, ExportedAt: m.now().UTC(), Metrics: m.Metrics()}
	if _, err := m.store.WriteJSON(ctx, path, file); err != nil {
		return 0, err
	}
	logging.WithContext(ctx, m.logger).Info("metric history exported",
		logging.String("path", path),
		logging.Int("metrics", len(file.Metrics)),
	)
	return len(file.Metrics), nil
}

// Import merges an exported history into memory and returns how many metrics
// were added. Metrics whose handoff id is already present are skipped. Files
// on disk are not reconciled.
func (m *Monitor) Import(ctx context.Context, path string) (int, error) {
	data, err := m.store.ReadFile(ctx, path)
	if err != nil {
		return 0, err
	}
	if err := ValidateExport(data); err != nil {
		return 0, services.NewDataError("metric_export", path, "metric export does not match schema",
			services.WithCause(err))
	}
	var file ExportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, services.NewDataError("metric_export", path, "parse metric export", services.WithCause(err))
	}
	added := 0
	for _, metric := range file.Metrics {
		if m.history.add(metric) {
			added++
		}
	}
	logging.WithContext(ctx, m.logger).Info("metric history imported",
		logging.String("path", path),
		logging.Int("metrics", len(file.Metrics)),
		logging.Int("added", added),
	)
	return added, nil
}

// ValidateExport checks data against the export JSON schema.
func ValidateExport(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metricsSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	verr := services.NewValidationError(result.Errors()[0].Field(), nil, "metric export schema",
		"metric export invalid: "+strings.Join(problems, "; "))
	verr.Problems = problems
	return verr
}
