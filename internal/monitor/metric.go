package monitor

import (
	"slices"
	"sync"
	"time"

	"baton/internal/stage"
)

// Metric is the performance record of one handoff attempt.
type Metric struct {
	HandoffID           string        `json:"handoff_id"`
	PipelineID          string        `json:"pipeline_id"`
	RequestID           string        `json:"request_id,omitempty"`
	CorrelationID       string        `json:"correlation_id,omitempty"`
	Source              stage.ID      `json:"source"`
	Target              stage.ID      `json:"target"`
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration"`
	ValidationDuration  time.Duration `json:"validation_duration"`
	PersistenceDuration time.Duration `json:"persistence_duration"`
	DataSize            int           `json:"data_size"`
	Success             bool          `json:"success"`
	Error               string        `json:"error,omitempty"`
	Warnings            []string      `json:"warnings,omitempty"`
	Path                string        `json:"path,omitempty"`
	Checksum            string        `json:"checksum,omitempty"`
	States              []State       `json:"states,omitempty"`
}

// Label returns the "source->target" chain label.
func (m Metric) Label() string {
	return stage.Label(m.Source, m.Target)
}

// history is the in-memory metric list shared by concurrent runs.
type history struct {
	mu      sync.RWMutex
	metrics []Metric
	ids     map[string]struct{}
}

func newHistory() *history {
	return &history{ids: make(map[string]struct{})}
}

func (h *history) add(m Metric) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.ids[m.HandoffID]; dup {
		return false
	}
	h.ids[m.HandoffID] = struct{}{}
	h.metrics = append(h.metrics, m)
	return true
}

func (h *history) filter(keep func(Metric) bool) []Metric {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Metric, 0, len(h.metrics))
	for _, m := range h.metrics {
		if keep == nil || keep(m) {
			m.Warnings = slices.Clone(m.Warnings)
			m.States = slices.Clone(m.States)
			out = append(out, m)
		}
	}
	return out
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.metrics)
}
