package runctx

import (
	"maps"
	"slices"
	"time"

	"baton/internal/stage"
	"baton/internal/stagecontext"
)

// ExecutionConfig controls how the run executes. Timeout is advisory: no
// stage is interrupted when it elapses.
type ExecutionConfig struct {
	Mode         string        `json:"mode" validate:"required"`
	Timeout      time.Duration `json:"timeout"`
	MaxTurns     int           `json:"max_turns" validate:"gte=0"`
	RetryAttempt int           `json:"retry_attempt" validate:"gte=0"`
}

// DataFlow carries results between stages.
type DataFlow struct {
	PreviousResults map[string]any `json:"previous_results"`
	CurrentPayload  map[string]any `json:"current_payload,omitempty"`
	PersistentState map[string]any `json:"persistent_state"`
	CorrelationID   string         `json:"correlation_id" validate:"required"`
	HandoffChain    []string       `json:"handoff_chain"`
}

// QualityConfig controls how strictly stage output is judged.
type QualityConfig struct {
	Strictness      string  `json:"strictness" validate:"oneof=strict lenient"`
	RequireApproval bool    `json:"require_approval"`
	Threshold       float64 `json:"threshold" validate:"gte=0,lte=1"`
	ErrorStrategy   string  `json:"error_strategy" validate:"oneof=halt continue"`
}

// MonitoringConfig controls run diagnostics.
type MonitoringConfig struct {
	Debug     bool           `json:"debug"`
	LogLevel  string         `json:"log_level"`
	Snapshots bool           `json:"snapshots"`
	Metrics   map[string]any `json:"metrics"`
}

// RunContext is the state of one pipeline request.
type RunContext struct {
	RequestID    string                `json:"request_id" validate:"required"`
	TraceID      string                `json:"trace_id" validate:"required"`
	CreatedAt    time.Time             `json:"created_at" validate:"required"`
	WorkflowType string                `json:"workflow_type" validate:"required"`
	Phase        stage.ID              `json:"phase"`
	PhaseIndex   int                   `json:"phase_index" validate:"gte=0"`
	TotalPhases  int                   `json:"total_phases" validate:"gtfield=PhaseIndex"`
	Campaign     stagecontext.Campaign `json:"campaign"`
	Execution    ExecutionConfig       `json:"execution"`
	DataFlow     DataFlow              `json:"data_flow"`
	Quality      QualityConfig         `json:"quality"`
	Monitoring   MonitoringConfig      `json:"monitoring"`
	Extensions   map[string]any        `json:"extensions"`
	Metadata     map[string]any        `json:"metadata"`
}

// CorrelationID returns the run-wide correlation id.
func (rc *RunContext) CorrelationID() string {
	return rc.DataFlow.CorrelationID
}

// Chain returns a copy of the handoff chain.
func (rc *RunContext) Chain() []string {
	return slices.Clone(rc.DataFlow.HandoffChain)
}

// Age reports how long ago the context was created.
func (rc *RunContext) Age(now time.Time) time.Duration {
	return now.Sub(rc.CreatedAt)
}

// Clone returns a copy whose maps and slices are independent of rc. Values
// stored inside the maps are shared.
func (rc *RunContext) Clone() *RunContext {
	if rc == nil {
		return nil
	}
	out := *rc
	out.DataFlow.PreviousResults = cloneMap(rc.DataFlow.PreviousResults)
	out.DataFlow.CurrentPayload = maps.Clone(rc.DataFlow.CurrentPayload)
	out.DataFlow.PersistentState = cloneMap(rc.DataFlow.PersistentState)
	out.DataFlow.HandoffChain = slices.Clone(rc.DataFlow.HandoffChain)
	out.Monitoring.Metrics = cloneMap(rc.Monitoring.Metrics)
	out.Extensions = cloneMap(rc.Extensions)
	out.Metadata = cloneMap(rc.Metadata)
	return &out
}

// RequestBlock renders the request section carried in every handoff payload.
func (rc *RunContext) RequestBlock() map[string]any {
	return map[string]any{
		"request_id":     rc.RequestID,
		"trace_id":       rc.TraceID,
		"workflow_type":  rc.WorkflowType,
		"campaign_id":    rc.Campaign.ID,
		"campaign_name":  rc.Campaign.Name,
		"brand":          rc.Campaign.Brand,
		"campaign_type":  rc.Campaign.Type,
		"language":       rc.Campaign.Language,
		"correlation_id": rc.DataFlow.CorrelationID,
	}
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return maps.Clone(in)
}
