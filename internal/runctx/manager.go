package runctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"baton/internal/fileutil"
	"baton/internal/logging"
	"baton/internal/retry"
	"baton/internal/services"
	"baton/internal/stage"
	"baton/internal/stagecontext"
)

// DefaultMaxAge is the idle TTL applied when Cleanup receives zero.
const DefaultMaxAge = time.Hour

// DefaultWorkflowType labels runs created without an explicit workflow.
const DefaultWorkflowType = "campaign-production"

// Request is the entry payload of a pipeline run.
type Request struct {
	// ID is the request identifier; one is generated when empty.
	ID       string
	Campaign stagecontext.Campaign
	Brief    string
}

// Overrides is the partial context applied over defaults at creation.
type Overrides struct {
	Phase         *stage.ID
	WorkflowType  string
	TraceID       string
	CorrelationID string
	Execution     *ExecutionConfig
	Quality       *QualityConfig
	Monitoring    *MonitoringConfig
	Extensions    map[string]any
	Metadata      map[string]any
}

// Manager owns the run context registry.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]*RunContext

	store     *fileutil.Store
	debug     *fileutil.Store
	logger    *slog.Logger
	snapshots bool
	debugDir  string
	now       func() time.Time
	validate  *validator.Validate
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.NewComponentLogger(logger, "runctx") }
}

// WithSnapshots enables debug snapshots under dir.
func WithSnapshots(dir string) Option {
	return func(m *Manager) {
		m.snapshots = strings.TrimSpace(dir) != ""
		m.debugDir = dir
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds an empty registry persisting through store.
func NewManager(store *fileutil.Store, opts ...Option) *Manager {
	m := &Manager{
		contexts: make(map[string]*RunContext),
		store:    store,
		logger:   logging.NewComponentLogger(nil, "runctx"),
		now:      time.Now,
		validate: newValidate(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if store != nil {
		m.debug = store.WithPolicy(retry.Lean)
	}
	return m
}

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Create builds and registers a RunContext. Missing campaign identity fails
// immediately rather than being defaulted; so does a missing campaign path
// for any phase after orchestration.
func (m *Manager) Create(ctx context.Context, req Request, partial Overrides) (*RunContext, error) {
	phase := stage.Orchestration
	if partial.Phase != nil {
		phase = *partial.Phase
	}
	if !phase.Valid() {
		return nil, services.NewValidationError("phase", int(phase), "known stage", "unknown phase")
	}

	campaign := req.Campaign
	missing := []struct{ field, value string }{
		{"campaign.id", campaign.ID},
		{"campaign.name", campaign.Name},
		{"campaign.brand", campaign.Brand},
		{"campaign.type", campaign.Type},
	}
	if phase != stage.Orchestration {
		missing = append(missing, struct{ field, value string }{"campaign.path", campaign.Path})
	}
	for _, entry := range missing {
		if strings.TrimSpace(entry.value) == "" {
			return nil, services.NewValidationError(entry.field, entry.value, "non-empty string",
				"cannot create run context: "+entry.field+" is required",
				services.WithHints("Supply "+entry.field+" in the pipeline request"))
		}
	}

	now := m.now().UTC()
	requestID := firstNonEmpty(req.ID, uuid.NewString())
	rc := &RunContext{
		RequestID:    requestID,
		TraceID:      firstNonEmpty(partial.TraceID, uuid.NewString()),
		CreatedAt:    now,
		WorkflowType: firstNonEmpty(partial.WorkflowType, DefaultWorkflowType),
		Phase:        phase,
		PhaseIndex:   phase.Index(),
		TotalPhases:  stage.TotalPhases,
		Campaign:     campaign,
		Execution: ExecutionConfig{
			Mode:     "sequential",
			Timeout:  30 * time.Minute,
			MaxTurns: 10,
		},
		DataFlow: DataFlow{
			PreviousResults: map[string]any{},
			PersistentState: map[string]any{},
			CorrelationID:   firstNonEmpty(partial.CorrelationID, uuid.NewString()),
			HandoffChain:    []string{},
		},
		Quality: QualityConfig{
			Strictness:    "strict",
			Threshold:     stagecontext.DefaultQualityThreshold,
			ErrorStrategy: "halt",
		},
		Monitoring: MonitoringConfig{
			LogLevel:  "info",
			Snapshots: m.snapshots,
			Metrics:   map[string]any{},
		},
		Extensions: cloneMap(partial.Extensions),
		Metadata:   cloneMap(partial.Metadata),
	}
	if req.Brief != "" {
		rc.Metadata["brief"] = req.Brief
	}
	if partial.Execution != nil {
		rc.Execution = *partial.Execution
	}
	if partial.Quality != nil {
		rc.Quality = *partial.Quality
	}
	if partial.Monitoring != nil {
		rc.Monitoring = *partial.Monitoring
		rc.Monitoring.Metrics = cloneMap(partial.Monitoring.Metrics)
	}

	if err := m.structural(rc); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.contexts[requestID]; exists {
		m.mu.Unlock()
		return nil, services.NewRunContextError(requestID, rc.DataFlow.CorrelationID, phase.String(),
			"run context already registered")
	}
	m.contexts[requestID] = rc
	m.mu.Unlock()

	m.logger.Info("run context created",
		logging.String(logging.FieldRequestID, requestID),
		logging.String(logging.FieldPipelineID, campaign.ID),
		logging.String(logging.FieldCorrelationID, rc.DataFlow.CorrelationID),
		logging.String("phase", phase.String()),
	)
	m.snapshot(ctx, rc)
	return rc.Clone(), nil
}

// AdvanceForHandoff returns a new context moved to the target stage: the
// phase advances, the chain gains a "from->to" label, the source stage's
// context is merged into PreviousResults under the source stage name, and
// the transition time is recorded in the monitoring metrics. The registry
// entry for the request id is overwritten with the result.
func (m *Manager) AdvanceForHandoff(ctx context.Context, rc *RunContext, from, to stage.ID, payload map[string]any) (*RunContext, error) {
	if rc == nil {
		return nil, services.NewRunContextError("", "", "", "advance: nil run context")
	}
	if _, err := stage.PairFor(from, to); err != nil {
		return nil, services.NewHandoffError(from.String(), to.String(), "stage_context", err.Error(),
			services.WithCause(err))
	}
	if rc.Phase != from && !(rc.Phase == stage.Orchestration && from == stage.Content) {
		return nil, services.NewRunContextError(rc.RequestID, rc.CorrelationID(), rc.Phase.String(),
			fmt.Sprintf("handoff source %s does not match current phase %s", from, rc.Phase))
	}
	if to.Index() <= rc.PhaseIndex {
		return nil, services.NewRunContextError(rc.RequestID, rc.CorrelationID(), rc.Phase.String(),
			fmt.Sprintf("phase regression: cannot move from %s (index %d) to %s (index %d)",
				rc.Phase, rc.PhaseIndex, to, to.Index()))
	}

	next := rc.Clone()
	next.Phase = to
	next.PhaseIndex = to.Index()
	label := stage.Label(from, to)
	next.DataFlow.HandoffChain = append(next.DataFlow.HandoffChain, label)
	if stageResult, ok := payload[from.PayloadKey()]; ok {
		next.DataFlow.PreviousResults[from.String()] = stageResult
	} else {
		next.DataFlow.PreviousResults[from.String()] = maps.Clone(payload)
	}
	next.DataFlow.CurrentPayload = maps.Clone(payload)
	next.Monitoring.Metrics["handoff:"+label] = m.now().UTC().Format(time.RFC3339Nano)

	m.mu.Lock()
	if current, ok := m.contexts[next.RequestID]; ok {
		if err := checkSuccessor(current, next); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	m.contexts[next.RequestID] = next
	m.mu.Unlock()

	m.logger.Info("run context advanced",
		logging.String(logging.FieldRequestID, next.RequestID),
		logging.String(logging.FieldStage, label),
		logging.Int("phase_index", next.PhaseIndex),
		logging.Int("chain_length", len(next.DataFlow.HandoffChain)),
	)
	m.snapshot(ctx, next)
	return next.Clone(), nil
}

// Validate runs the structural check and confirms the campaign path exists.
// The returned error names the first failing field.
func (m *Manager) Validate(ctx context.Context, rc *RunContext) error {
	if rc == nil {
		return services.NewValidationError("run_context", nil, "RunContext", "run context is nil")
	}
	if err := m.structural(rc); err != nil {
		return err
	}
	if rc.Phase != stage.Orchestration || rc.Campaign.Path != "" {
		if strings.TrimSpace(rc.Campaign.Path) == "" {
			return services.NewValidationError("campaign.path", "", "existing directory", "campaign.path is required")
		}
		exists, err := m.store.Exists(ctx, rc.Campaign.Path)
		if err != nil {
			return err
		}
		if !exists {
			campaignErr := services.NewCampaignError(rc.Campaign.ID, rc.Campaign.Path,
				"campaign path is not reachable: "+rc.Campaign.Path)
			return services.NewValidationError("campaign.path", rc.Campaign.Path, "existing directory",
				"campaign.path failed existence check", services.WithCause(campaignErr))
		}
	}
	return nil
}

func (m *Manager) structural(rc *RunContext) error {
	err := m.validate.Struct(rc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return services.NewValidationError("run_context", nil, "RunContext", err.Error(), services.WithCause(err))
	}
	first := verrs[0]
	field := first.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fe.Namespace()+" failed "+fe.Tag())
	}
	verr := services.NewValidationError(field, first.Value(), first.Tag(),
		"run context invalid: "+field+" failed "+first.Tag(), services.WithCause(err))
	verr.Problems = problems
	return verr
}

// Get returns a copy of the registered context for requestID.
func (m *Manager) Get(requestID string) (*RunContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rc, ok := m.contexts[requestID]
	if !ok {
		return nil, false
	}
	return rc.Clone(), true
}

// Update overwrites a registered context. The correlation id must be
// unchanged, the chain must extend the registered chain, and the phase index
// must not decrease.
func (m *Manager) Update(rc *RunContext) error {
	if rc == nil {
		return services.NewRunContextError("", "", "", "update: nil run context")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.contexts[rc.RequestID]
	if !ok {
		return services.NewRunContextError(rc.RequestID, rc.CorrelationID(), rc.Phase.String(),
			"run context not registered", services.WithCause(services.ErrNotFound))
	}
	if err := checkSuccessor(current, rc); err != nil {
		return err
	}
	m.contexts[rc.RequestID] = rc.Clone()
	return nil
}

// checkSuccessor reports whether next may replace the registered current
// context: same correlation id, no lower phase index, and a chain that
// extends the registered one.
func checkSuccessor(current, next *RunContext) error {
	switch {
	case current.CorrelationID() != next.CorrelationID():
		return services.NewRunContextError(next.RequestID, current.CorrelationID(), next.Phase.String(),
			"correlation id is immutable")
	case next.PhaseIndex < current.PhaseIndex:
		return services.NewRunContextError(next.RequestID, current.CorrelationID(), next.Phase.String(),
			fmt.Sprintf("phase index cannot decrease (registered %d, got %d)", current.PhaseIndex, next.PhaseIndex))
	case len(next.DataFlow.HandoffChain) < len(current.DataFlow.HandoffChain) ||
		!slices.Equal(next.DataFlow.HandoffChain[:len(current.DataFlow.HandoffChain)], current.DataFlow.HandoffChain):
		return services.NewRunContextError(next.RequestID, current.CorrelationID(), next.Phase.String(),
			"handoff chain is append-only")
	}
	return nil
}

// Cleanup removes contexts created more than maxAge ago and returns how many
// were removed. A non-positive maxAge selects DefaultMaxAge. Debug snapshots
// of removed contexts are deleted.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	return m.sweep(context.Background(), maxAge)
}

func (m *Manager) sweep(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := m.now()
	m.mu.Lock()
	var expired []string
	for id, rc := range m.contexts {
		if rc.Age(now) > maxAge {
			delete(m.contexts, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()
	if len(expired) == 0 {
		return 0
	}
	if m.snapshots {
		for _, id := range expired {
			if err := m.debug.Remove(ctx, m.SnapshotPath(id)); err != nil {
				logging.WarnWithContext(m.logger, "context snapshot removal failed", "context_snapshot_cleanup_failed",
					logging.String(logging.FieldRequestID, id),
					logging.String(logging.FieldErrorHint, "remove the stale snapshot from debug_dir manually"),
					logging.Error(err),
				)
			}
		}
	}
	m.logger.Info("run contexts swept",
		logging.Int("removed", len(expired)),
		logging.Duration("max_age", maxAge),
	)
	return len(expired)
}

// Len returns the number of registered contexts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}

// RunSweeper sweeps expired contexts every interval until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx, maxAge)
		}
	}
}

// SnapshotPath is where the debug snapshot for requestID is written.
func (m *Manager) SnapshotPath(requestID string) string {
	return filepath.Join(m.debugDir, "context-snapshot-"+requestID+".json")
}

// WriteSnapshot persists rc to the debug directory and returns the path.
// Snapshots are best effort and retry under the lean policy.
func (m *Manager) WriteSnapshot(ctx context.Context, rc *RunContext) (string, error) {
	if m.debugDir == "" {
		return "", errors.New("debug snapshots are not configured")
	}
	path := m.SnapshotPath(rc.RequestID)
	if _, err := m.debug.WriteJSON(ctx, path, rc); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSnapshot reads a debug snapshot written by WriteSnapshot.
func LoadSnapshot(ctx context.Context, store *fileutil.Store, path string) (*RunContext, error) {
	var rc RunContext
	if err := store.ReadJSON(ctx, path, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

func (m *Manager) snapshot(ctx context.Context, rc *RunContext) {
	if !m.snapshots || !rc.Monitoring.Snapshots {
		return
	}
	if _, err := m.WriteSnapshot(ctx, rc); err != nil {
		logging.WarnWithContext(m.logger, "context snapshot failed", "context_snapshot_failed",
			logging.String(logging.FieldRequestID, rc.RequestID),
			logging.String(logging.FieldErrorHint, "check debug_dir permissions"),
			logging.String(logging.FieldImpact, "debug snapshot missing; run continues"),
			logging.Error(err),
		)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
