package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"baton/internal/config"
	"baton/internal/fileutil"
	"baton/internal/ledger"
	"baton/internal/logging"
	"baton/internal/notifications"
	"baton/internal/schema"
	"baton/internal/services"
	"baton/internal/stage"
	"baton/internal/tracing"
)

// Recorder indexes handoff attempts. *ledger.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) error
}

// Handoff is one transfer request.
type Handoff struct {
	Source        stage.ID
	Target        stage.ID
	Payload       schema.Payload
	PipelineID    string
	RequestID     string
	CorrelationID string
	// Chain is the run's handoff chain before this transfer.
	Chain []string
}

// Monitor validates, persists, and measures handoffs.
type Monitor struct {
	store      *fileutil.Store
	validator  *schema.Validator
	handoffDir string
	summaryDir string

	validationEnabled bool
	monitoringEnabled bool
	thresholds        Thresholds

	recorder Recorder
	notifier notifications.Service
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time

	history *history
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logging.NewComponentLogger(logger, "monitor") }
}

// WithRecorder indexes every attempt in r.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithNotifier publishes handoff and alert events on svc.
func WithNotifier(svc notifications.Service) Option {
	return func(m *Monitor) { m.notifier = svc }
}

// WithTracer wraps each attempt in a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Monitor) { m.tracer = tracer }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithThresholds overrides the health-check thresholds.
func WithThresholds(t Thresholds) Option {
	return func(m *Monitor) { m.thresholds = t.withDefaults() }
}

// WithValidation toggles contract validation. Empty payloads are rejected either way.
func WithValidation(enabled bool) Option {
	return func(m *Monitor) { m.validationEnabled = enabled }
}

// WithMonitoring toggles metric history and health alerts.
func WithMonitoring(enabled bool) Option {
	return func(m *Monitor) { m.monitoringEnabled = enabled }
}

// WithMaxPayloadBytes sets the soft payload ceiling.
func WithMaxPayloadBytes(n int64) Option {
	return func(m *Monitor) { m.validator = schema.NewValidator(n) }
}

// New builds a Monitor writing envelopes under handoffDir and summaries
// under summaryDir.
func New(store *fileutil.Store, handoffDir, summaryDir string, opts ...Option) *Monitor {
	m := &Monitor{
		store:             store,
		validator:         schema.NewValidator(0),
		handoffDir:        handoffDir,
		summaryDir:        summaryDir,
		validationEnabled: true,
		monitoringEnabled: true,
		thresholds:        Thresholds{}.withDefaults(),
		notifier:          notifications.NewService(nil, nil),
		tracer:            tracing.Noop().Tracer(),
		logger:            logging.NewComponentLogger(nil, "monitor"),
		now:               time.Now,
		history:           newHistory(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewFromConfig applies the handoff and monitor sections of cfg before opts.
func NewFromConfig(cfg *config.Config, store *fileutil.Store, opts ...Option) *Monitor {
	base := []Option{
		WithMaxPayloadBytes(cfg.Handoff.MaxPayloadBytes),
		WithValidation(cfg.Handoff.ValidationEnabled),
		WithMonitoring(cfg.Handoff.MonitoringEnabled),
		WithThresholds(Thresholds{
			Window:      cfg.HealthWindow(),
			FailureRate: cfg.Monitor.FailureRateThreshold,
			SlowAverage: cfg.SlowHandoff(),
		}),
	}
	return New(store, cfg.HandoffDir(), cfg.SummaryDir(), append(base, opts...)...)
}

// HandoffPath is where the envelope for id is persisted.
func (m *Monitor) HandoffPath(id string) string {
	return filepath.Join(m.handoffDir, id+".json")
}

// MonitorHandoff validates h, persists its envelope, and returns the
// performance record. On failure the returned Metric describes the failed
// attempt and the error is the validation or persistence failure.
func (m *Monitor) MonitorHandoff(ctx context.Context, h Handoff) (Metric, error) {
	started := m.now()
	id := NewHandoffID(h.Source, h.Target, started)
	label := stage.Label(h.Source, h.Target)
	att := newAttempt(started)

	ctx = services.WithStage(ctx, label)
	if h.PipelineID != "" {
		ctx = services.WithPipelineID(ctx, h.PipelineID)
	}
	if h.RequestID != "" {
		ctx = services.WithRequestID(ctx, h.RequestID)
	}
	if h.CorrelationID != "" {
		ctx = services.WithCorrelationID(ctx, h.CorrelationID)
	}
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldHandoffID, id))

	ctx, span := tracing.StartSpan(ctx, m.tracer, "handoff "+label,
		attribute.String(tracing.HandoffIDKey, id),
		attribute.String(tracing.PipelineIDKey, h.PipelineID),
		attribute.String(tracing.SourceStageKey, h.Source.String()),
		attribute.String(tracing.TargetStageKey, h.Target.String()),
		attribute.String(tracing.RequestIDKey, h.RequestID),
		attribute.String(tracing.CorrelationIDKey, h.CorrelationID),
	)
	defer span.End()

	metric := Metric{
		HandoffID:     id,
		PipelineID:    h.PipelineID,
		RequestID:     h.RequestID,
		CorrelationID: h.CorrelationID,
		Source:        h.Source,
		Target:        h.Target,
		StartedAt:     started.UTC(),
	}

	att.move(StateValidating)
	validated, verr := m.validate(h)
	metric.ValidationDuration = m.now().Sub(started)
	metric.DataSize = validated.Size
	metric.Warnings = validated.Warnings
	if verr != nil {
		att.move(StateInvalid)
		metric.Error = verr.Error()
		m.fail(ctx, logger, span, att, &metric, verr, "validation")
		return metric, verr
	}
	att.move(StateValid)
	for _, w := range validated.Warnings {
		logger.Debug("handoff payload warning", logging.String("warning", w))
	}

	att.move(StatePersisting)
	persistStart := m.now()
	env, err := m.persist(ctx, id, started, h)
	metric.PersistenceDuration = m.now().Sub(persistStart)
	if err != nil {
		att.move(StatePersistFailed)
		metric.Error = err.Error()
		m.fail(ctx, logger, span, att, &metric, err, "persistence")
		return metric, err
	}
	att.move(StatePersisted)
	metric.DataSize = env.Metadata.SizeBytes
	metric.Checksum = env.Metadata.Checksum
	metric.Path = m.HandoffPath(id)

	att.move(StateRecorded)
	metric.Duration = m.now().Sub(started)
	metric.Success = true
	metric.States = att.history()
	m.record(ctx, logger, metric)

	span.SetAttributes(attribute.Int(tracing.PayloadBytesKey, metric.DataSize))
	logger.Info("handoff persisted",
		logging.String(logging.FieldEventType, "handoff_persisted"),
		logging.String("path", metric.Path),
		logging.Int("size_bytes", metric.DataSize),
		logging.Duration("validation_duration", metric.ValidationDuration),
		logging.Duration("persistence_duration", metric.PersistenceDuration),
		logging.Int("warnings", len(metric.Warnings)),
	)
	m.publish(ctx, logger, notifications.EventHandoffCompleted, notifications.Payload{
		"handoff_id":     id,
		"pipeline_id":    h.PipelineID,
		"source":         h.Source.String(),
		"target":         h.Target.String(),
		"size_bytes":     metric.DataSize,
		"checksum":       metric.Checksum,
		"duration_ms":    metric.Duration.Milliseconds(),
		"correlation_id": h.CorrelationID,
	})
	return metric, nil
}

func (m *Monitor) validate(h Handoff) (schema.Result, error) {
	pair, err := stage.PairFor(h.Source, h.Target)
	if err != nil {
		return schema.Result{}, services.NewHandoffError(h.Source.String(), h.Target.String(), h.Source.PayloadKey(),
			err.Error(), services.WithCause(err))
	}
	if m.validationEnabled {
		result := m.validator.Validate(h.Payload, pair, h.Chain)
		if !result.Valid {
			return result, result.Err()
		}
		return result, nil
	}
	if len(h.Payload) == 0 {
		result := schema.Result{Pair: pair, Errors: []string{"payload is empty"}}
		return result, result.Err()
	}
	return schema.Result{Valid: true, Pair: pair, Payload: h.Payload}, nil
}

func (m *Monitor) persist(ctx context.Context, id string, at time.Time, h Handoff) (*Envelope, error) {
	canonical, data, err := Canonicalize(h.Payload)
	if err != nil {
		return nil, services.NewDataError("handoff_payload", m.HandoffPath(id), "payload is not serializable",
			services.WithCause(err))
	}
	env := &Envelope{
		HandoffID:  id,
		Timestamp:  at.UTC(),
		Source:     h.Source,
		Target:     h.Target,
		PipelineID: h.PipelineID,
		Payload:    canonical,
		Metadata: EnvelopeMetadata{
			SizeBytes:     len(data),
			Checksum:      fileutil.Checksum(data),
			RequestID:     h.RequestID,
			CorrelationID: h.CorrelationID,
		},
	}
	if _, err := m.store.WriteJSON(ctx, m.HandoffPath(id), env); err != nil {
		return nil, err
	}
	return env, nil
}

func (m *Monitor) fail(ctx context.Context, logger *slog.Logger, span trace.Span, att *attempt, metric *Metric, err error, phase string) {
	att.move(StateRecorded)
	metric.Duration = m.now().Sub(att.began)
	metric.Success = false
	metric.States = att.history()
	m.record(ctx, logger, *metric)

	tracing.SetError(span, err, attribute.String("phase", phase))
	hint := "correct the upstream stage output and retry the handoff"
	if phase == "persistence" {
		hint = "check handoff log directory permissions and free space"
	}
	logging.WarnWithContext(logger, "handoff rejected", "handoff_"+phase+"_failed",
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "run context stays at its last advanced phase"),
		logging.Error(err),
	)
	m.publish(ctx, logger, notifications.EventHandoffFailed, notifications.Payload{
		"handoff_id":  metric.HandoffID,
		"pipeline_id": metric.PipelineID,
		"source":      metric.Source.String(),
		"target":      metric.Target.String(),
		"phase":       phase,
		"error":       err.Error(),
	})
}

func (m *Monitor) record(ctx context.Context, logger *slog.Logger, metric Metric) {
	if m.monitoringEnabled {
		m.history.add(metric)
	}
	if m.recorder == nil || strings.TrimSpace(metric.PipelineID) == "" {
		return
	}
	status := ledger.StatusPersisted
	if !metric.Success {
		status = ledger.StatusFailed
	}
	entry := ledger.Entry{
		ID:            metric.HandoffID,
		PipelineID:    metric.PipelineID,
		RequestID:     metric.RequestID,
		CorrelationID: metric.CorrelationID,
		Source:        metric.Source.String(),
		Target:        metric.Target.String(),
		Status:        status,
		CreatedAt:     metric.StartedAt,
		Path:          metric.Path,
		SizeBytes:     int64(metric.DataSize),
		Checksum:      metric.Checksum,
		Duration:      metric.Duration,
		ErrorMessage:  metric.Error,
	}
	if err := m.recorder.Record(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "ledger record failed", "ledger_record_failed",
			logging.String(logging.FieldErrorHint, "inspect or delete the ledger database"),
			logging.String(logging.FieldImpact, "envelope file remains the source of truth"),
			logging.Error(err),
		)
	}
}

func (m *Monitor) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("event publish failed", logging.String(logging.FieldEventType, string(event)), logging.Error(err))
	}
}

// Metrics returns a copy of the metric history.
func (m *Monitor) Metrics() []Metric {
	return m.history.filter(nil)
}

// MetricsFor returns the history entries of one pipeline.
func (m *Monitor) MetricsFor(pipelineID string) []Metric {
	return m.history.filter(func(metric Metric) bool { return metric.PipelineID == pipelineID })
}
