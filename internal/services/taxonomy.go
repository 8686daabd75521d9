package services

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the coarse error-kind tag shared by every pipeline error.
type Kind string

const (
	KindGeneric         Kind = "pipeline_error"
	KindCampaign        Kind = "campaign_error"
	KindData            Kind = "data_error"
	KindFileOperation   Kind = "file_operation_error"
	KindHandoff         Kind = "handoff_error"
	KindRunContext      Kind = "run_context_error"
	KindValidation      Kind = "validation_error"
	KindExternalService Kind = "external_service_error"
	KindProcessing      Kind = "processing_error"
)

// Severity drives alerting and logging emphasis. No level triggers automatic
// remediation.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity label in JSON payloads.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity label.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(text))
	}
	*s = parsed
	return nil
}

// ParseSeverity maps a label to a Severity.
func ParseSeverity(label string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return 0, false
	}
}

// PipelineError is the contract every taxonomy error satisfies.
type PipelineError interface {
	error
	ErrorID() string
	Kind() Kind
	Timestamp() time.Time
	Severity() Severity
	Retryable() bool
	Metadata() map[string]any
	Hints() []string
	Unwrap() error
}

// Option adjusts the shared fields of a taxonomy error at construction.
type Option func(*Base)

// WithCause records the underlying error.
func WithCause(err error) Option {
	return func(b *Base) { b.cause = err }
}

// WithSeverity overrides the kind's default severity.
func WithSeverity(s Severity) Option {
	return func(b *Base) {
		if s != 0 {
			b.severity = s
		}
	}
}

// WithRetryable overrides the kind's default retryability.
func WithRetryable(retryable bool) Option {
	return func(b *Base) { b.retryable = retryable }
}

// WithMetadata merges contextual metadata into the error.
func WithMetadata(metadata map[string]any) Option {
	return func(b *Base) {
		if len(metadata) == 0 {
			return
		}
		if b.metadata == nil {
			b.metadata = make(map[string]any, len(metadata))
		}
		maps.Copy(b.metadata, metadata)
	}
}

// WithHints replaces the default troubleshooting hints.
func WithHints(hints ...string) Option {
	return func(b *Base) { b.hints = slices.Clone(hints) }
}

// Base carries the fields shared by every pipeline error. Specialised kinds
// embed it and may override Hints.
type Base struct {
	id        string
	kind      Kind
	message   string
	timestamp time.Time
	retryable bool
	severity  Severity
	metadata  map[string]any
	cause     error
	hints     []string
}

func newBase(kind Kind, message string, severity Severity, retryable bool, opts []Option) Base {
	b := Base{
		id:        uuid.NewString(),
		kind:      kind,
		message:   strings.TrimSpace(message),
		timestamp: time.Now().UTC(),
		retryable: retryable,
		severity:  severity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	if b.message == "" {
		b.message = string(kind)
	}
	return b
}

// NewError builds a generic taxonomy error with the given kind tag.
func NewError(kind Kind, message string, opts ...Option) *Base {
	if kind == "" {
		kind = KindGeneric
	}
	b := newBase(kind, message, SeverityMedium, false, opts)
	return &b
}

func (b *Base) Error() string {
	if b.cause != nil {
		return b.message + ": " + b.cause.Error()
	}
	return b.message
}

func (b *Base) ErrorID() string          { return b.id }
func (b *Base) Kind() Kind               { return b.kind }
func (b *Base) Timestamp() time.Time     { return b.timestamp }
func (b *Base) Severity() Severity       { return b.severity }
func (b *Base) Retryable() bool          { return b.retryable }
func (b *Base) Unwrap() error            { return b.cause }
func (b *Base) Message() string          { return b.message }
func (b *Base) Metadata() map[string]any { return maps.Clone(b.metadata) }

// Hints returns the configured troubleshooting hints or the kind defaults.
func (b *Base) Hints() []string {
	if len(b.hints) > 0 {
		return slices.Clone(b.hints)
	}
	return slices.Clone(defaultHints[b.kind])
}

// Is matches the marker error for this error's kind.
func (b *Base) Is(target error) bool {
	if target == ErrPipeline {
		return true
	}
	marker, ok := kindMarkers[b.kind]
	return ok && target == marker
}

func (b *Base) hasCustomHints() bool { return len(b.hints) > 0 }

var kindMarkers = map[Kind]error{
	KindCampaign:        ErrCampaign,
	KindData:            ErrData,
	KindFileOperation:   ErrFileOperation,
	KindHandoff:         ErrHandoff,
	KindRunContext:      ErrRunContext,
	KindValidation:      ErrValidation,
	KindExternalService: ErrExternalService,
	KindProcessing:      ErrProcessing,
}

var defaultHints = map[Kind][]string{
	KindGeneric:         {"check logs for details"},
	KindCampaign:        {"verify the campaign id and storage path", "confirm the campaign directory exists and is readable"},
	KindData:            {"inspect the referenced data file for malformed content"},
	KindFileOperation:   {"check file permissions and free disk space", "retry once the resource is no longer busy"},
	KindHandoff:         {"inspect the upstream stage output", "re-run the handoff after correcting the payload"},
	KindRunContext:      {"verify the run context was created for this request", "check the handoff chain for skipped stages"},
	KindValidation:      {"regenerate the upstream stage output with the missing fields", "compare the payload against the stage contract"},
	KindExternalService: {"check the service status and credentials", "retry later if the service reported a 5xx status"},
	KindProcessing:      {"inspect the stage input", "check collaborator logs for the failing stage"},
}

// CampaignError reports a problem with campaign identity or storage.
type CampaignError struct {
	Base
	CampaignID   string
	CampaignPath string
}

// NewCampaignError builds a campaign error (high severity, not retryable).
func NewCampaignError(campaignID, campaignPath, message string, opts ...Option) *CampaignError {
	return &CampaignError{
		Base:         newBase(KindCampaign, message, SeverityHigh, false, opts),
		CampaignID:   campaignID,
		CampaignPath: campaignPath,
	}
}

// Hints points at the campaign path when known.
func (e *CampaignError) Hints() []string {
	if e.hasCustomHints() || e.CampaignPath == "" {
		return e.Base.Hints()
	}
	return append(e.Base.Hints(), fmt.Sprintf("check that %s is reachable", e.CampaignPath))
}

// DataError reports unreadable or malformed data.
type DataError struct {
	Base
	DataType string
	FilePath string
}

// NewDataError builds a data error (medium severity, not retryable).
func NewDataError(dataType, filePath, message string, opts ...Option) *DataError {
	return &DataError{
		Base:     newBase(KindData, message, SeverityMedium, false, opts),
		DataType: dataType,
		FilePath: filePath,
	}
}

// FileOperationError reports a storage operation that failed, possibly after retries.
type FileOperationError struct {
	Base
	Operation string
	Path      string
	Retry     *RetryContext
}

// NewFileOperationError builds a file-operation error (medium severity).
func NewFileOperationError(operation, path string, retry *RetryContext, message string, opts ...Option) *FileOperationError {
	return &FileOperationError{
		Base:      newBase(KindFileOperation, message, SeverityMedium, false, opts),
		Operation: operation,
		Path:      path,
		Retry:     retry,
	}
}

// Hints adds the attempt count when retries were exhausted.
func (e *FileOperationError) Hints() []string {
	hints := e.Base.Hints()
	if e.hasCustomHints() {
		return hints
	}
	if e.Retry != nil && e.Retry.Attempt > 0 {
		hints = append(hints, fmt.Sprintf("%s on %s failed after %d attempt(s)", e.Operation, e.Path, e.Retry.Attempt))
	}
	return hints
}

// HandoffError reports a failed stage-to-stage transfer.
type HandoffError struct {
	Base
	SourceAgent string
	TargetAgent string
	PayloadType string
}

// NewHandoffError builds a handoff error (high severity, not retryable).
func NewHandoffError(source, target, payloadType, message string, opts ...Option) *HandoffError {
	return &HandoffError{
		Base:        newBase(KindHandoff, message, SeverityHigh, false, opts),
		SourceAgent: source,
		TargetAgent: target,
		PayloadType: payloadType,
	}
}

// RunContextError reports an invalid run context or transition.
type RunContextError struct {
	Base
	RequestID     string
	CorrelationID string
	CurrentPhase  string
}

// NewRunContextError builds a run-context error (high severity, not retryable).
func NewRunContextError(requestID, correlationID, phase, message string, opts ...Option) *RunContextError {
	return &RunContextError{
		Base:          newBase(KindRunContext, message, SeverityHigh, false, opts),
		RequestID:     requestID,
		CorrelationID: correlationID,
		CurrentPhase:  phase,
	}
}

// ValidationError reports one or more contract violations. Problems holds the
// human-readable field-path errors verbatim.
type ValidationError struct {
	Base
	Field         string
	Value         any
	ExpectedShape string
	Problems      []string
}

// NewValidationError builds a validation error (medium severity, never retried).
func NewValidationError(field string, value any, expectedShape, message string, opts ...Option) *ValidationError {
	return &ValidationError{
		Base:          newBase(KindValidation, message, SeverityMedium, false, opts),
		Field:         field,
		Value:         value,
		ExpectedShape: expectedShape,
	}
}

// Hints names the failing field.
func (e *ValidationError) Hints() []string {
	hints := e.Base.Hints()
	if e.hasCustomHints() || e.Field == "" {
		return hints
	}
	return append(hints, fmt.Sprintf("populate %s", e.Field))
}

// ExternalServiceError reports a collaborator service failure.
type ExternalServiceError struct {
	Base
	Service    string
	Endpoint   string
	StatusCode int
}

// NewExternalServiceError builds an external-service error. 5xx statuses are
// retryable and high severity unless overridden.
func NewExternalServiceError(service, endpoint string, statusCode int, message string, opts ...Option) *ExternalServiceError {
	retryable := statusCode >= 500 && statusCode <= 599
	severity := SeverityMedium
	if retryable {
		severity = SeverityHigh
	}
	return &ExternalServiceError{
		Base:       newBase(KindExternalService, message, severity, retryable, opts),
		Service:    service,
		Endpoint:   endpoint,
		StatusCode: statusCode,
	}
}

// ProcessingError reports a failure inside a stage's own processing.
type ProcessingError struct {
	Base
	PipelineStage string
	InputType     string
}

// NewProcessingError builds a processing error (medium severity, not retryable).
func NewProcessingError(stage, inputType, message string, opts ...Option) *ProcessingError {
	return &ProcessingError{
		Base:          newBase(KindProcessing, message, SeverityMedium, false, opts),
		PipelineStage: stage,
		InputType:     inputType,
	}
}
