package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers matched with errors.Is. Every taxonomy error matches the marker of
// its kind; Wrap tags ad-hoc errors with one of them.
var (
	ErrPipeline        = errors.New("pipeline error")
	ErrCampaign        = errors.New("campaign error")
	ErrData            = errors.New("data error")
	ErrFileOperation   = errors.New("file operation error")
	ErrHandoff         = errors.New("handoff error")
	ErrRunContext      = errors.New("run context error")
	ErrValidation      = errors.New("validation error")
	ErrExternalService = errors.New("external service error")
	ErrProcessing      = errors.New("processing error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is a flattened, log-friendly view of any error.
type ErrorDetails struct {
	ID        string   `json:"id,omitempty"`
	Kind      Kind     `json:"kind"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Retryable bool     `json:"retryable"`
	Hints     []string `json:"hints,omitempty"`
}

// Details extracts taxonomy metadata from err. Foreign errors are classified
// heuristically.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var pe PipelineError
	if errors.As(err, &pe) {
		return ErrorDetails{
			ID:        pe.ErrorID(),
			Kind:      pe.Kind(),
			Message:   pe.Error(),
			Severity:  pe.Severity(),
			Retryable: pe.Retryable(),
			Hints:     pe.Hints(),
		}
	}
	return ErrorDetails{
		Kind:      KindGeneric,
		Message:   strings.TrimSpace(err.Error()),
		Severity:  SeverityOf(err),
		Retryable: IsRetryable(err),
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
