package services

import (
	"fmt"
	"strconv"
	"strings"
)

// New maps an error-kind tag plus a context map to the matching concrete
// error. Recognised field keys are consumed into typed fields; every key is
// also kept as metadata. Unknown tags yield a generic error carrying the tag.
//
// Shared keys: "cause" (error), "severity" (Severity or label), "retryable" (bool).
func New(kind Kind, message string, fields map[string]any) PipelineError {
	opts := []Option{WithMetadata(fields)}
	if cause, ok := fields["cause"].(error); ok {
		opts = append(opts, WithCause(cause))
	}
	if sev, ok := severityField(fields["severity"]); ok {
		opts = append(opts, WithSeverity(sev))
	}
	if retryable, ok := fields["retryable"].(bool); ok {
		opts = append(opts, WithRetryable(retryable))
	}

	switch kind {
	case KindCampaign:
		return NewCampaignError(stringField(fields, "campaign_id"), stringField(fields, "campaign_path"), message, opts...)
	case KindData:
		return NewDataError(stringField(fields, "data_type"), stringField(fields, "file_path"), message, opts...)
	case KindFileOperation:
		rc, _ := fields["retry_context"].(*RetryContext)
		return NewFileOperationError(stringField(fields, "operation"), stringField(fields, "path"), rc, message, opts...)
	case KindHandoff:
		return NewHandoffError(stringField(fields, "source_agent"), stringField(fields, "target_agent"), stringField(fields, "payload_type"), message, opts...)
	case KindRunContext:
		return NewRunContextError(stringField(fields, "request_id"), stringField(fields, "correlation_id"), stringField(fields, "current_phase"), message, opts...)
	case KindValidation:
		err := NewValidationError(stringField(fields, "field"), fields["value"], stringField(fields, "expected_shape"), message, opts...)
		if problems, ok := fields["problems"].([]string); ok {
			err.Problems = append([]string(nil), problems...)
		}
		return err
	case KindExternalService:
		return NewExternalServiceError(stringField(fields, "service"), stringField(fields, "endpoint"), intField(fields, "status_code"), message, opts...)
	case KindProcessing:
		return NewProcessingError(stringField(fields, "pipeline_stage"), stringField(fields, "input_type"), message, opts...)
	default:
		return NewError(kind, message, opts...)
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return 0
}

func severityField(v any) (Severity, bool) {
	switch s := v.(type) {
	case Severity:
		return s, s != 0
	case string:
		return ParseSeverity(s)
	default:
		return 0, false
	}
}
