package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"baton/internal/fileutil"
	"baton/internal/schema"
	"baton/internal/services"
	"baton/internal/stage"
)

// Envelope is the persisted unit of one successful handoff.
type Envelope struct {
	HandoffID  string           `json:"handoff_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Source     stage.ID         `json:"source"`
	Target     stage.ID         `json:"target"`
	PipelineID string           `json:"pipeline_id"`
	Payload    schema.Payload   `json:"payload"`
	Metadata   EnvelopeMetadata `json:"metadata"`
}

// EnvelopeMetadata describes the serialized payload.
type EnvelopeMetadata struct {
	SizeBytes     int      `json:"size_bytes"`
	Checksum      string   `json:"checksum"`
	RequestID     string   `json:"request_id,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// NewHandoffID builds "<source>-to-<target>-<unix millis>-<suffix>".
func NewHandoffID(source, target stage.ID, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-to-%s-%d-%s", source, target, at.UnixMilli(), suffix)
}

// Canonicalize returns payload in the form it is persisted in together with
// its serialized bytes. Map keys serialize sorted and numbers come back as
// float64, so canonicalizing a loaded payload reproduces the same bytes.
func Canonicalize(payload schema.Payload) (schema.Payload, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	var canonical schema.Payload
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return nil, nil, err
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return nil, nil, err
	}
	return canonical, data, nil
}

// Verify recomputes the payload checksum and compares it to the metadata.
func (e *Envelope) Verify() error {
	_, data, err := Canonicalize(e.Payload)
	if err != nil {
		return services.NewDataError("handoff_envelope", e.HandoffID, "payload is not serializable", services.WithCause(err))
	}
	if sum := fileutil.Checksum(data); sum != e.Metadata.Checksum {
		return services.NewDataError("handoff_envelope", e.HandoffID,
			fmt.Sprintf("checksum mismatch: recorded %s, computed %s", e.Metadata.Checksum, sum))
	}
	if len(data) != e.Metadata.SizeBytes {
		return services.NewDataError("handoff_envelope", e.HandoffID,
			fmt.Sprintf("size mismatch: recorded %d, computed %d", e.Metadata.SizeBytes, len(data)))
	}
	return nil
}

// LoadEnvelope reads a persisted envelope and verifies its checksum.
func LoadEnvelope(ctx context.Context, store *fileutil.Store, path string) (*Envelope, error) {
	var env Envelope
	if err := store.ReadJSON(ctx, path, &env); err != nil {
		return nil, err
	}
	if err := env.Verify(); err != nil {
		return nil, err
	}
	return &env, nil
}
