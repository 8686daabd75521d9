package stagecontext

import (
	"encoding/json"
	"fmt"
	"time"

	"baton/internal/schema"
	"baton/internal/stage"
)

// Metadata describes an assembled handoff payload.
type Metadata struct {
	Source        stage.ID
	Target        stage.ID
	RequestID     string
	CorrelationID string
	AssembledAt   time.Time
}

// ToMap converts a typed context into its JSON-shaped form.
func ToMap(sc Context) (map[string]any, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("encode %s context: %w", sc.StageID(), err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s context: %w", sc.StageID(), err)
	}
	return out, nil
}

// AssemblePayload wraps contexts into a wire payload keyed by each stage's
// payload key, alongside the request and metadata blocks. Upstream contexts
// should be included so the receiving stage sees the full chain.
func AssemblePayload(request map[string]any, meta Metadata, contexts ...Context) (schema.Payload, error) {
	payload := schema.Payload{
		schema.KeyRequest: cloneMap(request),
		schema.KeyMetadata: map[string]any{
			"source":         meta.Source.String(),
			"target":         meta.Target.String(),
			"request_id":     meta.RequestID,
			"correlation_id": meta.CorrelationID,
			"assembled_at":   meta.AssembledAt.UTC().Format(time.RFC3339Nano),
		},
	}
	for _, sc := range contexts {
		if sc == nil {
			continue
		}
		encoded, err := ToMap(sc)
		if err != nil {
			return nil, err
		}
		payload[sc.StageID().PayloadKey()] = encoded
	}
	return payload, nil
}

// FromPayload decodes the stage context stored under its payload key.
func FromPayload[T Context](payload schema.Payload) (T, error) {
	var out T
	key := out.StageID().PayloadKey()
	raw, ok := payload[key]
	if !ok || raw == nil {
		return out, fmt.Errorf("payload has no %s", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
