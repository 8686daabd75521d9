package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"baton/internal/services"
	"baton/internal/stage"
)

// DefaultMaxPayloadBytes is the soft payload ceiling.
const DefaultMaxPayloadBytes int64 = 10 * 1024 * 1024

// Payload is the JSON-shaped handoff body.
type Payload = map[string]any

// Result is the outcome of validating one payload.
type Result struct {
	Valid    bool
	Pair     stage.Pair
	Payload  Payload
	Errors   []string
	Warnings []string
	// Size is the serialized payload length in bytes.
	Size int
}

// Err returns nil for a valid result, otherwise a *services.ValidationError
// naming the first failing field and carrying every problem.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	field := ""
	if len(r.Errors) > 0 {
		field, _, _ = strings.Cut(r.Errors[0], " ")
	}
	verr := services.NewValidationError(field, nil, r.Pair.Label()+" contract",
		fmt.Sprintf("%s payload failed validation: %s", r.Pair.Label(), strings.Join(r.Errors, "; ")),
		services.WithMetadata(map[string]any{"pair": r.Pair.Label(), "size_bytes": r.Size}),
	)
	verr.Problems = append([]string(nil), r.Errors...)
	return verr
}

// Validator checks payloads against stage-pair contracts.
type Validator struct {
	maxBytes int64
}

// NewValidator builds a Validator. A non-positive ceiling selects the default.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// MaxBytes returns the soft payload ceiling.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks payload against the contract for pair. chain is the run's
// handoff chain so far. Pairs after content->design fail unless the payload
// carries the upstream stage context and chain records the preceding pair.
func (v *Validator) Validate(payload Payload, pair stage.Pair, chain []string) Result {
	result := Result{Pair: pair, Payload: payload}

	if len(payload) == 0 {
		result.Errors = append(result.Errors, "payload is empty")
		return result
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		result.Errors = append(result.Errors, "payload is not serializable: "+err.Error())
		return result
	}
	result.Size = len(encoded)
	if int64(result.Size) > v.maxBytes {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("payload size %d bytes exceeds soft limit of %d bytes", result.Size, v.maxBytes))
	}

	contract := ContractFor(pair)
	for _, key := range contract.TopLevel() {
		value, ok := payload[key]
		switch {
		case !ok:
			result.Errors = append(result.Errors, key+" is required")
		case value == nil:
			result.Errors = append(result.Errors, key+" must not be null")
		case !isObject(value):
			result.Errors = append(result.Errors, key+" must be an object")
		}
	}

	if body, ok := asObject(payload[contract.PayloadKey]); ok {
		for _, field := range contract.Required {
			path := contract.PayloadKey + "." + field
			value, present := body[field]
			switch {
			case !present:
				result.Errors = append(result.Errors, path+" is required")
				continue
			case value == nil:
				result.Errors = append(result.Errors, path+" must not be null")
				continue
			}
			result.Warnings = append(result.Warnings, recommendedWarnings(path, value, contract.Recommended[field])...)
		}
	}

	result.Errors = append(result.Errors, chainViolations(contract, payload, chain)...)

	result.Valid = len(result.Errors) == 0
	return result
}

func chainViolations(contract Contract, payload Payload, chain []string) []string {
	if contract.Upstream == nil {
		return nil
	}
	var problems []string
	upstreamKey := contract.Upstream.PayloadKey()
	if value, ok := payload[upstreamKey]; !ok || isEmpty(value) {
		problems = append(problems, fmt.Sprintf("%s chain integrity: %s handoff must carry %s",
			upstreamKey, contract.Pair.Label(), upstreamKey))
	}
	prev := mustPredecessor(contract.Pair)
	if !slices.Contains(chain, prev.Label()) {
		problems = append(problems, fmt.Sprintf("handoff_chain chain integrity: %s handoff requires a recorded %s handoff",
			contract.Pair.Label(), prev.Label()))
	}
	return problems
}

func mustPredecessor(p stage.Pair) stage.Pair {
	prev, _ := p.Predecessor()
	return prev
}

func recommendedWarnings(path string, value any, keys []string) []string {
	obj, ok := asObject(value)
	if !ok || len(keys) == 0 {
		return nil
	}
	var warnings []string
	for _, key := range keys {
		if sub, present := obj[key]; !present || isEmpty(sub) {
			warnings = append(warnings, path+"."+key+" is missing (optional)")
		}
	}
	sort.Strings(warnings)
	return warnings
}

func asObject(value any) (map[string]any, bool) {
	obj, ok := value.(map[string]any)
	return obj, ok
}

func isObject(value any) bool {
	_, ok := asObject(value)
	return ok
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
