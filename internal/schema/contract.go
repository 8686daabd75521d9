package schema

import (
	"baton/internal/stage"
)

// Top-level envelope keys every handoff payload carries.
const (
	KeyRequest  = "request"
	KeyMetadata = "metadata"
)

// Contract is the required-field contract for one stage pair.
type Contract struct {
	Pair stage.Pair
	// PayloadKey is the top-level key holding the source stage's context.
	PayloadKey string
	// Required lists keys that must be present (and non-null) under PayloadKey.
	Required []string
	// Recommended lists sub-fields whose absence only produces a warning,
	// keyed by the required field they live under.
	Recommended map[string][]string
	// Upstream is the stage whose context must accompany the payload. The
	// handoff chain must also record the preceding pair.
	Upstream *stage.ID
}

// TopLevel returns the required top-level envelope keys.
func (c Contract) TopLevel() []string {
	return []string{KeyRequest, KeyMetadata, c.PayloadKey}
}

// ContractFor returns the contract for p.
func ContractFor(p stage.Pair) Contract {
	switch p {
	case stage.PairContentDesign:
		return Contract{
			Pair:       p,
			PayloadKey: stage.Content.PayloadKey(),
			Required: []string{
				"generated_content",
				"pricing_analysis",
				"context_analysis",
				"asset_strategy",
				"technical_requirements",
			},
			Recommended: map[string][]string{
				"generated_content":      {"headline", "body", "call_to_action"},
				"pricing_analysis":       {"base_price", "currency"},
				"context_analysis":       {"season", "audience"},
				"technical_requirements": {"format", "dimensions"},
			},
		}
	case stage.PairDesignQuality:
		upstream := stage.Content
		return Contract{
			Pair:       p,
			PayloadKey: stage.Design.PayloadKey(),
			Required: []string{
				"template_selection",
				"compiled_template",
				"asset_manifest",
				"layout_decisions",
			},
			Recommended: map[string][]string{
				"template_selection": {"template_id"},
				"compiled_template":  {"html", "size_bytes"},
			},
			Upstream: &upstream,
		}
	case stage.PairQualityDelivery:
		upstream := stage.Design
		return Contract{
			Pair:       p,
			PayloadKey: stage.Quality.PayloadKey(),
			Required: []string{
				"validation_results",
				"compliance_status",
				"accessibility_report",
				"approval_status",
			},
			Recommended: map[string][]string{
				"validation_results":   {"score"},
				"accessibility_report": {"issues"},
			},
			Upstream: &upstream,
		}
	}
	panic("schema: no contract for " + p.String())
}
