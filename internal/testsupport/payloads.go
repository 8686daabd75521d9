package testsupport

import (
	"os"
	"testing"
	"time"

	"baton/internal/config"
	"baton/internal/schema"
	"baton/internal/stage"
	"baton/internal/stagecontext"
)

// BuiltAt is the fixed build time stamped on sample contexts.
var BuiltAt = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

// Campaign returns a sample campaign whose workspace directory exists.
func Campaign(t testing.TB, cfg *config.Config) stagecontext.Campaign {
	t.Helper()
	c := stagecontext.Campaign{
		ID:       "camp-spring",
		Name:     "Spring Refresh",
		Brand:    "Acme",
		Type:     "retail",
		Language: "en",
		Path:     cfg.CampaignDir("camp-spring"),
	}
	if err := os.MkdirAll(c.Path, 0o755); err != nil {
		t.Fatalf("mkdir campaign: %v", err)
	}
	return c
}

// Content builds a complete content context for c.
func Content(c stagecontext.Campaign) stagecontext.ContentContext {
	return stagecontext.BuildContent(c, stagecontext.ContentInput{
		Generated: map[string]any{
			"headline":       "Bloom into savings",
			"body":           "Fresh picks for the season.",
			"call_to_action": "Shop now",
			"price":          "40.00",
			"sale_price":     "30.00",
			"audience":       "gardeners",
			"sections":       []any{"hero", "offers"},
		},
		Brief:   "spring garden promotion",
		Assets:  []stagecontext.Asset{{ID: "a1", URL: "https://cdn.example/a1.jpg", Kind: "image", Alt: "Tulips"}},
		BuiltAt: BuiltAt,
	})
}

// Design builds a design context rendered from content.
func Design(c stagecontext.Campaign, content stagecontext.ContentContext) stagecontext.DesignContext {
	return stagecontext.BuildDesign(c, content, stagecontext.DesignInput{
		TemplateID: "spring-hero",
		HTML:       `<h1>Bloom into savings</h1><a href="/shop">Shop now</a><img src="a1.jpg" alt="Tulips">`,
		Assets:     content.AssetStrategy.Assets,
		BuiltAt:    BuiltAt,
	})
}

// Quality evaluates design against content.
func Quality(c stagecontext.Campaign, content stagecontext.ContentContext, design stagecontext.DesignContext) stagecontext.QualityContext {
	return stagecontext.BuildQuality(c, stagecontext.QualityInput{
		Checks:  stagecontext.EvaluateDesign(content, design),
		BuiltAt: BuiltAt,
	})
}

// Payload assembles a wire payload for the from->to handoff.
func Payload(t testing.TB, from, to stage.ID, contexts ...stagecontext.Context) schema.Payload {
	t.Helper()
	payload, err := stagecontext.AssemblePayload(
		map[string]any{"request_id": "req-test", "campaign_id": "camp-spring"},
		stagecontext.Metadata{Source: from, Target: to, RequestID: "req-test", CorrelationID: "corr-test", AssembledAt: BuiltAt},
		contexts...,
	)
	if err != nil {
		t.Fatalf("assemble payload: %v", err)
	}
	return payload
}

// ContentPayload returns a valid content->design payload.
func ContentPayload(t testing.TB, c stagecontext.Campaign) schema.Payload {
	t.Helper()
	return Payload(t, stage.Content, stage.Design, Content(c))
}

// DesignPayload returns a valid design->quality payload carrying its content upstream.
func DesignPayload(t testing.TB, c stagecontext.Campaign) schema.Payload {
	t.Helper()
	content := Content(c)
	return Payload(t, stage.Design, stage.Quality, content, Design(c, content))
}
