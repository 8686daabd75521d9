package pipeline

import (
	"context"

	"baton/internal/stage"
	"baton/internal/stagecontext"
)

// GenerationRequest is what the content generator is asked to write.
type GenerationRequest struct {
	Campaign stagecontext.Campaign
	Brief    string
}

// ContentGenerator produces structured campaign copy.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (map[string]any, error)
}

// Compiled is a template compiler's output.
type Compiled struct {
	HTML        string
	SizeBytes   int
	Diagnostics []string
}

// TemplateCompiler turns template markup into HTML.
type TemplateCompiler interface {
	Compile(ctx context.Context, markup string) (Compiled, error)
}

// AssetSelector picks assets for a set of tags and campaign type.
type AssetSelector interface {
	Select(ctx context.Context, tags []string, campaignType string) ([]stagecontext.Asset, error)
}

// GeneratorFunc adapts a function to ContentGenerator.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (map[string]any, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (map[string]any, error) {
	return f(ctx, req)
}

// CompilerFunc adapts a function to TemplateCompiler.
type CompilerFunc func(ctx context.Context, markup string) (Compiled, error)

func (f CompilerFunc) Compile(ctx context.Context, markup string) (Compiled, error) {
	return f(ctx, markup)
}

// SelectorFunc adapts a function to AssetSelector.
type SelectorFunc func(ctx context.Context, tags []string, campaignType string) ([]stagecontext.Asset, error)

func (f SelectorFunc) Select(ctx context.Context, tags []string, campaignType string) ([]stagecontext.Asset, error) {
	return f(ctx, tags, campaignType)
}

// Collaborators bundles the external services a run calls.
type Collaborators struct {
	Content  ContentGenerator
	Compiler TemplateCompiler
	Assets   AssetSelector
}

// HealthChecker is implemented by collaborators that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) stage.Health
}

// Health reports each collaborator's readiness. Unset collaborators are
// unhealthy; ones without a HealthCheck are assumed ready.
func (c Collaborators) Health(ctx context.Context) []stage.Health {
	entries := []struct {
		name string
		impl any
	}{
		{"content generator", c.Content},
		{"template compiler", c.Compiler},
		{"asset selector", c.Assets},
	}
	out := make([]stage.Health, 0, len(entries))
	for _, e := range entries {
		switch impl := e.impl.(type) {
		case nil:
			out = append(out, stage.Unhealthy(e.name, "not configured"))
		case HealthChecker:
			h := impl.HealthCheck(ctx)
			h.Name = e.name
			out = append(out, h)
		default:
			out = append(out, stage.Healthy(e.name))
		}
	}
	return out
}
