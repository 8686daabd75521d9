package stagecontext

import (
	"fmt"
	"regexp"
	"strings"
)

// Check categories.
const (
	CategoryContent       = "content"
	CategoryTechnical     = "technical"
	CategoryAccessibility = "accessibility"
)

// DefaultQualityThreshold is the minimum score for a passing quality review.
const DefaultQualityThreshold = 0.8

var imgTag = regexp.MustCompile(`(?i)<img\b[^>]*>`)
var altAttr = regexp.MustCompile(`(?i)\balt\s*=\s*"[^"]+"`)

// EvaluateDesign runs the built-in quality checks over a design and the
// content it was rendered from.
func EvaluateDesign(content ContentContext, design DesignContext) []Check {
	html := design.CompiledTemplate.HTML
	checks := []Check{
		{
			Name:     "headline_present",
			Category: CategoryContent,
			Passed:   content.GeneratedContent.Headline != "" && content.GeneratedContent.Headline != FallbackHeadline,
		},
		{
			Name:     "call_to_action_rendered",
			Category: CategoryContent,
			Passed:   strings.Contains(html, content.GeneratedContent.CallToAction),
		},
		{
			Name:     "template_rendered",
			Category: CategoryTechnical,
			Passed:   strings.TrimSpace(html) != "",
		},
		{
			Name:     "size_within_limit",
			Category: CategoryTechnical,
			Passed:   int64(design.CompiledTemplate.SizeBytes) <= content.TechnicalRequirements.MaxSizeBytes,
			Detail: fmt.Sprintf("%d of %d bytes",
				design.CompiledTemplate.SizeBytes, content.TechnicalRequirements.MaxSizeBytes),
		},
		{
			Name:     "compiler_clean",
			Category: CategoryTechnical,
			Passed:   len(design.CompiledTemplate.Diagnostics) == 0,
			Detail:   strings.Join(design.CompiledTemplate.Diagnostics, "; "),
		},
	}

	missingAlt := 0
	for _, tag := range imgTag.FindAllString(html, -1) {
		if !altAttr.MatchString(tag) {
			missingAlt++
		}
	}
	checks = append(checks, Check{
		Name:     "images_have_alt_text",
		Category: CategoryAccessibility,
		Passed:   missingAlt == 0,
		Detail:   fmt.Sprintf("%d image(s) without alt text", missingAlt),
	})

	unlabeled := 0
	for _, asset := range design.AssetManifest {
		if asset.Kind == "image" && strings.TrimSpace(asset.Alt) == "" {
			unlabeled++
		}
	}
	checks = append(checks, Check{
		Name:     "assets_have_alt_text",
		Category: CategoryAccessibility,
		Passed:   unlabeled == 0,
		Detail:   fmt.Sprintf("%d asset(s) without alt text", unlabeled),
	})
	return checks
}
