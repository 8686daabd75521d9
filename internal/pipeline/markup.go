package pipeline

import (
	"fmt"
	"html"
	"strings"

	"baton/internal/stagecontext"
)

// templateFor picks the template id for a season and campaign type.
func templateFor(content stagecontext.ContentContext, campaignType string) string {
	kind := strings.ToLower(strings.TrimSpace(campaignType))
	if kind == "" {
		kind = "general"
	}
	return fmt.Sprintf("%s-%s", content.ContextAnalysis.Season, kind)
}

// renderMarkup lays the content out as template markup for the compiler.
func renderMarkup(templateID string, content stagecontext.ContentContext, assets []stagecontext.Asset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<mj-template id=%q>\n", templateID)
	for _, section := range content.GeneratedContent.Sections {
		fmt.Fprintf(&b, "  <mj-section name=%q>\n", section)
		switch section {
		case "hero", "header":
			fmt.Fprintf(&b, "    <mj-text role=\"headline\">%s</mj-text>\n", html.EscapeString(content.GeneratedContent.Headline))
			for _, asset := range assets {
				if asset.Kind == "image" {
					fmt.Fprintf(&b, "    <mj-image src=%q alt=%q />\n", asset.URL, asset.Alt)
				}
			}
		case "footer":
			fmt.Fprintf(&b, "    <mj-button>%s</mj-button>\n", html.EscapeString(content.GeneratedContent.CallToAction))
		default:
			if body := content.GeneratedContent.Body; body != "" {
				fmt.Fprintf(&b, "    <mj-text>%s</mj-text>\n", html.EscapeString(body))
			}
		}
		b.WriteString("  </mj-section>\n")
	}
	if !strings.Contains(b.String(), "<mj-button>") {
		fmt.Fprintf(&b, "  <mj-button>%s</mj-button>\n", html.EscapeString(content.GeneratedContent.CallToAction))
	}
	b.WriteString("</mj-template>\n")
	return b.String()
}
