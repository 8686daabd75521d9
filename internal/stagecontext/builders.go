package stagecontext

import (
	"fmt"
	"math"
	"strings"
	"time"

	"baton/internal/stage"
)

// Fallback literals used when collaborator output omits a field.
const (
	FallbackHeadline     = "Untitled campaign"
	FallbackCallToAction = "Learn more"
	FallbackCurrency     = "USD"
	FallbackAudience     = "general"
	FallbackStyle        = "standard"
	FallbackFormat       = "html"
	FallbackDimensions   = "600x800"
	FallbackTemplateID   = "default"
	FallbackChannel      = "email"
)

// DefaultMaxSizeBytes is the technical size limit when none is requested.
const DefaultMaxSizeBytes int64 = 102400

// ContentInput is the raw material for the content stage.
type ContentInput struct {
	// Generated is the content generator's structured output.
	Generated map[string]any
	// Brief is the campaign brief; it seeds the season and keywords when the
	// generator does not supply them.
	Brief   string
	Assets  []Asset
	BuiltAt time.Time
}

// BuildContent normalizes generator output into a ContentContext.
func BuildContent(c Campaign, in ContentInput) ContentContext {
	raw := in.Generated
	if raw == nil {
		raw = map[string]any{}
	}

	base := ParsePrice(lookup(raw, "price", "base_price", "regular_price"))
	sale := ParsePrice(lookup(raw, "sale_price", "offer_price"))
	if sale <= 0 || sale > base {
		sale = base
	}
	discount := 0.0
	if base > 0 && sale < base {
		discount = math.Round((base-sale)/base*10000) / 100
	}

	seasonText := CoerceString(lookup(raw, "season", "occasion"), "")
	if seasonText == "" {
		seasonText = in.Brief + " " + c.Name
	}

	tags := CoerceStrings(lookup(raw, "tags", "asset_tags"), []string{c.Type})
	assets := append([]Asset{}, in.Assets...)

	return ContentContext{
		Header: header(c, stage.Content, in.BuiltAt),
		GeneratedContent: GeneratedContent{
			Headline:     CoerceString(lookup(raw, "headline", "title"), FallbackHeadline),
			Body:         CoerceString(lookup(raw, "body", "copy", "text"), ""),
			CallToAction: CoerceString(lookup(raw, "call_to_action", "cta"), FallbackCallToAction),
			Sections:     CoerceStrings(lookup(raw, "sections"), []string{"hero", "body", "footer"}),
		},
		PricingAnalysis: PricingAnalysis{
			BasePrice:       base,
			SalePrice:       sale,
			DiscountPercent: discount,
			Currency:        strings.ToUpper(CoerceString(lookup(raw, "currency"), FallbackCurrency)),
		},
		ContextAnalysis: ContextAnalysis{
			Season:   NormalizeSeason(seasonText),
			Audience: CoerceString(lookup(raw, "audience", "target_audience"), FallbackAudience),
			Occasion: CoerceString(lookup(raw, "occasion"), ""),
			Keywords: CoerceStrings(lookup(raw, "keywords"), []string{}),
		},
		AssetStrategy: AssetStrategy{
			Tags:   tags,
			Style:  CoerceString(lookup(raw, "style", "tone"), FallbackStyle),
			Assets: assets,
		},
		TechnicalRequirements: TechnicalRequirements{
			Format:       CoerceString(lookup(raw, "format"), FallbackFormat),
			Dimensions:   CoerceString(lookup(raw, "dimensions"), FallbackDimensions),
			MaxSizeBytes: CoerceInt(lookup(raw, "max_size_bytes"), DefaultMaxSizeBytes),
		},
	}
}

// DesignInput is the raw material for the design stage.
type DesignInput struct {
	TemplateID  string
	HTML        string
	SizeBytes   int
	Diagnostics []string
	Assets      []Asset
	BuiltAt     time.Time
}

// BuildDesign assembles a DesignContext from the compiled template and the
// content it was rendered from.
func BuildDesign(c Campaign, content ContentContext, in DesignInput) DesignContext {
	templateID := strings.TrimSpace(in.TemplateID)
	reason := fmt.Sprintf("%s %s campaign", content.ContextAnalysis.Season, c.Type)
	if templateID == "" {
		templateID = FallbackTemplateID
		reason = "no template requested"
	}
	size := in.SizeBytes
	if size <= 0 {
		size = len(in.HTML)
	}
	manifest := in.Assets
	if len(manifest) == 0 {
		manifest = content.AssetStrategy.Assets
	}
	sections := content.GeneratedContent.Sections

	return DesignContext{
		Header:            header(c, stage.Design, in.BuiltAt),
		TemplateSelection: TemplateSelection{TemplateID: templateID, Reason: reason},
		CompiledTemplate: CompiledTemplate{
			HTML:        in.HTML,
			SizeBytes:   size,
			Diagnostics: append([]string{}, in.Diagnostics...),
		},
		AssetManifest: append([]Asset{}, manifest...),
		LayoutDecisions: LayoutDecisions{
			Grid:        gridFor(len(sections)),
			ColorScheme: colorSchemeFor(content.ContextAnalysis.Season),
			Sections:    append([]string{}, sections...),
		},
	}
}

func gridFor(sections int) string {
	switch {
	case sections <= 1:
		return "single"
	case sections <= 3:
		return "stacked"
	default:
		return "two-column"
	}
}

func colorSchemeFor(season Season) string {
	switch season {
	case SeasonSpring:
		return "pastel"
	case SeasonSummer:
		return "bright"
	case SeasonAutumn:
		return "warm"
	case SeasonWinter:
		return "cool"
	default:
		return "neutral"
	}
}

// QualityInput is the raw material for the quality stage.
type QualityInput struct {
	Checks          []Check
	Threshold       float64
	RequireApproval bool
	BuiltAt         time.Time
}

// BuildQuality scores the checks and derives compliance and approval status.
func BuildQuality(c Campaign, in QualityInput) QualityContext {
	checks := append([]Check{}, in.Checks...)
	passed := 0
	issues := []string{}
	for _, check := range checks {
		if check.Passed {
			passed++
			continue
		}
		if check.Category == CategoryAccessibility {
			issues = append(issues, check.Name)
		}
	}
	score := 1.0
	if len(checks) > 0 {
		score = math.Round(float64(passed)/float64(len(checks))*100) / 100
	}
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}
	ok := score >= threshold

	compliance := StatusPassed
	approval := StatusApproved
	switch {
	case !ok:
		compliance = StatusFailed
		approval = StatusRejected
	case in.RequireApproval:
		approval = StatusPendingReview
	}
	level := "AA"
	if len(issues) > 0 {
		level = "none"
	}

	return QualityContext{
		Header: header(c, stage.Quality, in.BuiltAt),
		ValidationResults: ValidationResults{
			Score:     score,
			Threshold: threshold,
			Passed:    ok,
			Checks:    checks,
		},
		ComplianceStatus:    compliance,
		AccessibilityReport: AccessibilityReport{Level: level, Issues: issues},
		ApprovalStatus:      approval,
	}
}

// DeliveryInput is the raw material for the delivery stage.
type DeliveryInput struct {
	Channel   string
	Artifacts []Artifact
	BuiltAt   time.Time
}

// BuildDelivery records the delivered artifacts. Anything not approved is held.
func BuildDelivery(c Campaign, quality QualityContext, in DeliveryInput) DeliveryContext {
	status := StatusDelivered
	if quality.ApprovalStatus != StatusApproved {
		status = StatusHeld
	}
	return DeliveryContext{
		Header:    header(c, stage.Delivery, in.BuiltAt),
		Status:    status,
		Channel:   CoerceString(in.Channel, FallbackChannel),
		Artifacts: append([]Artifact{}, in.Artifacts...),
	}
}

func header(c Campaign, id stage.ID, builtAt time.Time) Header {
	return Header{CampaignID: c.ID, Stage: id, BuiltAt: builtAt.UTC()}
}
