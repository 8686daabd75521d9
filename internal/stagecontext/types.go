package stagecontext

import (
	"time"

	"baton/internal/stage"
)

// Campaign is the identity shared by every stage context of one run.
type Campaign struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Brand    string `json:"brand" validate:"required"`
	Type     string `json:"type" validate:"required"`
	Path     string `json:"path,omitempty"`
	Language string `json:"language,omitempty"`
}

// Header is stamped on every stage context.
type Header struct {
	CampaignID string    `json:"campaign_id"`
	Stage      stage.ID  `json:"stage"`
	BuiltAt    time.Time `json:"built_at"`
}

// Context is implemented by every stage context variant.
type Context interface {
	StageID() stage.ID
}

// Asset describes one selected creative asset.
type Asset struct {
	ID   string   `json:"id"`
	URL  string   `json:"url"`
	Kind string   `json:"kind"`
	Alt  string   `json:"alt,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// ContentContext is the content stage's canonical output.
type ContentContext struct {
	Header                Header                `json:"header"`
	GeneratedContent      GeneratedContent      `json:"generated_content" validate:"required"`
	PricingAnalysis       PricingAnalysis       `json:"pricing_analysis" validate:"required"`
	ContextAnalysis       ContextAnalysis       `json:"context_analysis" validate:"required"`
	AssetStrategy         AssetStrategy         `json:"asset_strategy" validate:"required"`
	TechnicalRequirements TechnicalRequirements `json:"technical_requirements" validate:"required"`
}

type GeneratedContent struct {
	Headline     string   `json:"headline"`
	Body         string   `json:"body"`
	CallToAction string   `json:"call_to_action"`
	Sections     []string `json:"sections"`
}

type PricingAnalysis struct {
	BasePrice       float64 `json:"base_price"`
	SalePrice       float64 `json:"sale_price"`
	DiscountPercent float64 `json:"discount_percent"`
	Currency        string  `json:"currency"`
}

type ContextAnalysis struct {
	Season   Season   `json:"season"`
	Audience string   `json:"audience"`
	Occasion string   `json:"occasion"`
	Keywords []string `json:"keywords"`
}

type AssetStrategy struct {
	Tags   []string `json:"tags"`
	Style  string   `json:"style"`
	Assets []Asset  `json:"assets"`
}

type TechnicalRequirements struct {
	Format       string `json:"format"`
	Dimensions   string `json:"dimensions"`
	MaxSizeBytes int64  `json:"max_size_bytes"`
}

func (ContentContext) StageID() stage.ID { return stage.Content }

// DesignContext is the design stage's canonical output.
type DesignContext struct {
	Header            Header            `json:"header"`
	TemplateSelection TemplateSelection `json:"template_selection" validate:"required"`
	CompiledTemplate  CompiledTemplate  `json:"compiled_template" validate:"required"`
	AssetManifest     []Asset           `json:"asset_manifest" validate:"required"`
	LayoutDecisions   LayoutDecisions   `json:"layout_decisions" validate:"required"`
}

type TemplateSelection struct {
	TemplateID string `json:"template_id"`
	Reason     string `json:"reason"`
}

type CompiledTemplate struct {
	HTML        string   `json:"html"`
	SizeBytes   int      `json:"size_bytes"`
	Diagnostics []string `json:"diagnostics"`
}

type LayoutDecisions struct {
	Grid        string   `json:"grid"`
	ColorScheme string   `json:"color_scheme"`
	Sections    []string `json:"sections"`
}

func (DesignContext) StageID() stage.ID { return stage.Design }

// QualityContext is the quality stage's canonical output.
type QualityContext struct {
	Header              Header              `json:"header"`
	ValidationResults   ValidationResults   `json:"validation_results" validate:"required"`
	ComplianceStatus    string              `json:"compliance_status" validate:"required"`
	AccessibilityReport AccessibilityReport `json:"accessibility_report" validate:"required"`
	ApprovalStatus      string              `json:"approval_status" validate:"required"`
}

// Check is one quality check outcome.
type Check struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail,omitempty"`
}

type ValidationResults struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Checks    []Check `json:"checks"`
}

type AccessibilityReport struct {
	Level  string   `json:"level"`
	Issues []string `json:"issues"`
}

func (QualityContext) StageID() stage.ID { return stage.Quality }

// Artifact is one delivered file.
type Artifact struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// DeliveryContext is the delivery stage's canonical output.
type DeliveryContext struct {
	Header    Header     `json:"header"`
	Status    string     `json:"status" validate:"required"`
	Channel   string     `json:"channel" validate:"required"`
	Artifacts []Artifact `json:"artifacts" validate:"required"`
}

func (DeliveryContext) StageID() stage.ID { return stage.Delivery }

// Status literals.
const (
	StatusPassed        = "passed"
	StatusFailed        = "failed"
	StatusApproved      = "approved"
	StatusPendingReview = "pending_review"
	StatusRejected      = "rejected"
	StatusDelivered     = "delivered"
	StatusHeld          = "held"
)
