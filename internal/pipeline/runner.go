package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"baton/internal/config"
	"baton/internal/fileutil"
	"baton/internal/logging"
	"baton/internal/monitor"
	"baton/internal/notifications"
	"baton/internal/runctx"
	"baton/internal/services"
	"baton/internal/stage"
	"baton/internal/stagecontext"
)

// ExtensionChannel names the run-context extension holding the delivery
// channel.
const ExtensionChannel = "delivery_channel"

// Result is everything a run produced, including partial output when a
// stage failed.
type Result struct {
	RequestID string
	Context   *runctx.RunContext
	Content   *stagecontext.ContentContext
	Design    *stagecontext.DesignContext
	Quality   *stagecontext.QualityContext
	Delivery  *stagecontext.DeliveryContext
	Snapshots []string
	Handoffs  []monitor.Metric
	Summary   *monitor.Summary
}

// Runner drives requests through the fixed stage order.
type Runner struct {
	cfg      *config.Config
	store    *fileutil.Store
	contexts *runctx.Manager
	monitor  *monitor.Monitor
	collab   Collaborators
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logging.NewComponentLogger(logger, "pipeline") }
}

// WithNotifier publishes stage and pipeline events on svc.
func WithNotifier(svc notifications.Service) Option {
	return func(r *Runner) {
		if svc != nil {
			r.notifier = svc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner wires a runner over the shared services.
func NewRunner(cfg *config.Config, store *fileutil.Store, contexts *runctx.Manager, mon *monitor.Monitor, collab Collaborators, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		store:    store,
		contexts: contexts,
		monitor:  mon,
		collab:   collab,
		notifier: notifications.NewService(nil, nil),
		logger:   logging.NewComponentLogger(nil, "pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes content, design, quality, and delivery for req. A summary is
// generated whether or not the run succeeds; on failure the partial result is
// returned alongside the error.
func (r *Runner) Run(ctx context.Context, req runctx.Request, overrides runctx.Overrides) (*Result, error) {
	var notReady []string
	for _, h := range r.collab.Health(ctx) {
		if !h.Ready {
			notReady = append(notReady, h.Name+": "+h.Detail)
		}
	}
	if len(notReady) > 0 {
		return nil, services.NewValidationError("collaborators", notReady, "ready content generator, template compiler, asset selector",
			"collaborators not ready: "+strings.Join(notReady, "; "))
	}

	if strings.TrimSpace(req.Campaign.Path) == "" && strings.TrimSpace(req.Campaign.ID) != "" {
		req.Campaign.Path = r.cfg.CampaignDir(req.Campaign.ID)
	}
	if strings.TrimSpace(req.Campaign.Path) != "" {
		if err := r.store.MkdirAll(ctx, req.Campaign.Path); err != nil {
			return nil, services.NewCampaignError(req.Campaign.ID, req.Campaign.Path,
				"create campaign directory", services.WithCause(err))
		}
	}

	phase := stage.Content
	overrides.Phase = &phase
	rc, err := r.contexts.Create(ctx, req, overrides)
	if err != nil {
		return nil, err
	}
	if err := r.contexts.Validate(ctx, rc); err != nil {
		return nil, err
	}

	ctx = services.WithRequestID(ctx, rc.RequestID)
	ctx = services.WithPipelineID(ctx, rc.RequestID)
	ctx = services.WithCorrelationID(ctx, rc.CorrelationID())
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("campaign_id", rc.Campaign.ID),
		logging.String("campaign_path", rc.Campaign.Path),
	)

	p := &run{Runner: r, rc: rc, brief: req.Brief, result: &Result{RequestID: rc.RequestID, Context: rc}}
	runErr := p.execute(ctx)
	p.result.Context = p.rc

	summary, sumErr := r.monitor.GenerateSummary(ctx, rc.RequestID)
	if sumErr != nil {
		logging.WarnWithContext(logger, "summary generation failed", "summary_failed",
			logging.Error(sumErr),
			logging.String(logging.FieldErrorHint, "check summary directory permissions"),
		)
	} else {
		p.result.Summary = &summary
	}

	status := "completed"
	if runErr != nil {
		status = "failed"
	}
	payload := notifications.Payload{
		"request_id": rc.RequestID,
		"status":     status,
		"handoffs":   len(p.result.Handoffs),
		"chain":      p.rc.Chain(),
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
	}
	if err := r.notifier.Publish(ctx, notifications.EventPipelineCompleted, payload); err != nil {
		logging.WarnWithContext(logger, "pipeline notification failed", "notification_failed", logging.Error(err))
	}

	if runErr != nil {
		return p.result, runErr
	}
	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Int("handoffs", len(p.result.Handoffs)),
		logging.Int("snapshots", len(p.result.Snapshots)),
	)
	return p.result, nil
}

// run carries the state of one in-flight request.
type run struct {
	*Runner
	rc     *runctx.RunContext
	brief  string
	result *Result
}

func (p *run) execute(ctx context.Context) error {
	if err := p.step(ctx, stage.Content, p.contentStage); err != nil {
		return err
	}
	if err := p.step(ctx, stage.Design, p.designStage); err != nil {
		return err
	}
	if err := p.step(ctx, stage.Quality, p.qualityStage); err != nil {
		return err
	}
	return p.step(ctx, stage.Delivery, p.deliveryStage)
}

func (p *run) contentStage(ctx context.Context, logger *slog.Logger) error {
	generated, err := p.collab.Content.Generate(ctx, GenerationRequest{Campaign: p.rc.Campaign, Brief: p.brief})
	if err != nil {
		return services.NewExternalServiceError("content_generator", "", 0, "content generation failed",
			services.WithCause(err))
	}
	content := stagecontext.BuildContent(p.rc.Campaign, stagecontext.ContentInput{
		Generated: generated,
		Brief:     p.brief,
		BuiltAt:   p.now(),
	})
	if err := p.complete(content, stage.Content); err != nil {
		return err
	}
	p.result.Content = &content
	if err := p.snapshot(ctx, content); err != nil {
		return err
	}
	logger.Info("content built",
		logging.String("season", string(content.ContextAnalysis.Season)),
		logging.Float64("discount_percent", content.PricingAnalysis.DiscountPercent),
	)
	return p.handoff(ctx, stage.Content, stage.Design, content)
}

func (p *run) designStage(ctx context.Context, logger *slog.Logger) error {
	content := *p.result.Content
	assets, err := p.collab.Assets.Select(ctx, content.AssetStrategy.Tags, p.rc.Campaign.Type)
	if err != nil {
		return services.NewExternalServiceError("asset_selector", "", 0, "asset selection failed",
			services.WithCause(err))
	}
	if len(assets) == 0 {
		assets = content.AssetStrategy.Assets
	}

	templateID := templateFor(content, p.rc.Campaign.Type)
	compiled, err := p.collab.Compiler.Compile(ctx, renderMarkup(templateID, content, assets))
	if err != nil {
		return services.NewExternalServiceError("template_compiler", "", 0, "template compilation failed",
			services.WithCause(err))
	}
	design := stagecontext.BuildDesign(p.rc.Campaign, content, stagecontext.DesignInput{
		TemplateID:  templateID,
		HTML:        compiled.HTML,
		SizeBytes:   compiled.SizeBytes,
		Diagnostics: compiled.Diagnostics,
		Assets:      assets,
		BuiltAt:     p.now(),
	})
	if err := p.complete(design, stage.Design); err != nil {
		return err
	}
	p.result.Design = &design
	if err := p.snapshot(ctx, design); err != nil {
		return err
	}
	logger.Info("design compiled",
		logging.String("template_id", design.TemplateSelection.TemplateID),
		logging.Int("html_bytes", design.CompiledTemplate.SizeBytes),
		logging.Int("diagnostics", len(design.CompiledTemplate.Diagnostics)),
	)
	return p.handoff(ctx, stage.Design, stage.Quality, content, design)
}

func (p *run) qualityStage(ctx context.Context, logger *slog.Logger) error {
	content, design := *p.result.Content, *p.result.Design
	quality := stagecontext.BuildQuality(p.rc.Campaign, stagecontext.QualityInput{
		Checks:          stagecontext.EvaluateDesign(content, design),
		Threshold:       p.rc.Quality.Threshold,
		RequireApproval: p.rc.Quality.RequireApproval,
		BuiltAt:         p.now(),
	})
	if err := p.complete(quality, stage.Quality); err != nil {
		return err
	}
	p.result.Quality = &quality
	if err := p.snapshot(ctx, quality); err != nil {
		return err
	}
	logger.Info("quality evaluated",
		logging.Float64("score", quality.ValidationResults.Score),
		logging.Float64("threshold", quality.ValidationResults.Threshold),
		logging.String("approval_status", quality.ApprovalStatus),
	)

	if quality.ApprovalStatus == stagecontext.StatusRejected && p.rc.Quality.ErrorStrategy != "continue" {
		return services.NewProcessingError(stage.Quality.String(), "design_context",
			fmt.Sprintf("quality score %.2f below threshold %.2f", quality.ValidationResults.Score, quality.ValidationResults.Threshold),
			services.WithHints("review the failed checks in the quality snapshot", "set error_strategy to continue to deliver held output"))
	}
	return p.handoff(ctx, stage.Quality, stage.Delivery, design, quality)
}

func (p *run) deliveryStage(ctx context.Context, logger *slog.Logger) error {
	design, quality := *p.result.Design, *p.result.Quality

	html := []byte(design.CompiledTemplate.HTML)
	name := p.rc.Campaign.ID + ".html"
	path := filepath.Join(p.rc.Campaign.Path, "delivery", name)
	if err := p.store.WriteFile(ctx, path, html, 0o644); err != nil {
		return err
	}
	channel, _ := p.rc.Extensions[ExtensionChannel].(string)
	delivery := stagecontext.BuildDelivery(p.rc.Campaign, quality, stagecontext.DeliveryInput{
		Channel: channel,
		Artifacts: []stagecontext.Artifact{{
			Name:      name,
			Path:      path,
			SizeBytes: int64(len(html)),
			Checksum:  fileutil.Checksum(html),
		}},
		BuiltAt: p.now(),
	})
	if err := p.complete(delivery, stage.Delivery); err != nil {
		return err
	}
	p.result.Delivery = &delivery
	if err := p.snapshot(ctx, delivery); err != nil {
		return err
	}
	logger.Info("campaign delivered",
		logging.String("delivery_status", delivery.Status),
		logging.String("channel", delivery.Channel),
		logging.String("artifact", path),
	)
	return nil
}

func (p *run) complete(sc stagecontext.Context, id stage.ID) error {
	missing := stagecontext.ValidateCompleteness(sc, id)
	if len(missing) == 0 {
		return nil
	}
	return services.NewProcessingError(id.String(), id.PayloadKey(),
		fmt.Sprintf("%s context incomplete: missing %s", id, strings.Join(missing, ", ")))
}

func (p *run) snapshot(ctx context.Context, sc stagecontext.Context) error {
	path, err := stagecontext.WriteSnapshot(ctx, p.store, p.rc.Campaign.Path, sc)
	if err != nil {
		return err
	}
	p.result.Snapshots = append(p.result.Snapshots, path)
	return nil
}

// handoff assembles the payload, sends it through the monitor, and advances
// the run context only once the monitor accepted it.
func (p *run) handoff(ctx context.Context, from, to stage.ID, contexts ...stagecontext.Context) error {
	payload, err := stagecontext.AssemblePayload(p.rc.RequestBlock(), stagecontext.Metadata{
		Source:        from,
		Target:        to,
		RequestID:     p.rc.RequestID,
		CorrelationID: p.rc.CorrelationID(),
		AssembledAt:   p.now(),
	}, contexts...)
	if err != nil {
		return services.NewDataError("handoff_payload", "", "assemble payload", services.WithCause(err))
	}

	metric, err := p.monitor.MonitorHandoff(ctx, monitor.Handoff{
		Source:        from,
		Target:        to,
		Payload:       payload,
		PipelineID:    p.rc.RequestID,
		RequestID:     p.rc.RequestID,
		CorrelationID: p.rc.CorrelationID(),
		Chain:         p.rc.Chain(),
	})
	p.result.Handoffs = append(p.result.Handoffs, metric)
	if err != nil {
		return err
	}

	next, err := p.contexts.AdvanceForHandoff(ctx, p.rc, from, to, payload)
	if err != nil {
		return err
	}
	p.rc = next
	return nil
}
