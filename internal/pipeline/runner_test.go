package pipeline_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"baton/internal/config"
	"baton/internal/fileutil"
	"baton/internal/ledger"
	"baton/internal/monitor"
	"baton/internal/notifications"
	"baton/internal/pipeline"
	"baton/internal/runctx"
	"baton/internal/services"
	"baton/internal/stage"
	"baton/internal/stagecontext"
	"baton/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	store    *fileutil.Store
	ledger   *ledger.Store
	monitor  *monitor.Monitor
	contexts *runctx.Manager
	notifier notifications.Service
}

func newHarness(t *testing.T, cfgOpts ...testsupport.ConfigOption) harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	store := testsupport.NewFileStore(t)
	l := testsupport.MustOpenLedger(t, cfg)
	notifier := notifications.NewService(cfg, nil)
	t.Cleanup(func() { _ = notifier.Close() })
	return harness{
		cfg:      cfg,
		store:    store,
		ledger:   l,
		monitor:  monitor.NewFromConfig(cfg, store, monitor.WithRecorder(l), monitor.WithNotifier(notifier)),
		contexts: runctx.NewManager(store),
		notifier: notifier,
	}
}

func (h harness) runner(collab pipeline.Collaborators) *pipeline.Runner {
	return pipeline.NewRunner(h.cfg, h.store, h.contexts, h.monitor, collab, pipeline.WithNotifier(h.notifier))
}

func loadFixture(t *testing.T, h harness) pipeline.Fixture {
	t.Helper()
	fx, err := pipeline.LoadFixtures(context.Background(), h.store, filepath.Join("testdata", "campaign.json"))
	if err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}
	return fx
}

func TestRunDeliversFixtureCampaign(t *testing.T) {
	h := newHarness(t)
	fx := loadFixture(t, h)
	ctx := context.Background()

	result, err := h.runner(fx.Collaborators).Run(ctx, fx.Request, fx.Overrides())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	campaignDir := h.cfg.CampaignDir(fx.Request.Campaign.ID)
	if result.Context.Campaign.Path != campaignDir {
		t.Fatalf("campaign path = %q, want %q", result.Context.Campaign.Path, campaignDir)
	}
	for _, id := range []stage.ID{stage.Content, stage.Design, stage.Quality, stage.Delivery} {
		path := stagecontext.SnapshotPath(campaignDir, id)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing %s snapshot: %v", id, err)
		}
	}
	if len(result.Snapshots) != 4 {
		t.Fatalf("expected 4 snapshots, got %v", result.Snapshots)
	}

	wantChain := []string{
		stage.Label(stage.Content, stage.Design),
		stage.Label(stage.Design, stage.Quality),
		stage.Label(stage.Quality, stage.Delivery),
	}
	if got := result.Context.Chain(); !slices.Equal(got, wantChain) {
		t.Fatalf("chain = %v, want %v", got, wantChain)
	}
	if result.Context.Phase != stage.Delivery {
		t.Fatalf("phase = %s, want delivery", result.Context.Phase)
	}
	if _, ok := result.Context.DataFlow.PreviousResults[stage.Quality.String()]; !ok {
		t.Fatalf("quality result not merged into previous results")
	}
	for _, metric := range result.Handoffs {
		if !metric.Success {
			t.Fatalf("handoff %s failed: %s", metric.Label(), metric.Error)
		}
	}

	if result.Content.ContextAnalysis.Season != stagecontext.SeasonSpring {
		t.Fatalf("season = %q", result.Content.ContextAnalysis.Season)
	}
	if result.Design.TemplateSelection.TemplateID != "spring-retail" {
		t.Fatalf("template = %q", result.Design.TemplateSelection.TemplateID)
	}
	if result.Quality.ApprovalStatus != stagecontext.StatusApproved {
		t.Fatalf("quality = %+v", result.Quality.ValidationResults)
	}
	if result.Delivery.Status != stagecontext.StatusDelivered || result.Delivery.Channel != "email" {
		t.Fatalf("delivery = %+v", result.Delivery)
	}
	artifact := result.Delivery.Artifacts[0]
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	sum := sha256.Sum256(data)
	if artifact.Checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("artifact checksum mismatch")
	}

	if result.Summary == nil {
		t.Fatal("expected summary")
	}
	if result.Summary.Total != 3 || result.Summary.Succeeded != 3 || result.Summary.Failed != 0 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	if !slices.Equal(result.Summary.Chain, wantChain) {
		t.Fatalf("summary chain = %v", result.Summary.Chain)
	}
	if _, err := os.Stat(h.monitor.SummaryPath(result.RequestID)); err != nil {
		t.Fatalf("summary file: %v", err)
	}

	entries, err := h.ledger.ListByPipeline(ctx, result.RequestID)
	if err != nil {
		t.Fatalf("ListByPipeline: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(entries))
	}
}

func TestRunStopsOnGeneratorFailure(t *testing.T) {
	h := newHarness(t, testsupport.WithNotifications())
	fx := loadFixture(t, h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := h.notifier.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	collab := fx.Collaborators
	collab.Content = pipeline.GeneratorFunc(func(context.Context, pipeline.GenerationRequest) (map[string]any, error) {
		return nil, errors.New("generator offline")
	})
	result, err := h.runner(collab).Run(ctx, fx.Request, fx.Overrides())
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if result == nil || result.Content != nil || len(result.Handoffs) != 0 {
		t.Fatalf("unexpected partial result %+v", result)
	}
	if result.Summary == nil || result.Summary.Total != 0 {
		t.Fatalf("expected empty summary, got %+v", result.Summary)
	}

	seen := map[notifications.Event]bool{}
	for !seen[notifications.EventStageFailed] || !seen[notifications.EventPipelineCompleted] {
		select {
		case msg := <-events:
			seen[msg.Event] = true
			if msg.Event == notifications.EventStageFailed && msg.Payload["stage"] != stage.Content.String() {
				t.Fatalf("stage.failed payload = %v", msg.Payload)
			}
		case <-ctx.Done():
			t.Fatalf("events not delivered, saw %v", seen)
		}
	}
}

func rejectingCollaborators(fx pipeline.Fixture) pipeline.Collaborators {
	collab := fx.Collaborators
	collab.Compiler = pipeline.MarkupCompiler([]string{"unknown attribute mj-foo"})
	collab.Assets = pipeline.StaticSelector([]stagecontext.Asset{
		{ID: "bare", URL: "https://cdn.example.com/bare.jpg", Kind: "image"},
	})
	return collab
}

func TestRunHaltsOnRejectedQuality(t *testing.T) {
	h := newHarness(t)
	fx := loadFixture(t, h)

	result, err := h.runner(rejectingCollaborators(fx)).Run(context.Background(), fx.Request, fx.Overrides())
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
	if result.Quality == nil || result.Quality.ApprovalStatus != stagecontext.StatusRejected {
		t.Fatalf("expected rejected quality, got %+v", result.Quality)
	}
	if result.Delivery != nil {
		t.Fatal("delivery must not run after a halt")
	}
	if got := len(result.Context.Chain()); got != 2 {
		t.Fatalf("chain length = %d, want 2", got)
	}
	if result.Context.Phase != stage.Quality {
		t.Fatalf("phase = %s, want quality", result.Context.Phase)
	}
	if _, err := os.Stat(stagecontext.SnapshotPath(result.Context.Campaign.Path, stage.Quality)); err != nil {
		t.Fatalf("quality snapshot: %v", err)
	}
}

func TestRunContinueStrategyHoldsDelivery(t *testing.T) {
	h := newHarness(t)
	fx := loadFixture(t, h)
	overrides := fx.Overrides()
	overrides.Quality = &runctx.QualityConfig{
		Strictness:    "strict",
		Threshold:     stagecontext.DefaultQualityThreshold,
		ErrorStrategy: "continue",
	}

	result, err := h.runner(rejectingCollaborators(fx)).Run(context.Background(), fx.Request, overrides)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Delivery.Status != stagecontext.StatusHeld {
		t.Fatalf("delivery status = %q, want held", result.Delivery.Status)
	}
	if len(result.Handoffs) != 3 {
		t.Fatalf("expected 3 handoffs, got %d", len(result.Handoffs))
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	h := newHarness(t)
	fx := loadFixture(t, h)
	collab := fx.Collaborators
	collab.Compiler = nil

	_, err := h.runner(collab).Run(context.Background(), fx.Request, fx.Overrides())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunRejectsDuplicateRequest(t *testing.T) {
	h := newHarness(t)
	fx := loadFixture(t, h)
	r := h.runner(fx.Collaborators)

	if _, err := r.Run(context.Background(), fx.Request, fx.Overrides()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := r.Run(context.Background(), fx.Request, fx.Overrides()); !errors.Is(err, services.ErrRunContext) {
		t.Fatalf("expected run context error on duplicate id, got %v", err)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

type offlineCompiler struct{ pipeline.CompilerFunc }

func (offlineCompiler) HealthCheck(context.Context) stage.Health {
	return stage.Unhealthy("compiler", "render service unreachable")
}

func TestRunChecksCollaboratorHealth(t *testing.T) {
	h := newHarness(t)
	fx := loadFixture(t, h)
	collab := fx.Collaborators
	collab.Compiler = offlineCompiler{}

	health := collab.Health(context.Background())
	if len(health) != 3 || !health[0].Ready || health[1].Ready || health[1].Name != "template compiler" {
		t.Fatalf("unexpected health %+v", health)
	}

	_, err := h.runner(collab).Run(context.Background(), fx.Request, fx.Overrides())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "render service unreachable") {
		t.Fatalf("error does not carry the health detail: %v", err)
	}
	if h.contexts.Len() != 0 {
		t.Fatal("no run context should be registered when collaborators are not ready")
	}
}
