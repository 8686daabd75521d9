package runctx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"baton/internal/fileutil"
	"baton/internal/logging"
	"baton/internal/retry"
	"baton/internal/services"
	"baton/internal/stage"
	"baton/internal/stagecontext"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testStore() *fileutil.Store {
	p := retry.Lean
	p.InitialDelay = time.Millisecond
	p.MaxDelay = time.Millisecond
	return fileutil.New(p, logging.NewNop(), time.Second)
}

func testRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		ID: "req-1",
		Campaign: stagecontext.Campaign{
			ID: "camp-1", Name: "Spring", Brand: "Acme", Type: "retail", Path: t.TempDir(),
		},
		Brief: "spring promotion",
	}
}

func contentPhase() *stage.ID {
	id := stage.Content
	return &id
}

func newTestManager(clock *fakeClock, opts ...Option) *Manager {
	return NewManager(testStore(), append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestCreateAppliesDefaults(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(clock)

	rc, err := m.Create(context.Background(), testRequest(t), Overrides{Phase: contentPhase()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rc.RequestID != "req-1" || rc.TraceID == "" || rc.CorrelationID() == "" {
		t.Fatalf("identifiers not populated: %+v", rc)
	}
	if rc.Phase != stage.Content || rc.PhaseIndex != 1 || rc.TotalPhases != stage.TotalPhases {
		t.Fatalf("unexpected phase %s/%d/%d", rc.Phase, rc.PhaseIndex, rc.TotalPhases)
	}
	if rc.WorkflowType != DefaultWorkflowType || rc.Quality.Threshold != 0.8 || rc.Execution.Mode != "sequential" {
		t.Fatalf("defaults not applied: %+v", rc)
	}
	if rc.Metadata["brief"] != "spring promotion" {
		t.Fatalf("brief not recorded: %v", rc.Metadata)
	}
	if !rc.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected created_at %s", rc.CreatedAt)
	}
	if m.Len() != 1 {
		t.Fatalf("expected registered context, have %d", m.Len())
	}
}

func TestCreateFailsFastOnMissingIdentity(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Request)
		phase  *stage.ID
	}{
		{"campaign.id", func(r *Request) { r.Campaign.ID = "" }, nil},
		{"campaign.name", func(r *Request) { r.Campaign.Name = " " }, nil},
		{"campaign.brand", func(r *Request) { r.Campaign.Brand = "" }, nil},
		{"campaign.type", func(r *Request) { r.Campaign.Type = "" }, nil},
		{"campaign.path", func(r *Request) { r.Campaign.Path = "" }, contentPhase()},
	}
	for _, tc := range tests {
		t.Run(tc.field, func(t *testing.T) {
			m := newTestManager(&fakeClock{now: time.Now()})
			req := testRequest(t)
			tc.mutate(&req)

			_, err := m.Create(context.Background(), req, Overrides{Phase: tc.phase})
			var verr *services.ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
			if m.Len() != 0 {
				t.Fatal("failed create must not register a context")
			}
		})
	}

	m := newTestManager(&fakeClock{now: time.Now()})
	req := testRequest(t)
	req.Campaign.Path = ""
	if _, err := m.Create(context.Background(), req, Overrides{}); err != nil {
		t.Fatalf("orchestration phase should not require a path: %v", err)
	}
}

func TestCreateRejectsDuplicateRequest(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Now()})
	req := testRequest(t)
	if _, err := m.Create(context.Background(), req, Overrides{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(context.Background(), req, Overrides{}); !errors.Is(err, services.ErrRunContext) {
		t.Fatalf("expected run context error, got %v", err)
	}
}

func TestAdvanceForHandoff(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(clock)
	ctx := context.Background()

	rc, err := m.Create(ctx, testRequest(t), Overrides{Phase: contentPhase()})
	if err != nil {
		t.Fatal(err)
	}
	payload := map[string]any{
		"request":         rc.RequestBlock(),
		"content_context": map[string]any{"generated_content": map[string]any{"headline": "Hi"}},
	}

	clock.Advance(time.Second)
	next, err := m.AdvanceForHandoff(ctx, rc, stage.Content, stage.Design, payload)
	if err != nil {
		t.Fatalf("AdvanceForHandoff: %v", err)
	}
	if next.Phase != stage.Design || next.PhaseIndex != 2 {
		t.Fatalf("unexpected phase %s/%d", next.Phase, next.PhaseIndex)
	}
	if !slices.Equal(next.Chain(), []string{"content->design"}) {
		t.Fatalf("unexpected chain %v", next.Chain())
	}
	if _, ok := next.DataFlow.PreviousResults["content"].(map[string]any)["generated_content"]; !ok {
		t.Fatalf("content result not merged: %v", next.DataFlow.PreviousResults)
	}
	if next.Monitoring.Metrics["handoff:content->design"] != clock.Now().Format(time.RFC3339Nano) {
		t.Fatalf("transition timestamp missing: %v", next.Monitoring.Metrics)
	}
	if next.CorrelationID() != rc.CorrelationID() {
		t.Fatal("correlation id changed")
	}
	if len(rc.Chain()) != 0 {
		t.Fatal("advance must not mutate the input context")
	}

	stored, ok := m.Get(rc.RequestID)
	if !ok || stored.Phase != stage.Design {
		t.Fatalf("registry not overwritten: %+v", stored)
	}

	if _, err := m.AdvanceForHandoff(ctx, next, stage.Content, stage.Design, payload); !errors.Is(err, services.ErrRunContext) {
		t.Fatalf("expected phase regression error, got %v", err)
	}
	if _, err := m.AdvanceForHandoff(ctx, next, stage.Design, stage.Delivery, payload); !errors.Is(err, services.ErrHandoff) {
		t.Fatalf("expected handoff error for skipped stage, got %v", err)
	}
	if stored, _ := m.Get(rc.RequestID); len(stored.Chain()) != 1 {
		t.Fatalf("failed advances must leave the run at its last phase, chain=%v", stored.Chain())
	}
}

func TestAdvanceForHandoffRejectsStaleContext(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)})
	ctx := context.Background()
	payload := map[string]any{"metadata": map[string]any{}}

	rc0, err := m.Create(ctx, testRequest(t), Overrides{Phase: contentPhase()})
	if err != nil {
		t.Fatal(err)
	}
	rc1, err := m.AdvanceForHandoff(ctx, rc0, stage.Content, stage.Design, payload)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.AdvanceForHandoff(ctx, rc1, stage.Design, stage.Quality, payload); err != nil {
		t.Fatal(err)
	}

	if _, err := m.AdvanceForHandoff(ctx, rc0, stage.Content, stage.Design, payload); !errors.Is(err, services.ErrRunContext) {
		t.Fatalf("expected stale advance to fail, got %v", err)
	}
	stored, _ := m.Get(rc0.RequestID)
	want := []string{"content->design", "design->quality"}
	if stored.PhaseIndex != stage.Quality.Index() || !slices.Equal(stored.Chain(), want) {
		t.Fatalf("registry rolled back: phase_index=%d chain=%v", stored.PhaseIndex, stored.Chain())
	}
}

func TestAdvanceForHandoffRequiresCurrentPhase(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Now()})
	ctx := context.Background()
	rc, err := m.Create(ctx, testRequest(t), Overrides{Phase: contentPhase()})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.AdvanceForHandoff(ctx, rc, stage.Quality, stage.Delivery, nil); !errors.Is(err, services.ErrRunContext) {
		t.Fatalf("expected skipped stages to fail, got %v", err)
	}
	if stored, _ := m.Get(rc.RequestID); stored.Phase != stage.Content || len(stored.Chain()) != 0 {
		t.Fatalf("registry changed by rejected advance: %+v", stored)
	}
}

func TestValidate(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Now()})
	ctx := context.Background()
	rc, err := m.Create(ctx, testRequest(t), Overrides{Phase: contentPhase()})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Validate(ctx, rc); err != nil {
		t.Fatalf("expected valid context: %v", err)
	}

	missingPath := rc.Clone()
	missingPath.Campaign.Path = filepath.Join(t.TempDir(), "gone")
	err = m.Validate(ctx, missingPath)
	var pathErr *services.ValidationError
	if !errors.As(err, &pathErr) || pathErr.Field != "campaign.path" {
		t.Fatalf("expected campaign.path validation error for unreachable path, got %v", err)
	}
	if !errors.Is(err, services.ErrCampaign) {
		t.Fatalf("expected campaign error in the cause chain, got %v", err)
	}

	broken := rc.Clone()
	broken.Quality.Strictness = "sloppy"
	var verr *services.ValidationError
	if err := m.Validate(ctx, broken); !errors.As(err, &verr) || verr.Field != "quality.strictness" {
		t.Fatalf("expected quality.strictness failure, got %v", err)
	}
}

func TestUpdateEnforcesInvariants(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Now()})
	ctx := context.Background()
	rc, err := m.Create(ctx, testRequest(t), Overrides{Phase: contentPhase()})
	if err != nil {
		t.Fatal(err)
	}
	next, err := m.AdvanceForHandoff(ctx, rc, stage.Content, stage.Design, map[string]any{"metadata": map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*RunContext)
	}{
		{"correlation", func(r *RunContext) { r.DataFlow.CorrelationID = "other" }},
		{"phase", func(r *RunContext) { r.PhaseIndex = 1 }},
		{"chain", func(r *RunContext) { r.DataFlow.HandoffChain = []string{"design->quality"} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			changed := next.Clone()
			tc.mutate(changed)
			if err := m.Update(changed); !errors.Is(err, services.ErrRunContext) {
				t.Fatalf("expected invariant violation, got %v", err)
			}
		})
	}

	ok := next.Clone()
	ok.DataFlow.PersistentState["note"] = "kept"
	if err := m.Update(ok); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, _ := m.Get(ok.RequestID); got.DataFlow.PersistentState["note"] != "kept" {
		t.Fatal("update not stored")
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(clock)
	ctx := context.Background()

	old := testRequest(t)
	if _, err := m.Create(ctx, old, Overrides{}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(50 * time.Minute)
	fresh := testRequest(t)
	fresh.ID = "req-2"
	if _, err := m.Create(ctx, fresh, Overrides{}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(11 * time.Minute)

	if removed := m.Cleanup(0); removed != 1 {
		t.Fatalf("expected 1 removal with default TTL, got %d", removed)
	}
	if _, ok := m.Get("req-1"); ok {
		t.Fatal("expired context still registered")
	}
	if _, ok := m.Get("req-2"); !ok {
		t.Fatal("fresh context removed")
	}
}

func TestCleanupRemovesSnapshots(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(clock, WithSnapshots(t.TempDir()))
	ctx := context.Background()

	rc, err := m.Create(ctx, testRequest(t), Overrides{Phase: contentPhase()})
	if err != nil {
		t.Fatal(err)
	}
	path := m.SnapshotPath(rc.RequestID)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if m.debug.Policy().Name != retry.Lean.Name {
		t.Fatalf("snapshots should retry under the lean policy, got %q", m.debug.Policy().Name)
	}

	clock.Advance(2 * time.Hour)
	if removed := m.Cleanup(0); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("snapshot should be removed with its context, stat err=%v", err)
	}
}

func TestRunSweeperStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(&fakeClock{now: time.Now()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	debugDir := t.TempDir()
	store := testStore()
	m := NewManager(store, WithSnapshots(debugDir))
	ctx := context.Background()

	rc, err := m.Create(ctx, testRequest(t), Overrides{Phase: contentPhase(), Metadata: map[string]any{"owner": "ops"}})
	if err != nil {
		t.Fatal(err)
	}
	path := m.SnapshotPath(rc.RequestID)
	if !strings.HasSuffix(path, "context-snapshot-req-1.json") {
		t.Fatalf("unexpected snapshot path %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written on create: %v", err)
	}

	loaded, err := LoadSnapshot(ctx, store, path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if diff := cmp.Diff(rc, loaded); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
