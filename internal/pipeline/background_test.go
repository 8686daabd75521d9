package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"baton/internal/monitor"
	"baton/internal/pipeline"
	"baton/internal/runctx"
	"baton/internal/stagecontext"
	"baton/internal/testsupport"
)

func TestBackgroundStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testsupport.NewConfig(t)
	store := testsupport.NewFileStore(t)
	contexts := runctx.NewManager(store)
	bg := pipeline.NewBackground(contexts, monitor.NewFromConfig(cfg, store), nil)
	bg.CleanupInterval = 5 * time.Millisecond
	bg.HealthInterval = 5 * time.Millisecond
	bg.MaxAge = time.Millisecond

	campaign := testsupport.Campaign(t, cfg)
	if _, err := contexts.Create(context.Background(), runctx.Request{ID: "req-sweep", Campaign: campaign}, runctx.Overrides{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := bg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := bg.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if !bg.Running() {
		t.Fatal("expected running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for contexts.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never removed the expired context")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bg.Stop()
	bg.Stop()
	if bg.Running() {
		t.Fatal("expected stopped")
	}
}

func TestBackgroundSkipsMissingCollaborators(t *testing.T) {
	defer goleak.VerifyNone(t)

	bg := pipeline.NewBackground(nil, nil, nil)
	if err := bg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bg.Stop()
}

func TestStaticSelectorFiltersByTag(t *testing.T) {
	catalog := []stagecontext.Asset{
		{ID: "tulips", Kind: "image", Tags: []string{"Spring"}},
		{ID: "snow", Kind: "image", Tags: []string{"winter"}},
		{ID: "shelf", Kind: "image", Tags: []string{"retail"}},
	}
	sel := pipeline.StaticSelector(catalog)

	got, err := sel.Select(context.Background(), []string{"spring"}, "retail")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 2 || got[0].ID != "tulips" || got[1].ID != "shelf" {
		t.Fatalf("unexpected selection %+v", got)
	}

	got, err = sel.Select(context.Background(), []string{"autumn"}, "travel")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != len(catalog) {
		t.Fatalf("expected full catalog fallback, got %d", len(got))
	}
}

func TestMarkupCompilerRendersImages(t *testing.T) {
	compiled, err := pipeline.MarkupCompiler(nil).Compile(context.Background(),
		`<mj-template id="x"><mj-image src="a.jpg" alt="A" /><mj-button>Go</mj-button></mj-template>`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := `<img src="a.jpg" alt="A" />`
	if !containsAll(compiled.HTML, want, `<a class="button">Go</a>`) {
		t.Fatalf("unexpected html %q", compiled.HTML)
	}
	if compiled.SizeBytes != len(compiled.HTML) {
		t.Fatalf("size = %d, want %d", compiled.SizeBytes, len(compiled.HTML))
	}
	if _, err := pipeline.MarkupCompiler(nil).Compile(context.Background(), "  "); err == nil {
		t.Fatal("expected error on empty markup")
	}
}

func TestLoadFixturesRequiresContent(t *testing.T) {
	store := testsupport.NewFileStore(t)
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := store.WriteFile(context.Background(), path, []byte(`{"request":{"id":"r"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := pipeline.LoadFixtures(context.Background(), store, path); err == nil {
		t.Fatal("expected error for fixture without content")
	}
}
