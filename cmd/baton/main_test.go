package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	fixtures   string
	logDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		fixtures:   filepath.Join("..", "..", "internal", "pipeline", "testdata", "campaign.json"),
		logDir:     filepath.Join(base, "logs"),
	}
	content := fmt.Sprintf(`[paths]
workspace_dir = %q
log_dir = %q
debug_dir = %q

[handoff]
retry_count = 2

[notifications]
enabled = false

[tracing]
enabled = false

[logging]
level = "error"
`, filepath.Join(base, "campaigns"), env.logDir, filepath.Join(base, "debug"))
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}

func TestCLIRunAndInspect(t *testing.T) {
	env := setupCLITestEnv(t)
	exportPath := filepath.Join(env.baseDir, "metrics.json")

	out, _, err := runCLI(t, []string{"run", "--json", "--fixtures", env.fixtures, "--export", exportPath}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var report runReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode run report: %v\n%s", err, out)
	}
	if report.RequestID != "req-spring-001" || len(report.Chain) != 3 || len(report.Snapshots) != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	requireContains(t, report.Delivery, "delivered via email")

	out, _, err = runCLI(t, []string{"handoffs", "list", "--json", "--pipeline", "req-spring-001"}, env.configPath)
	if err != nil {
		t.Fatalf("handoffs list: %v", err)
	}
	var entries []struct {
		ID     string
		Status string
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode entries: %v\n%s", err, out)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	out, _, err = runCLI(t, []string{"handoffs", "show", entries[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("handoffs show: %v", err)
	}
	requireContains(t, out, "(verified)")
	requireContains(t, out, "content->design")

	out, _, err = runCLI(t, []string{"handoffs", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("handoffs stats: %v", err)
	}
	requireContains(t, out, "persisted")

	out, _, err = runCLI(t, []string{"metrics", "summary", "req-spring-001"}, env.configPath)
	if err != nil {
		t.Fatalf("metrics summary: %v", err)
	}
	requireContains(t, out, "Succeeded")
	requireContains(t, out, "quality->delivery")

	out, _, err = runCLI(t, []string{"metrics", "validate", exportPath}, env.configPath)
	if err != nil {
		t.Fatalf("metrics validate: %v", err)
	}
	requireContains(t, out, "Metric export valid")

	out, _, err = runCLI(t, []string{"metrics", "health", exportPath}, env.configPath)
	if err != nil {
		t.Fatalf("metrics health: %v", err)
	}
	requireContains(t, out, "Healthy")
}

func TestCLIHandoffsShowDetectsTampering(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run", "--fixtures", env.fixtures}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	handoffDir := filepath.Join(env.logDir, "handoffs")
	files, err := os.ReadDir(handoffDir)
	if err != nil || len(files) == 0 {
		t.Fatalf("read handoff dir: %v (%d files)", err, len(files))
	}
	name := files[0].Name()
	path := filepath.Join(handoffDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	tampered := strings.Replace(string(data), "Bloom into savings", "Bloom into losses", 1)
	if tampered == string(data) {
		t.Fatal("envelope payload did not contain the headline")
	}
	if err := os.WriteFile(path, []byte(tampered), 0o644); err != nil {
		t.Fatalf("write envelope: %v", err)
	}

	_, _, err = runCLI(t, []string{"handoffs", "show", strings.TrimSuffix(name, ".json")}, env.configPath)
	if err == nil {
		t.Fatal("expected checksum verification to fail")
	}
	requireContains(t, err.Error(), "mismatch")
}

func TestCLIValidateReportsMissingFields(t *testing.T) {
	env := setupCLITestEnv(t)
	payloadPath := filepath.Join(env.baseDir, "payload.json")
	payload := `{"request": {"request_id": "r"}, "metadata": {"source": "content"}, "content_context": {"pricing_analysis": {}}}`
	if err := os.WriteFile(payloadPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	out, _, err := runCLI(t, []string{"validate", "--pair", "content->design", payloadPath}, env.configPath)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	requireContains(t, out, "valid=no")
	requireContains(t, out, "content_context.generated_content is required")

	if _, _, err := runCLI(t, []string{"validate", "--pair", "delivery->content", payloadPath}, env.configPath); err == nil {
		t.Fatal("expected unknown pair to fail")
	}
}

func TestCLIRunRequiresFixtures(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err == nil {
		t.Fatal("expected error without --fixtures")
	}
}
