package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/config"
	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.ArticlesDir = filepath.Join(root, "articles")
	cfg.PlansDir = filepath.Join(root, "plans")
	cfg.NotesDir = filepath.Join(root, "notes")
	cfg.MentalHealthDir = filepath.Join(root, "mental-health")
	cfg.ResearchDir = filepath.Join(root, "research")
	return cfg
}

func TestReconcileOnceRepairsAndJournals(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Join(cfg.ResearchDir, "manual-drop"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	journalPath := filepath.Join(t.TempDir(), "journal.json")
	r, err := newReconciler(cfg, []string{"research", "plans"}, "file://"+journalPath, log.New(io.Discard))
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	defer r.close()

	reports, err := r.reconcileOnce(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(reports) != 2 || reports[0].Collection != "research" {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if len(reports[0].Added) != 1 || reports[0].Added[0] != "manual-drop" {
		t.Fatalf("expected manual-drop added, got %+v", reports[0])
	}
	if reports[1].Changed() {
		t.Fatalf("expected plans untouched, got %+v", reports[1])
	}

	entries, err := r.journal.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "cli" {
		t.Fatalf("expected one cli journal entry, got %+v", entries)
	}

	reports, err = r.reconcileOnce(context.Background())
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if reports[0].Changed() {
		t.Fatalf("expected second pass to be a no-op, got %+v", reports[0])
	}
}

func TestNewReconcilerRejectsUnknownCollection(t *testing.T) {
	if _, err := newReconciler(testConfig(t), []string{"recipes"}, "", log.New(io.Discard)); err == nil {
		t.Fatalf("expected unknown collection error")
	}
	if _, err := newReconciler(testConfig(t), []string{" "}, "", log.New(io.Discard)); err == nil {
		t.Fatalf("expected empty selection error")
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, entitystore.Report{Collection: "notes", Total: 3}, false)
	printReport(&buf, entitystore.Report{Collection: "articles", Added: []string{"a1"}, Removed: []string{"gone"}, Total: 4}, false)
	out := buf.String()
	for _, want := range []string{"notes", "ok (3 indexed)", "repaired: +1 -1", "+ a1", "- gone"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	printReport(&buf, entitystore.Report{Collection: "plans", Total: 1}, true)
	if !strings.HasPrefix(buf.String(), `{"collection":"plans"`) {
		t.Fatalf("expected JSON line, got %s", buf.String())
	}
}

func TestFloatEnvParsesValue(t *testing.T) {
	t.Setenv("LEARNSTUDIO_TEST_FLOAT", "0.35")
	got := floatEnv(log.New(io.Discard), "LEARNSTUDIO_TEST_FLOAT", 0.1)
	if got != 0.35 {
		t.Fatalf("expected 0.35, got %f", got)
	}
}

func TestFloatEnvFallsBackOnInvalid(t *testing.T) {
	t.Setenv("LEARNSTUDIO_TEST_FLOAT_BAD", "oops")
	got := floatEnv(log.New(io.Discard), "LEARNSTUDIO_TEST_FLOAT_BAD", 0.25)
	if got != 0.25 {
		t.Fatalf("expected fallback 0.25, got %f", got)
	}
}

func TestDurationEnvFallsBackOnInvalid(t *testing.T) {
	t.Setenv("LEARNSTUDIO_TEST_DURATION_BAD", "soon")
	got := durationEnv(log.New(io.Discard), "LEARNSTUDIO_TEST_DURATION_BAD", 2*time.Second)
	if got != 2*time.Second {
		t.Fatalf("expected fallback 2s, got %s", got)
	}
}

func TestClampJitterRatio(t *testing.T) {
	if got := clampJitterRatio(-0.1); got != 0 {
		t.Fatalf("expected clamp to 0, got %f", got)
	}
	if got := clampJitterRatio(1.5); got != 1 {
		t.Fatalf("expected clamp to 1, got %f", got)
	}
	if got := clampJitterRatio(0.4); got != 0.4 {
		t.Fatalf("expected passthrough 0.4, got %f", got)
	}
}

func TestJitteredIntervalWithSample(t *testing.T) {
	base := 10 * time.Second
	if got := jitteredIntervalWithSample(base, 0, 0.2); got != base {
		t.Fatalf("expected no jitter interval %s, got %s", base, got)
	}
	if got := jitteredIntervalWithSample(base, 0.2, 0); got != 8*time.Second {
		t.Fatalf("expected min jitter interval 8s, got %s", got)
	}
	if got := jitteredIntervalWithSample(base, 0.2, 1); got != 12*time.Second {
		t.Fatalf("expected max jitter interval 12s, got %s", got)
	}
}
