package entitystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReconcileIsIdempotent(t *testing.T) {
	base := t.TempDir()
	mustMkdir(t, filepath.Join(base, "b"))
	mustMkdir(t, filepath.Join(base, "a"))
	index := NewIndexStore(base, "articles")
	ctx := context.Background()

	first, err := Reconcile(ctx, index, base, ReconcileOptions{Layout: FolderLayout{Primary: "content.json"}})
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if len(first.Added) != 2 || len(first.Removed) != 0 {
		t.Fatalf("expected two added ids, got %+v", first)
	}

	// Rewrite the same ids in a different encoding; a no-drift pass must not touch it.
	compact := `{"articles":["a","b"]}`
	mustWrite(t, index.Path(), compact)

	second, err := Reconcile(ctx, index, base, ReconcileOptions{Layout: FolderLayout{Primary: "content.json"}})
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Changed() {
		t.Fatalf("expected no drift on second pass, got %+v", second)
	}
	data, err := os.ReadFile(index.Path())
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if string(data) != compact {
		t.Fatalf("expected index untouched, got %q", string(data))
	}
}

func TestReconcileWritesSortedActualOnDrift(t *testing.T) {
	base := t.TempDir()
	for _, id := range []string{"c", "a", "b"} {
		mustMkdir(t, filepath.Join(base, id))
	}
	index := NewIndexStore(base, "notes")
	ctx := context.Background()
	if err := index.Save(ctx, []string{"b", "gone"}); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	report, err := Reconcile(ctx, index, base, ReconcileOptions{Layout: FolderLayout{Primary: "note.json"}, Order: Descending})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.Added) != 2 || report.Added[0] != "a" || report.Added[1] != "c" {
		t.Fatalf("expected added [a c], got %v", report.Added)
	}
	if len(report.Removed) != 1 || report.Removed[0] != "gone" {
		t.Fatalf("expected removed [gone], got %v", report.Removed)
	}
	if report.Total != 3 || report.Collection != "notes" {
		t.Fatalf("unexpected report %+v", report)
	}
	ids, _ := index.Load(ctx)
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "b" || ids[2] != "a" {
		t.Fatalf("expected descending [c b a], got %v", ids)
	}
}

func TestReconcileMakesExternalEntitiesVisible(t *testing.T) {
	store := newTestStore(t, Options[testDoc]{})
	ctx := context.Background()
	known := createDoc(t, store, "known")

	external := "feedfacecafebeef"
	if err := WriteJSON(filepath.Join(store.Base(), external, "session.json"), testDoc{ID: external, Title: "external"}); err != nil {
		t.Fatalf("simulate external write: %v", err)
	}
	before, _ := store.List(ctx)
	if len(before) != 1 {
		t.Fatalf("expected external entity hidden before reconcile, got %+v", before)
	}

	report, err := store.SyncIndex(ctx)
	if err != nil {
		t.Fatalf("sync index: %v", err)
	}
	if len(report.Added) != 1 || report.Added[0] != external {
		t.Fatalf("expected %s added, got %+v", external, report)
	}
	after, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	seen := map[string]bool{}
	for _, doc := range after {
		seen[doc.ID] = true
	}
	if !seen[external] || !seen[known.ID] {
		t.Fatalf("expected both entities listed, got %+v", after)
	}
}

func TestReconcileHealsIndexAfterOutOfBandDelete(t *testing.T) {
	store := newTestStore(t, Options[testDoc]{})
	ctx := context.Background()
	keep := createDoc(t, store, "keep")
	lost := createDoc(t, store, "lost")
	if err := os.RemoveAll(filepath.Join(store.Base(), lost.ID)); err != nil {
		t.Fatalf("remove: %v", err)
	}

	report, err := store.SyncIndex(ctx)
	if err != nil {
		t.Fatalf("sync index: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != lost.ID {
		t.Fatalf("expected %s removed, got %+v", lost.ID, report)
	}
	ids, _ := store.Index().Load(ctx)
	if len(ids) != 1 || ids[0] != keep.ID {
		t.Fatalf("expected only %s indexed, got %v", keep.ID, ids)
	}
	if _, err := store.Get(ctx, lost.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for healed id, got %v", err)
	}
}

func TestReconcileMissingBaseWithEmptyIndexIsNoop(t *testing.T) {
	base := filepath.Join(t.TempDir(), "research")
	index := NewIndexStore(base, "sessions")
	report, err := Reconcile(context.Background(), index, base, ReconcileOptions{Layout: FolderLayout{Primary: "session.json"}, Order: Descending})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Changed() {
		t.Fatalf("expected no drift, got %+v", report)
	}
	if _, err := os.Stat(index.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected no index written, got %v", err)
	}
}

func TestSyncIndexCompleteOnlySkipsPendingFolders(t *testing.T) {
	store := newTestStore(t, Options[testDoc]{
		BaseDir:           filepath.Join(t.TempDir(), "articles"),
		Collection:        "articles",
		Layout:            FolderLayout{Primary: "content.json"},
		RequiredArtifacts: []string{"content.json", "cover.png"},
		IndexCompleteOnly: true,
	})
	ctx := context.Background()
	mustWrite(t, filepath.Join(store.Base(), "done", "content.json"), "[]")
	mustWrite(t, filepath.Join(store.Base(), "done", "cover.png"), "")
	mustWrite(t, filepath.Join(store.Base(), "pending", "content.json"), "[]")

	report, err := store.SyncIndex(ctx)
	if err != nil {
		t.Fatalf("sync index: %v", err)
	}
	if len(report.Added) != 1 || report.Added[0] != "done" {
		t.Fatalf("expected only the complete entity indexed, got %+v", report)
	}

	mustWrite(t, filepath.Join(store.Base(), "pending", "cover.png"), "")
	report, err = store.SyncIndex(ctx)
	if err != nil {
		t.Fatalf("sync index: %v", err)
	}
	if len(report.Added) != 1 || report.Added[0] != "pending" {
		t.Fatalf("expected pending entity indexed once complete, got %+v", report)
	}
}
