package indexsync

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

func sampleEntry(collection string, added ...string) Entry {
	return Entry{
		Collection: collection,
		Source:     "interval",
		Added:      added,
		Removed:    []string{},
		Total:      len(added),
		At:         time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func exerciseJournal(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := j.Append(ctx, sampleEntry("notes", id)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	recent, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Added[0] != "c" || recent[1].Added[0] != "b" {
		t.Fatalf("expected newest first, got %+v", recent)
	}
	if recent[0].Removed == nil {
		t.Fatalf("expected empty removed list, got nil")
	}
	if !recent[0].At.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected timestamp preserved, got %s", recent[0].At)
	}
}

func TestMemoryJournal(t *testing.T) {
	exerciseJournal(t, NewMemoryJournal(0))
}

func TestMemoryJournalDropsOldestOverCapacity(t *testing.T) {
	j := NewMemoryJournal(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = j.Append(ctx, sampleEntry("plans", id))
	}
	recent, _ := j.Recent(ctx, 0)
	if len(recent) != 2 || recent[1].Added[0] != "b" {
		t.Fatalf("expected oldest entry dropped, got %+v", recent)
	}
}

func TestFileJournalPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "sync.json")
	exerciseJournal(t, NewFileJournal(path, 0))

	reopened := NewFileJournal(path, 0)
	recent, err := reopened.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 persisted entries, got %d", len(recent))
	}
}

func TestFileJournalCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileJournal(path, 0).Recent(context.Background(), 0); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSQLiteJournal(t *testing.T) {
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("new sqlite journal: %v", err)
	}
	defer j.Close()
	exerciseJournal(t, j)
}

func TestSQLJournalOpenFailureIsReported(t *testing.T) {
	j, err := NewPostgresJournal("postgres://localhost/learnstudio")
	if err != nil {
		t.Fatalf("new postgres journal: %v", err)
	}
	j.openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}
	if err := j.Append(context.Background(), sampleEntry("notes", "a")); err == nil {
		t.Fatalf("expected open error")
	}
	if _, err := j.Recent(context.Background(), 1); err == nil {
		t.Fatalf("expected cached open error")
	}
}

func TestPostgresJournalIntegration(t *testing.T) {
	dsn := os.Getenv("LEARNSTUDIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEARNSTUDIO_TEST_POSTGRES_DSN not set")
	}
	j, err := NewPostgresJournal(dsn)
	if err != nil {
		t.Fatalf("new postgres journal: %v", err)
	}
	j.table = "learnstudio_sync_journal_test_" + time.Now().UTC().Format("20060102150405")
	defer func() {
		if j.db != nil {
			_, _ = j.db.Exec("DROP TABLE IF EXISTS " + quoteIdentifier(j.table))
		}
		_ = j.Close()
	}()
	exerciseJournal(t, j)
}

func TestBuildJournalFromDSN(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		dsn  string
		want string
	}{
		{"memory://", "*indexsync.MemoryJournal"},
		{"file://" + filepath.Join(dir, "a.json"), "*indexsync.FileJournal"},
		{filepath.Join(dir, "b.json"), "*indexsync.FileJournal"},
		{"sqlite://" + filepath.Join(dir, "c.db"), "*indexsync.SQLJournal"},
		{"postgres://user@localhost/db", "*indexsync.SQLJournal"},
	}
	for _, tc := range cases {
		j, err := BuildJournalFromDSN(tc.dsn)
		if err != nil {
			t.Fatalf("%s: %v", tc.dsn, err)
		}
		if got := typeName(j); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.dsn, tc.want, got)
		}
	}

	if j, err := BuildJournalFromDSN("  "); err != nil || j != nil {
		t.Fatalf("expected no journal for empty dsn, got %v %v", j, err)
	}
	if _, err := BuildJournalFromDSN("redis://localhost"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

func TestRegisteredJournalFactoryTakesPrecedence(t *testing.T) {
	custom := NewMemoryJournal(1)
	RegisterJournalFactory("Custom", func(string) (Journal, error) { return custom, nil })
	j, err := BuildJournalFromDSN("custom://anything")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if j != custom {
		t.Fatalf("expected registered journal")
	}
}

func TestRecordAppendsDriftEvents(t *testing.T) {
	target := newFolderTarget(t, "notes")
	s, err := NewScheduler(target, Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	j := NewMemoryJournal(0)
	Record(s, j, func(err error) { t.Errorf("journal append: %v", err) })

	if err := os.Mkdir(filepath.Join(target.base, "n1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := s.SyncNow(context.Background(), "manual"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, err := s.SyncNow(context.Background(), "manual"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	recent, _ := j.Recent(context.Background(), 0)
	if len(recent) != 1 {
		t.Fatalf("expected one journal entry, got %+v", recent)
	}
	if recent[0].Collection != "notes" || recent[0].Source != "manual" || recent[0].Added[0] != "n1" {
		t.Fatalf("unexpected entry: %+v", recent[0])
	}
	if _, err := entitystore.NewIndexStore(target.base, "notes").Load(context.Background()); err != nil {
		t.Fatalf("load index: %v", err)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *MemoryJournal:
		return "*indexsync.MemoryJournal"
	case *FileJournal:
		return "*indexsync.FileJournal"
	case *SQLJournal:
		return "*indexsync.SQLJournal"
	default:
		return "unknown"
	}
}
