package entitystore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestIndexLoadAbsentIsEmpty(t *testing.T) {
	index := NewIndexStore(filepath.Join(t.TempDir(), "articles"), "articles")
	ids, err := index.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", ids)
	}
}

func TestIndexSaveCreatesBaseAndRoundTrips(t *testing.T) {
	base := filepath.Join(t.TempDir(), "plans")
	index := NewIndexStore(base, "plans")
	if err := index.Save(context.Background(), []string{"b", "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, IndexFileName))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if string(data) != "{\n  \"plans\": [\n    \"b\",\n    \"a\"\n  ]\n}\n" {
		t.Fatalf("unexpected index document %q", string(data))
	}
	ids, err := index.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Fatalf("expected [b a], got %v", ids)
	}
}

func TestIndexLoadMissingKeyIsEmpty(t *testing.T) {
	base := t.TempDir()
	mustWrite(t, filepath.Join(base, IndexFileName), `{"other":["x"]}`)
	ids, err := NewIndexStore(base, "notes").Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty list, got %v", ids)
	}
}

func TestIndexConcurrentUpdatesDoNotLoseEntries(t *testing.T) {
	index := NewIndexStore(t.TempDir(), "sessions")
	const writers = 24
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("id%02d", n)
			err := index.Update(context.Background(), func(ids []string) ([]string, bool, error) {
				return append(ids, id), true, nil
			})
			if err != nil {
				t.Errorf("update %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	ids, err := index.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != writers {
		t.Fatalf("expected %d ids, got %d (%v)", writers, len(ids), ids)
	}
}

func TestIndexUpdateWithoutChangeDoesNotWrite(t *testing.T) {
	base := t.TempDir()
	index := NewIndexStore(base, "notes")
	err := index.Update(context.Background(), func(ids []string) ([]string, bool, error) {
		return ids, false, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, IndexFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected no index file to be written, got %v", err)
	}
}
