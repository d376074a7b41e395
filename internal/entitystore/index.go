package entitystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// IndexStore persists the cached id list of one collection at
// <base>/index.json as {"<key>": [ids...]}. The directory tree stays
// authoritative; the index is rebuilt by Reconcile whenever it drifts.
//
// Mutations made through Update are serialized in-process and across
// processes that honour the advisory lock on <base>/.index.lock. Writers
// that skip the lock (the generation engine) are repaired by reconciliation.
type IndexStore struct {
	base string
	key  string
	mu   sync.Mutex
}

func NewIndexStore(base, key string) *IndexStore {
	return &IndexStore{base: filepath.Clean(base), key: key}
}

func (s *IndexStore) Path() string {
	return filepath.Join(s.base, IndexFileName)
}

func (s *IndexStore) Key() string {
	return s.key
}

// Load returns the indexed ids. An absent index is an empty list.
func (s *IndexStore) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

// Save replaces the indexed ids, creating the base directory if needed.
func (s *IndexStore) Save(ctx context.Context, ids []string) error {
	return s.Update(ctx, func([]string) ([]string, bool, error) {
		return ids, true, nil
	})
}

// Update runs fn with the current ids while holding the index lock and
// writes the returned list when fn reports a change.
func (s *IndexStore) Update(ctx context.Context, fn func(ids []string) ([]string, bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.base, dirMode); err != nil {
		return err
	}
	unlock, err := lockFile(filepath.Join(s.base, lockFileName))
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	next, changed, err := fn(current)
	if err != nil || !changed {
		return err
	}
	return s.write(next)
}

func (s *IndexStore) read() ([]string, error) {
	doc := map[string][]string{}
	if err := ReadJSON(s.Path(), &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := doc[s.key]
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *IndexStore) write(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return WriteJSON(s.Path(), map[string][]string{s.key: ids})
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func withoutID(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	removed := false
	for _, existing := range ids {
		if existing == id {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out, removed
}
