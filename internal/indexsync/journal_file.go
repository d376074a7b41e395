package indexsync

import (
	"context"
	"errors"
	"sync"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

// FileJournal keeps the newest entries in a single JSON array file,
// rewritten atomically on every append.
type FileJournal struct {
	path     string
	capacity int
	mu       sync.Mutex
}

func NewFileJournal(path string, capacity int) *FileJournal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &FileJournal{path: path, capacity: capacity}
}

func (j *FileJournal) Append(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.load()
	if err != nil {
		return err
	}
	entries = append(entries, cloneEntry(entry))
	if over := len(entries) - j.capacity; over > 0 {
		entries = entries[over:]
	}
	return entitystore.WriteJSON(j.path, entries)
}

func (j *FileJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.load()
	if err != nil {
		return nil, err
	}
	return newestFirst(entries, limit), nil
}

func (j *FileJournal) Close() error {
	return nil
}

func (j *FileJournal) load() ([]Entry, error) {
	var entries []Entry
	if err := entitystore.ReadJSON(j.path, &entries); err != nil {
		if errors.Is(err, entitystore.ErrNotFound) {
			return []Entry{}, nil
		}
		return nil, err
	}
	return entries, nil
}
