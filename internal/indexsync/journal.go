package indexsync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultJournalCapacity = 500

var ErrInvalidDSN = errors.New("invalid journal dsn")

// Entry records one reconciliation that changed an index.
type Entry struct {
	Collection string    `json:"collection"`
	Source     string    `json:"source"`
	Added      []string  `json:"added"`
	Removed    []string  `json:"removed"`
	Total      int       `json:"total"`
	At         time.Time `json:"at"`
}

func EntryFromEvent(ev Event) Entry {
	at := ev.Report.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Entry{
		Collection: ev.Collection,
		Source:     ev.Source,
		Added:      nonNil(ev.Report.Added),
		Removed:    nonNil(ev.Report.Removed),
		Total:      ev.Report.Total,
		At:         at,
	}
}

// Journal keeps a history of index corrections. Recent returns the newest
// entries first.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Record subscribes j to every drift event the scheduler publishes.
func Record(s *Scheduler, j Journal, onError func(error)) {
	if s == nil || j == nil {
		return
	}
	s.Subscribe(func(ev Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.Append(ctx, EntryFromEvent(ev)); err != nil && onError != nil {
			onError(err)
		}
	})
}

type MemoryJournal struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &MemoryJournal{capacity: capacity}
}

func (j *MemoryJournal) Append(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, cloneEntry(entry))
	if over := len(j.entries) - j.capacity; over > 0 {
		j.entries = append([]Entry(nil), j.entries[over:]...)
	}
	return nil
}

func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return newestFirst(j.entries, limit), nil
}

func (j *MemoryJournal) Close() error {
	return nil
}

// BuildJournalFromDSN picks a backend by DSN scheme: memory://, file:///path,
// sqlite:///path or postgres://... An empty DSN means no journal.
func BuildJournalFromDSN(dsn string) (Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeScheme(parsed.Scheme)
	if factory, ok := lookupJournalFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "memory", "mem", "inmem":
		return NewMemoryJournal(0), nil
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewFileJournal(path, 0), nil
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLiteJournal(path)
	case "postgres", "postgresql":
		return NewPostgresJournal(dsn)
	default:
		return nil, fmt.Errorf("unsupported journal scheme: %s", scheme)
	}
}

type JournalFactory func(dsn string) (Journal, error)

var journalFactories = struct {
	mu        sync.RWMutex
	factories map[string]JournalFactory
}{factories: map[string]JournalFactory{}}

// RegisterJournalFactory makes BuildJournalFromDSN route scheme to factory,
// taking precedence over the built-in backends.
func RegisterJournalFactory(scheme string, factory JournalFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	journalFactories.mu.Lock()
	defer journalFactories.mu.Unlock()
	journalFactories.factories[scheme] = factory
}

func lookupJournalFactory(scheme string) (JournalFactory, bool) {
	scheme = normalizeScheme(scheme)
	journalFactories.mu.RLock()
	defer journalFactories.mu.RUnlock()
	factory, ok := journalFactories.factories[scheme]
	return factory, ok
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if strings.TrimSpace(parsed.Scheme) == "" {
		if strings.TrimSpace(raw) == "" {
			return "", ErrInvalidDSN
		}
		return strings.TrimSpace(raw), nil
	}
	path := strings.TrimSpace(parsed.Path)
	if path == "" {
		path = strings.TrimSpace(parsed.Opaque)
	}
	if path == "" {
		path = strings.TrimSpace(parsed.Host)
	}
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidDSN, raw)
	}
	return path, nil
}

func newestFirst(entries []Entry, limit int) []Entry {
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cloneEntry(entries[i]))
	}
	return out
}

func cloneEntry(e Entry) Entry {
	e.Added = append([]string{}, e.Added...)
	e.Removed = append([]string{}, e.Removed...)
	return e
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
