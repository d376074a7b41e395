package indexsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	journalTableName      = "learnstudio_sync_journal"
	sqlOperationTimeout   = 5 * time.Second
	journalTimeFormat     = time.RFC3339Nano
	postgresJournalSchema = `
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			source TEXT NOT NULL,
			added TEXT NOT NULL,
			removed TEXT NOT NULL,
			total INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		)`
	sqliteJournalSchema = `
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			source TEXT NOT NULL,
			added TEXT NOT NULL,
			removed TEXT NOT NULL,
			total INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		)`
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// SQLJournal stores entries in a relational table. The table is created on
// first use.
type SQLJournal struct {
	driver      string
	dsn         string
	table       string
	schema      string
	placeholder func(n int) string
	maxConns    int
	openDB      sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresJournal(dsn string) (*SQLJournal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidDSN
	}
	return &SQLJournal{
		driver:      "postgres",
		dsn:         dsn,
		table:       journalTableName,
		schema:      postgresJournalSchema,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		openDB:      sql.Open,
	}, nil
}

// NewSQLiteJournal opens (or creates) a database file at path.
func NewSQLiteJournal(path string) (*SQLJournal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidDSN
	}
	return &SQLJournal{
		driver:      "sqlite",
		dsn:         path,
		table:       journalTableName,
		schema:      sqliteJournalSchema,
		placeholder: func(int) string { return "?" },
		maxConns:    1,
		openDB:      sql.Open,
	}, nil
}

func (j *SQLJournal) Append(ctx context.Context, entry Entry) error {
	if err := j.ensureReady(); err != nil {
		return err
	}
	added, err := json.Marshal(nonNil(entry.Added))
	if err != nil {
		return err
	}
	removed, err := json.Marshal(nonNil(entry.Removed))
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	p := j.placeholder
	query := fmt.Sprintf(
		"INSERT INTO %s (collection, source, added, removed, total, recorded_at) VALUES (%s, %s, %s, %s, %s, %s)",
		quoteIdentifier(j.table), p(1), p(2), p(3), p(4), p(5), p(6),
	)
	_, err = j.db.ExecContext(ctx, query,
		entry.Collection, entry.Source, string(added), string(removed), entry.Total, at.UTC().Format(journalTimeFormat))
	return err
}

func (j *SQLJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if err := j.ensureReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultJournalCapacity
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT collection, source, added, removed, total, recorded_at FROM %s ORDER BY id DESC LIMIT %s",
		quoteIdentifier(j.table), j.placeholder(1),
	)
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		var added, removed, recordedAt string
		if err := rows.Scan(&entry.Collection, &entry.Source, &added, &removed, &entry.Total, &recordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(added), &entry.Added); err != nil {
			return nil, fmt.Errorf("decode added ids: %w", err)
		}
		if err := json.Unmarshal([]byte(removed), &entry.Removed); err != nil {
			return nil, fmt.Errorf("decode removed ids: %w", err)
		}
		entry.At, err = time.Parse(journalTimeFormat, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("decode recorded_at: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (j *SQLJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *SQLJournal) ensureReady() error {
	j.initOnce.Do(func() {
		db, err := j.openDB(j.driver, j.dsn)
		if err != nil {
			j.initErr = err
			return
		}
		if j.maxConns > 0 {
			db.SetMaxOpenConns(j.maxConns)
		}
		ctx, cancel := context.WithTimeout(context.Background(), sqlOperationTimeout)
		defer cancel()
		if _, err := db.ExecContext(ctx, fmt.Sprintf(j.schema, quoteIdentifier(j.table))); err != nil {
			_ = db.Close()
			j.initErr = err
			return
		}
		j.db = db
	})
	return j.initErr
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
