package entitystore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Document is any entity persisted by a Store. The id it reports must match
// the id it is stored under.
type Document interface {
	DocumentID() string
}

type Placement int

const (
	Append Placement = iota
	Prepend
)

// Loader resolves an entity that is not a single self-describing JSON
// document. entryPath is <base>/<EntryName(id)>.
type Loader[T Document] func(entryPath, id string) (T, error)

type Options[T Document] struct {
	BaseDir    string
	Collection string
	Layout     Layout
	// RequiredArtifacts are file names inside an entity folder that must
	// exist before the entity counts as complete. Defaults to the primary
	// document.
	RequiredArtifacts []string
	// IndexCompleteOnly keeps entities lacking required artifacts out of
	// the index during reconciliation.
	IndexCompleteOnly bool
	Placement         Placement
	SortOrder         SortOrder
	Loader            Loader[T]
	Validator         *Validator
	Logger            *log.Logger
	NewID             func() (string, error)
}

type Store[T Document] struct {
	base       string
	collection string
	layout     Layout
	required   []string
	complete   bool
	placement  Placement
	order      SortOrder
	loader     Loader[T]
	validator  *Validator
	logger     *log.Logger
	newID      func() (string, error)
	index      *IndexStore

	docMu sync.Mutex
}

func New[T Document](opts Options[T]) (*Store[T], error) {
	base := strings.TrimSpace(opts.BaseDir)
	if base == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		return nil, fmt.Errorf("collection key is required")
	}
	if opts.Layout == nil {
		return nil, fmt.Errorf("layout is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	newID := opts.NewID
	if newID == nil {
		newID = NewID
	}
	base = filepath.Clean(base)
	return &Store[T]{
		base:       base,
		collection: collection,
		layout:     opts.Layout,
		required:   append([]string(nil), opts.RequiredArtifacts...),
		complete:   opts.IndexCompleteOnly,
		placement:  opts.Placement,
		order:      opts.SortOrder,
		loader:     opts.Loader,
		validator:  opts.Validator,
		logger:     logger,
		newID:      newID,
		index:      NewIndexStore(base, collection),
	}, nil
}

func (s *Store[T]) Base() string {
	return s.base
}

func (s *Store[T]) Collection() string {
	return s.collection
}

func (s *Store[T]) Index() *IndexStore {
	return s.index
}

func (s *Store[T]) entryPath(id string) string {
	return filepath.Join(s.base, s.layout.EntryName(id))
}

func (s *Store[T]) checkID(id string) error {
	if err := ValidID(id); err != nil {
		return err
	}
	if s.layout.EntryName(id) == IndexFileName {
		return fmt.Errorf("%w: %q collides with the index file", ErrInvalidID, id)
	}
	return nil
}

// Create allocates a fresh id, writes the document built for it and places
// the id in the index.
func (s *Store[T]) Create(ctx context.Context, build func(id string) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s.loader != nil {
		return zero, fmt.Errorf("%w: %s documents are written externally", ErrUnsupported, s.collection)
	}
	id, err := s.newID()
	if err != nil {
		return zero, err
	}
	if err := s.checkID(id); err != nil {
		return zero, err
	}
	exists, err := Exists(s.entryPath(id))
	if err != nil {
		return zero, err
	}
	if exists {
		return zero, fmt.Errorf("%w: %s %s", ErrAlreadyExists, s.collection, id)
	}
	doc, err := build(id)
	if err != nil {
		return zero, err
	}
	if doc.DocumentID() != id {
		return zero, &MismatchError{PathID: id, DocumentID: doc.DocumentID()}
	}
	if err := s.validator.Validate(doc); err != nil {
		return zero, err
	}
	if err := WriteJSON(s.layout.DocumentPath(s.base, id), doc); err != nil {
		return zero, err
	}
	if err := s.place(ctx, id); err != nil {
		return zero, err
	}
	return doc, nil
}

// Reserve creates an empty entity folder for a caller-supplied id. The index
// is left untouched until the entity is registered or reconciled.
func (s *Store[T]) Reserve(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.layout.IsFolder() {
		return fmt.Errorf("%w: reserve needs a folder collection", ErrUnsupported)
	}
	if err := s.checkID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.base, dirMode); err != nil {
		return err
	}
	if err := os.Mkdir(s.entryPath(id), dirMode); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s %s", ErrAlreadyExists, s.collection, id)
		}
		return err
	}
	return nil
}

// Register places id in the index if it is not already present.
func (s *Store[T]) Register(ctx context.Context, id string) error {
	if err := s.checkID(id); err != nil {
		return err
	}
	return s.place(ctx, id)
}

func (s *Store[T]) place(ctx context.Context, id string) error {
	return s.index.Update(ctx, func(ids []string) ([]string, bool, error) {
		if containsID(ids, id) {
			return nil, false, nil
		}
		if s.placement == Prepend {
			return append([]string{id}, ids...), true, nil
		}
		return append(ids, id), true, nil
	})
}

func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := s.checkID(id); err != nil {
		return zero, err
	}
	if s.loader != nil {
		exists, err := Exists(s.entryPath(id))
		if err != nil {
			return zero, err
		}
		if !exists {
			return zero, fmt.Errorf("%w: %s %s", ErrNotFound, s.collection, id)
		}
		return s.loader(s.entryPath(id), id)
	}
	var doc T
	if err := ReadJSON(s.layout.DocumentPath(s.base, id), &doc); err != nil {
		return zero, err
	}
	return doc, nil
}

// List resolves every indexed id in index order. Entities that fail to
// resolve are logged and skipped.
func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	ids, err := s.index.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unreadable entity", "collection", s.collection, "id", id, "err", err)
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// Update overwrites an existing document. The document must carry id.
func (s *Store[T]) Update(ctx context.Context, id string, doc T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := s.checkID(id); err != nil {
		return zero, err
	}
	if doc.DocumentID() != id {
		return zero, &MismatchError{PathID: id, DocumentID: doc.DocumentID()}
	}
	s.docMu.Lock()
	defer s.docMu.Unlock()
	if err := s.overwrite(id, doc); err != nil {
		return zero, err
	}
	return doc, nil
}

// Mutate reads the document for id, applies fn and writes the result back.
// Concurrent mutations through the same Store are serialized.
func (s *Store[T]) Mutate(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	var zero T
	s.docMu.Lock()
	defer s.docMu.Unlock()
	current, err := s.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	next, err := fn(current)
	if err != nil {
		return zero, err
	}
	if next.DocumentID() != id {
		return zero, &MismatchError{PathID: id, DocumentID: next.DocumentID()}
	}
	if err := s.overwrite(id, next); err != nil {
		return zero, err
	}
	return next, nil
}

func (s *Store[T]) overwrite(id string, doc T) error {
	if s.loader != nil {
		return fmt.Errorf("%w: %s documents are written externally", ErrUnsupported, s.collection)
	}
	path := s.layout.DocumentPath(s.base, id)
	exists, err := Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrNotFound, s.collection, id)
	}
	if err := s.validator.Validate(doc); err != nil {
		return err
	}
	return WriteJSON(path, doc)
}

// Delete removes the entity and prunes its index entry. A missing entity is
// not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkID(id); err != nil {
		return err
	}
	removeErr := os.RemoveAll(s.entryPath(id))
	if removeErr != nil {
		s.logger.Error("failed to remove entity", "collection", s.collection, "id", id, "err", removeErr)
	}
	pruneErr := s.index.Update(ctx, func(ids []string) ([]string, bool, error) {
		next, removed := withoutID(ids, id)
		return next, removed, nil
	})
	return errors.Join(removeErr, pruneErr)
}

// Exists reports whether the entity entry is present on disk.
func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.checkID(id); err != nil {
		return false, err
	}
	return Exists(s.entryPath(id))
}

// HasArtifacts reports whether every required artifact of id exists. Files
// are probed for presence only.
func (s *Store[T]) HasArtifacts(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.checkID(id); err != nil {
		return false, err
	}
	if !s.layout.IsFolder() || len(s.required) == 0 {
		return Exists(s.layout.DocumentPath(s.base, id))
	}
	for _, name := range s.required {
		ok, err := Exists(filepath.Join(s.entryPath(id), name))
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// SyncIndex reconciles the index with the collection directory.
func (s *Store[T]) SyncIndex(ctx context.Context) (Report, error) {
	opts := ReconcileOptions{Layout: s.layout, Order: s.order}
	if s.complete {
		opts.Admit = func(id string) (bool, error) {
			return s.HasArtifacts(ctx, id)
		}
	}
	return Reconcile(ctx, s.index, s.base, opts)
}
