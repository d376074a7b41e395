package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Category  string   `json:"category,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

func (n Note) DocumentID() string {
	return n.ID
}

type NoteInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Category string   `json:"category,omitempty"`
}

type NotePatch struct {
	ID       string    `json:"id,omitempty"`
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Category *string   `json:"category,omitempty"`
}

type NoteOptions struct {
	BaseDir string
	Logger  *log.Logger
	Now     func() time.Time
}

// Notes stores each note as <base>/<id>/note.json, newest first in the index.
type Notes struct {
	store *entitystore.Store[Note]
	now   func() time.Time
}

func NewNotes(opts NoteOptions) (*Notes, error) {
	store, err := entitystore.New(entitystore.Options[Note]{
		BaseDir:           opts.BaseDir,
		Collection:        "notes",
		Layout:            entitystore.FolderLayout{Primary: "note.json"},
		RequiredArtifacts: []string{"note.json"},
		IndexCompleteOnly: true,
		Placement:         entitystore.Prepend,
		SortOrder:         entitystore.Ascending,
		Validator:         noteValidator,
		Logger:            opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Notes{store: store, now: clock(opts.Now)}, nil
}

func (n *Notes) Name() string {
	return "notes"
}

func (n *Notes) Base() string {
	return n.store.Base()
}

// List returns notes most recently updated first.
func (n *Notes) List(ctx context.Context) ([]Note, error) {
	notes, err := n.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return parseTime(notes[i].UpdatedAt).After(parseTime(notes[j].UpdatedAt))
	})
	return notes, nil
}

func (n *Notes) Get(ctx context.Context, id string) (Note, error) {
	return n.store.Get(ctx, id)
}

func (n *Notes) Create(ctx context.Context, input NoteInput) (Note, error) {
	if strings.TrimSpace(input.Title) == "" {
		return Note{}, fmt.Errorf("%w: title is required", entitystore.ErrInvalidInput)
	}
	now := formatTime(n.now())
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	return n.store.Create(ctx, func(id string) (Note, error) {
		return Note{
			ID:        id,
			Title:     input.Title,
			Content:   input.Content,
			Tags:      tags,
			Category:  input.Category,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	})
}

func (n *Notes) Update(ctx context.Context, id string, patch NotePatch) (Note, error) {
	if patch.ID != "" && patch.ID != id {
		return Note{}, &entitystore.MismatchError{PathID: id, DocumentID: patch.ID}
	}
	return n.store.Mutate(ctx, id, func(note Note) (Note, error) {
		if patch.Title != nil {
			note.Title = *patch.Title
		}
		if patch.Content != nil {
			note.Content = *patch.Content
		}
		if patch.Tags != nil {
			note.Tags = *patch.Tags
		}
		if note.Tags == nil {
			note.Tags = []string{}
		}
		if patch.Category != nil {
			note.Category = *patch.Category
		}
		note.UpdatedAt = formatTime(n.now())
		return note, nil
	})
}

func (n *Notes) Delete(ctx context.Context, id string) error {
	return n.store.Delete(ctx, id)
}

// Search matches query case-insensitively against title, content, tags and
// category.
func (n *Notes) Search(ctx context.Context, query string) ([]Note, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return n.filter(ctx, func(note Note) bool {
		if strings.Contains(strings.ToLower(note.Title), q) || strings.Contains(strings.ToLower(note.Content), q) {
			return true
		}
		if note.Category != "" && strings.Contains(strings.ToLower(note.Category), q) {
			return true
		}
		for _, tag := range note.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})
}

func (n *Notes) ByTag(ctx context.Context, tag string) ([]Note, error) {
	return n.filter(ctx, func(note Note) bool {
		for _, t := range note.Tags {
			if strings.EqualFold(t, tag) {
				return true
			}
		}
		return false
	})
}

func (n *Notes) ByCategory(ctx context.Context, category string) ([]Note, error) {
	return n.filter(ctx, func(note Note) bool {
		return note.Category != "" && strings.EqualFold(note.Category, category)
	})
}

func (n *Notes) filter(ctx context.Context, keep func(Note) bool) ([]Note, error) {
	notes, err := n.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Note, 0, len(notes))
	for _, note := range notes {
		if keep(note) {
			out = append(out, note)
		}
	}
	return out, nil
}

func (n *Notes) SyncIndex(ctx context.Context) (entitystore.Report, error) {
	return n.store.SyncIndex(ctx)
}
