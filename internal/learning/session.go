package learning

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

// Session is a chat transcript. Mental-health sessions use Title, research
// sessions use Topic.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

func (s Session) DocumentID() string {
	return s.ID
}

// SessionPatch carries the fields a client may change on an existing
// session. Nil fields are left untouched.
type SessionPatch struct {
	ID       string    `json:"id,omitempty"`
	Title    *string   `json:"title,omitempty"`
	Topic    *string   `json:"topic,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

type SessionOptions struct {
	Name      string
	BaseDir   string
	Placement entitystore.Placement
	SortOrder entitystore.SortOrder
	Logger    *log.Logger
	Now       func() time.Time
}

// Sessions stores each session as <base>/<id>/session.json.
type Sessions struct {
	name  string
	store *entitystore.Store[Session]
	now   func() time.Time
}

func NewSessions(opts SessionOptions) (*Sessions, error) {
	store, err := entitystore.New(entitystore.Options[Session]{
		BaseDir:    opts.BaseDir,
		Collection: "sessions",
		Layout:     entitystore.FolderLayout{Primary: "session.json"},
		Placement:  opts.Placement,
		SortOrder:  opts.SortOrder,
		Validator:  sessionValidator,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = "sessions"
	}
	return &Sessions{name: name, store: store, now: clock(opts.Now)}, nil
}

func (s *Sessions) Name() string {
	return s.name
}

func (s *Sessions) Base() string {
	return s.store.Base()
}

// List returns sessions most recently updated first.
func (s *Sessions) List(ctx context.Context) ([]Session, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return parseTime(sessions[i].UpdatedAt).After(parseTime(sessions[j].UpdatedAt))
	})
	return sessions, nil
}

func (s *Sessions) Get(ctx context.Context, id string) (Session, error) {
	return s.store.Get(ctx, id)
}

func (s *Sessions) Create(ctx context.Context, title, topic string) (Session, error) {
	now := formatTime(s.now())
	return s.store.Create(ctx, func(id string) (Session, error) {
		return Session{
			ID:        id,
			Title:     title,
			Topic:     topic,
			Messages:  []Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	})
}

// Update merges patch into the stored session. id and createdAt never change.
func (s *Sessions) Update(ctx context.Context, id string, patch SessionPatch) (Session, error) {
	if patch.ID != "" && patch.ID != id {
		return Session{}, &entitystore.MismatchError{PathID: id, DocumentID: patch.ID}
	}
	for i, msg := range patch.Messages {
		normalized, err := normalizeMessage(msg, s.now())
		if err != nil {
			return Session{}, err
		}
		patch.Messages[i] = normalized
	}
	return s.store.Mutate(ctx, id, func(session Session) (Session, error) {
		if patch.Title != nil {
			session.Title = *patch.Title
		}
		if patch.Topic != nil {
			session.Topic = *patch.Topic
		}
		if patch.Messages != nil {
			session.Messages = patch.Messages
		}
		if session.Messages == nil {
			session.Messages = []Message{}
		}
		session.UpdatedAt = formatTime(s.now())
		return session, nil
	})
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Sessions) Messages(ctx context.Context, id string) ([]Message, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Messages == nil {
		return []Message{}, nil
	}
	return session.Messages, nil
}

func (s *Sessions) AppendMessage(ctx context.Context, id string, msg Message) (Session, error) {
	now := s.now()
	msg, err := normalizeMessage(msg, now)
	if err != nil {
		return Session{}, err
	}
	return s.store.Mutate(ctx, id, func(session Session) (Session, error) {
		session.Messages = append(session.Messages, msg)
		session.UpdatedAt = formatTime(now)
		return session, nil
	})
}

func (s *Sessions) SyncIndex(ctx context.Context) (entitystore.Report, error) {
	return s.store.SyncIndex(ctx)
}
