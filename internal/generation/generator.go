package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
	"github.com/ssfxx0923/Learning-Studio/internal/learning"
)

var (
	ErrNotifyFailed = errors.New("generation engine notify failed")
	ErrEmptyMessage = fmt.Errorf("%w: message is required", entitystore.ErrInvalidInput)
)

// NotifyError means the engine never accepted the request. The reserved
// folder has already been removed when this is returned.
type NotifyError struct {
	ID  string
	Err error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify engine for article %s: %v", e.ID, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

func (e *NotifyError) Is(target error) bool {
	return target == ErrNotifyFailed
}

// TimeoutError carries the id of the folder left behind for a later sync.
type TimeoutError struct {
	ID       string
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("article %s not ready after %d checks", e.ID, e.Attempts)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

type Notifier interface {
	Generate(ctx context.Context, message, requestID string) error
}

// ArticleStore is the slice of the article collection generation touches.
type ArticleStore interface {
	Reserve(ctx context.Context, id string) error
	HasArtifacts(ctx context.Context, id string) (bool, error)
	Register(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (learning.Article, error)
}

type GeneratorOptions struct {
	Poller Poller
	Logger *log.Logger
	NewID  func() (string, error)
}

type ArticleGenerator struct {
	store    ArticleStore
	notifier Notifier
	poller   Poller
	logger   *log.Logger
	newID    func() (string, error)
}

func NewArticleGenerator(store ArticleStore, notifier Notifier, opts GeneratorOptions) *ArticleGenerator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	newID := opts.NewID
	if newID == nil {
		newID = entitystore.NewID
	}
	return &ArticleGenerator{
		store:    store,
		notifier: notifier,
		poller:   opts.Poller,
		logger:   logger,
		newID:    newID,
	}
}

// Generate reserves a folder, hands the message to the engine and waits
// until the engine has written every required artifact.
func (g *ArticleGenerator) Generate(ctx context.Context, message string) (learning.Article, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return learning.Article{}, ErrEmptyMessage
	}
	id, err := g.newID()
	if err != nil {
		return learning.Article{}, err
	}
	if err := g.store.Reserve(ctx, id); err != nil {
		return learning.Article{}, err
	}
	logger := g.logger.With("article", id)
	logger.Info("article generation requested")

	if err := g.notifier.Generate(ctx, message, id); err != nil {
		// Detached so cleanup still runs after the request is cancelled.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if delErr := g.store.Delete(cleanupCtx, id); delErr != nil {
			logger.Error("remove reserved folder after notify failure", "err", delErr)
		}
		logger.Warn("engine notify failed", "err", err)
		return learning.Article{}, &NotifyError{ID: id, Err: err}
	}

	started := time.Now()
	attempts, err := g.poller.Wait(ctx, func(ctx context.Context) (bool, error) {
		return g.store.HasArtifacts(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrGenerationTimeout) {
			logger.Warn("article generation timed out, folder kept for later sync", "attempts", attempts)
			return learning.Article{}, &TimeoutError{ID: id, Attempts: attempts, Err: err}
		}
		return learning.Article{}, err
	}
	if err := g.store.Register(ctx, id); err != nil {
		return learning.Article{}, err
	}
	logger.Info("article ready", "attempts", attempts, "elapsed", time.Since(started).Round(time.Millisecond))
	return g.store.Get(ctx, id)
}
