package indexsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultDebounce = 500 * time.Millisecond
)

var ErrAlreadyRunning = errors.New("scheduler already running")

// Target is one collection the scheduler keeps reconciled.
type Target interface {
	Name() string
	Base() string
	SyncIndex(ctx context.Context) (entitystore.Report, error)
}

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Event is published for every reconciliation that corrected drift.
type Event struct {
	Collection string             `json:"collection"`
	Source     string             `json:"source"`
	Report     entitystore.Report `json:"report"`
}

type Options struct {
	Interval time.Duration
	// Watch enables filesystem notifications that trigger an early pass.
	Watch    bool
	Debounce time.Duration
	Logger   *log.Logger
}

type Status struct {
	Collection string              `json:"collection"`
	State      string              `json:"state"`
	Interval   string              `json:"interval"`
	Watching   bool                `json:"watching"`
	Runs       int64               `json:"runs"`
	Changes    int64               `json:"changes"`
	LastRun    *time.Time          `json:"lastRun,omitempty"`
	LastError  string              `json:"lastError,omitempty"`
	LastChange *entitystore.Report `json:"lastChange,omitempty"`
}

// Scheduler reconciles one collection immediately on Start and then on a
// fixed interval until Stop.
type Scheduler struct {
	target   Target
	interval time.Duration
	watch    bool
	debounce time.Duration
	logger   *log.Logger

	mu          sync.Mutex
	state       State
	cancel      context.CancelFunc
	done        chan struct{}
	watching    bool
	runs        int64
	changes     int64
	lastRun     time.Time
	lastErr     error
	lastChange  *entitystore.Report
	subscribers []func(Event)
}

func NewScheduler(target Target, opts Options) (*Scheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("target is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scheduler{
		target:   target,
		interval: interval,
		watch:    opts.Watch,
		debounce: debounce,
		logger:   logger.With("collection", target.Name()),
	}, nil
}

func (s *Scheduler) Name() string {
	return s.target.Name()
}

// Subscribe registers fn for every reconciliation that found drift.
func (s *Scheduler) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		s.logger.Warn("index sync already running")
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	var w *watcher
	if s.watch {
		var err error
		w, err = newWatcher(s.target.Base(), s.debounce, s.logger)
		if err != nil {
			s.logger.Warn("filesystem watch unavailable, relying on interval", "err", err)
			w = nil
		}
	}
	s.state = Running
	s.cancel = cancel
	s.done = done
	s.watching = w != nil
	go s.loop(runCtx, done, w)
	s.logger.Info("index sync started", "interval", s.interval, "watch", w != nil)
	return nil
}

// Stop cancels the loop and waits for it to exit. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = Stopped
	s.cancel = nil
	s.done = nil
	s.watching = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("index sync stopped")
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SyncNow runs one reconciliation on the caller's goroutine.
func (s *Scheduler) SyncNow(ctx context.Context, source string) (entitystore.Report, error) {
	if source == "" {
		source = "manual"
	}
	return s.run(ctx, source)
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{
		Collection: s.target.Name(),
		State:      s.state.String(),
		Interval:   s.interval.String(),
		Watching:   s.watching,
		Runs:       s.runs,
		Changes:    s.changes,
		LastChange: s.lastChange,
	}
	if !s.lastRun.IsZero() {
		lastRun := s.lastRun
		status.LastRun = &lastRun
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}, w *watcher) {
	defer close(done)
	var wake <-chan struct{}
	if w != nil {
		defer w.Close()
		wake = w.C
	}

	s.tick(ctx, "startup")
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.tick(ctx, "interval")
			timer.Reset(s.interval)
		case <-wake:
			s.tick(ctx, "watch")
		}
	}
}

// tick never propagates failures; the next tick retries.
func (s *Scheduler) tick(ctx context.Context, source string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("index sync panicked", "source", source, "panic", r)
		}
	}()
	if _, err := s.run(ctx, source); err != nil && ctx.Err() == nil {
		s.logger.Error("index sync failed", "source", source, "err", err)
	}
}

func (s *Scheduler) run(ctx context.Context, source string) (entitystore.Report, error) {
	report, err := s.target.SyncIndex(ctx)

	s.mu.Lock()
	s.runs++
	s.lastRun = time.Now().UTC()
	s.lastErr = err
	var subscribers []func(Event)
	if err == nil && report.Changed() {
		s.changes++
		changed := report
		s.lastChange = &changed
		subscribers = append(subscribers, s.subscribers...)
	}
	s.mu.Unlock()

	if err != nil {
		return entitystore.Report{}, err
	}
	if report.Changed() {
		s.logger.Info("index synchronized", "source", source, "added", report.Added, "removed", report.Removed, "total", report.Total)
		event := Event{Collection: s.target.Name(), Source: source, Report: report}
		for _, fn := range subscribers {
			fn(event)
		}
	}
	return report, nil
}
