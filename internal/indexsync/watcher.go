package indexsync

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

// watcher coalesces filesystem changes under a collection directory into
// wake-ups on C. It watches the base directory and each entity folder one
// level below it.
type watcher struct {
	C <-chan struct{}

	base     string
	fsw      *fsnotify.Watcher
	wake     chan struct{}
	debounce time.Duration
	logger   *log.Logger
	done     chan struct{}
	exited   chan struct{}
}

func newWatcher(base string, debounce time.Duration, logger *log.Logger) (*watcher, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(base); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() && !ignoredName(entry.Name()) {
			_ = fsw.Add(filepath.Join(base, entry.Name()))
		}
	}
	wake := make(chan struct{}, 1)
	w := &watcher{
		C:        wake,
		base:     filepath.Clean(base),
		fsw:      fsw,
		wake:     wake,
		debounce: debounce,
		logger:   logger,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *watcher) Close() {
	close(w.done)
	_ = w.fsw.Close()
	<-w.exited
}

func (w *watcher) run() {
	defer close(w.exited)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case w.wake <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", "err", err)
		}
	}
}

func (w *watcher) relevant(ev fsnotify.Event) bool {
	if ignoredName(filepath.Base(ev.Name)) {
		return false
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.base {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.logger.Debug("cannot watch entity folder", "path", ev.Name, "err", err)
			}
		}
	}
	return true
}

func ignoredName(name string) bool {
	return name == entitystore.IndexFileName || strings.HasPrefix(name, ".")
}
