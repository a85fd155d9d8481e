package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the configuration document for changes and triggers
// reloads. It implements debouncing to prevent reload storms: editors and
// atomic-rename writers emit bursts of events for a single save.
type Watcher struct {
	// path is the configuration document being watched; the watch itself is
	// placed on the parent directory so rename-style saves keep working
	path     string
	watcher  *fsnotify.Watcher
	debounce *debouncer
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	running  bool
	stopping bool
	closeErr error
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for the given configuration document path.
func NewWatcher(path string, debounce time.Duration, logger *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		watcher:  fsw,
		debounce: newDebouncer(debounce),
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch starts watching for document changes and invokes onReload after each
// debounced change. Blocking; runs until the context is cancelled or Stop is
// called, releasing the fsnotify handle on every exit path. A Watcher is
// single-use: once the loop has exited the handle is closed and Watch cannot
// run again. A failing reload is logged and watching continues.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.stop()
		err := w.watcher.Close()
		w.mu.Lock()
		w.closeErr = err
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Infow("configuration watcher started",
		"path", w.path,
		"debounce", w.debounce.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}
			w.logger.Debugw("configuration document changed",
				"path", event.Name,
				"op", event.Op.String())

			w.debounce.trigger(func() {
				if err := onReload(); err != nil {
					w.logger.Errorw("configuration reload failed", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Errorw("configuration watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and cancels any pending debounced reload. Calling
// Stop when the watch loop never ran or already exited is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running || w.stopping {
		w.mu.Unlock()
		return nil
	}
	w.stopping = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closeErr != nil {
		return fmt.Errorf("failed to close watcher: %w", w.closeErr)
	}
	return nil
}

// shouldProcessEvent filters directory noise down to writes of the watched
// document. Chmod-only events carry no content change.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.path)
}

// debouncer collects rapid events and fires the callback only after a quiet
// period.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopCh   chan struct{}
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// trigger arms the debouncer; the callback runs after the interval unless a
// newer trigger replaces it first.
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	})
}

// stop cancels any pending callback.
func (d *debouncer) stop() {
	close(d.stopCh)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
