package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc is called with a service whose documents changed on disk
type ReloadFunc func(ctx context.Context, service string) error

// Watcher reloads services when their documents change in watched directories
type Watcher struct {
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	dirs      []string
	reload    ReloadFunc
	logger    *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithWatchLogger sets the watcher logger
func WithWatchLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce changes how long changes are collected before reloading
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debouncer.duration = d
	}
}

// NewWatcher creates a watcher over dirs calling reload for changed services
func NewWatcher(dirs []string, reload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:   fsw,
		debouncer: newDebouncer(100 * time.Millisecond),
		dirs:      dirs,
		reload:    reload,
		logger:    zap.NewNop(),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. Reloads run with ctx until Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		w.logger.Debug("watching metadata directory", zap.String("dir", dir))
	}

	w.debouncer.setCallback(func(services []string) {
		for _, svc := range services {
			if err := w.reload(ctx, svc); err != nil {
				w.logger.Error("metadata reload failed", zap.String("service", svc), zap.Error(err))
				continue
			}
			w.logger.Info("metadata reloaded", zap.String("service", svc))
		}
	})

	w.wg.Add(1)
	go w.watch(ctx)

	return nil
}

// Stop stops the watcher. Calling Stop twice is safe.
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
		return nil
	default:
		close(w.stopChan)
	}

	w.wg.Wait()
	w.debouncer.stop()
	return w.watcher.Close()
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if svc, _, ok := ParseFileName(event.Name); ok {
				w.debouncer.add(svc)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("metadata watcher error", zap.Error(err))

		case <-ctx.Done():
			return

		case <-w.stopChan:
			return
		}
	}
}

// debouncer collects changed services and flushes them after a quiet period
type debouncer struct {
	duration time.Duration
	timer    *time.Timer
	pending  map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		pending:  make(map[string]struct{}),
	}
}

func (d *debouncer) add(service string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.pending[service] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

func (d *debouncer) flush() {
	d.mutex.Lock()
	if len(d.pending) == 0 || d.callback == nil {
		d.mutex.Unlock()
		return
	}

	services := make([]string, 0, len(d.pending))
	for svc := range d.pending {
		services = append(services, svc)
	}
	sort.Strings(services)
	d.pending = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	callback(services)
}

func (d *debouncer) setCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

func (d *debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
