package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for events to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher reloads a config file whenever it changes on disk and hands the
// result to a callback. It watches the file's directory rather than the
// file itself because editors usually save by rename.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *logging.Logger
	onChange func(*Config, error)

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher for path. onChange receives the reloaded
// config, or the error that prevented loading it, on the watcher goroutine.
func NewWatcher(path string, onChange func(*Config, error), opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   logging.NopLogger(),
		onChange: onChange,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("config_watcher")
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops watching and waits for the watch goroutine to exit. It is
// idempotent and must not be called from onChange.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	<-w.done
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer
	pending := false

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			cfg, err := w.reload()
			if err != nil {
				w.logger.Warn("config reload failed", "path", w.path, "error", err)
			} else {
				w.logger.Info("config reloaded", "path", w.path)
			}
			if w.onChange != nil {
				w.onChange(cfg, err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}

// reload reads the file into a fresh viper so that a bad edit never
// disturbs the configuration already in use.
func (w *Watcher) reload() (*Config, error) {
	v := viper.New()
	SetDefaultsOn(v)
	BindEnv(v)
	v.SetConfigFile(w.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return LoadFrom(v)
}
