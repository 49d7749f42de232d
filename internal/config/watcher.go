package config

import (
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot reloads the configuration file and notifies subscribers. A
// reload that fails to parse or validate is logged and discarded; the last
// good configuration stays active.
type Watcher struct {
	path   string
	logger *zap.Logger

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)

	fs     *fsnotify.Watcher
	stopCh chan struct{}
	done   chan struct{}
}

// NewWatcher starts watching the directory containing path. Watching the
// directory rather than the file survives editors that replace the file on
// save.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		logger:  logger.Named("configwatcher"),
		current: initial,
		fs:      fs,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers a callback fired after every accepted reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Current returns the last accepted configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop terminates the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer w.fs.Close()

	// Debounce rapid write bursts from editors and atomic renames.
	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watch error", zap.Error(err))

		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload rejected, keeping previous",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	if w.current != nil && reflect.DeepEqual(*w.current, *cfg) {
		w.mu.Unlock()
		return
	}
	w.current = cfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn(cfg)
	}
}
