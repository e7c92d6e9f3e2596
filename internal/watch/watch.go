// Package watch applies a YAML settings override file to the running app
// whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gmsas95/skysense/internal/health"
)

// DefaultDebounce coalesces the burst of events editors emit on save
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches a single settings file
type Watcher struct {
	path     string
	apply    func(health.SettingsPatch)
	logger   *zap.Logger
	debounce time.Duration

	fs        *fsnotify.Watcher
	mu        sync.Mutex
	timer     *time.Timer
	closeOnce sync.Once
	done      chan struct{}
}

// New watches the directory holding path. apply receives each non-empty patch.
func New(path string, apply func(health.SettingsPatch), logger *zap.Logger) (*Watcher, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("settings file path required")
	}
	if apply == nil {
		return nil, fmt.Errorf("apply function required")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:     path,
		apply:    apply,
		logger:   logger,
		debounce: DefaultDebounce,
		fs:       fs,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the debounce window; call before Run
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Path returns the watched file
func (w *Watcher) Path() string {
	return w.path
}

// Run applies the current file contents, then every change, until ctx is
// cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	if _, err := os.Stat(w.path); err == nil {
		w.reload()
	}

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Settings watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	patch, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Settings override not applied", zap.String("path", w.path), zap.Error(err))
		return
	}
	if patch.IsEmpty() {
		return
	}
	w.logger.Info("Applying settings override", zap.String("path", w.path))
	w.apply(patch)
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.fs.Close()
	})
}

// Load decodes a settings patch from a YAML file
func Load(path string) (health.SettingsPatch, error) {
	var patch health.SettingsPatch
	data, err := os.ReadFile(path)
	if err != nil {
		return patch, err
	}
	if err := yaml.Unmarshal(data, &patch); err != nil {
		return patch, fmt.Errorf("parse %s: %w", path, err)
	}
	return patch, nil
}
