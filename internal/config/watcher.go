package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk and hands the
// parsed result to a callback. Bursts of events are debounced.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	Debounce time.Duration
}

func NewWatcher(path string, logger *zap.Logger, onChange func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
		Debounce: DefaultDebounce,
	}, nil
}

// Start watches the file's directory, since editors often replace the file
// rather than write it in place. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.Info("watching config", zap.String("path", w.path))

	debounce := time.NewTimer(0)
	<-debounce.C

	go func() {
		defer debounce.Stop()
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if w.shouldProcessEvent(event) {
					w.logger.Debug("config change detected", zap.String("op", event.Op.String()))
					debounce.Reset(w.Debounce)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("watcher error", zap.Error(err))

			case <-debounce.C:
				w.reload()

			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", zap.Error(err))
		return
	}
	if cfg, err = cfg.Validate(); err != nil {
		w.logger.Warn("reloaded config rejected", zap.Error(err))
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.path))
	w.onChange(cfg)
}
