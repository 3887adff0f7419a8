package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher hot-reloads the configuration file. The current snapshot is
// swapped atomically; callers take a snapshot per workflow advance so an
// in-flight advance never observes a mixed configuration.
type Watcher struct {
	logger  zerolog.Logger
	path    string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *Config
	onSwap  func(*Config)
}

// NewWatcher creates a watcher over the given config file. The initial
// configuration is loaded immediately.
func NewWatcher(logger zerolog.Logger, path string, onSwap func(*Config)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		logger:  logger.With().Str("component", "config-watcher").Logger(),
		path:    path,
		current: cfg,
		onSwap:  onSwap,
	}, nil
}

// Current returns the active configuration snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Watch starts watching the config file until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	go w.processEvents(ctx)

	w.logger.Info().Str("path", w.path).Msg("Started watching configuration")
	return nil
}

// processEvents handles file system events with debounced reloads.
func (w *Watcher) processEvents(ctx context.Context) {
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if w.watcher != nil {
				_ = w.watcher.Close()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Configuration file changed")

				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(reloadDelay, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// reload loads and swaps in the new configuration. A file that fails to
// load or validate leaves the previous snapshot active.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload configuration, keeping previous")
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	if w.onSwap != nil {
		w.onSwap(cfg)
	}
	w.logger.Info().Msg("Configuration reloaded")
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
