package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

func remarshal(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// Watcher reloads the configuration when the file changes and hands the
// new Config to a callback. Reload failures keep the previous config.
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	onReload func(*Config)
	logger   zerolog.Logger
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewWatcher starts watching the loader's config file. onReload runs on
// the watcher goroutine; keep it quick.
func NewWatcher(loader *Loader, logger zerolog.Logger, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	configPath, err := loader.resolvePath()
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(configPath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", configPath, err)
	}

	w := &Watcher{
		loader:   loader,
		watcher:  fsw,
		onReload: onReload,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("config watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload debounces bursts of write events from editors.
func (w *Watcher) scheduleReload() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		cfg, err := w.loader.Load()
		if err != nil {
			w.logger.Error().Err(err).Msg("config reload failed, keeping previous config")
			return
		}
		w.logger.Info().Msg("config reloaded")
		w.onReload(cfg)
	})
}
