package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/boardci/boardci/internal/config"
	"github.com/boardci/boardci/internal/logfields"
)

// ConfigWatcher monitors the daemon configuration file and reloads it
// on change, debounced against rapid successive writes.
type ConfigWatcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	onReload   func(*config.DaemonConfig)
}

// NewConfigWatcher creates a watcher calling onReload with each freshly
// loaded configuration.
func NewConfigWatcher(configPath string, onReload func(*config.DaemonConfig)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &ConfigWatcher{
		configPath: absPath,
		watcher:    watcher,
		debounce:   2 * time.Second,
		onReload:   onReload,
	}, nil
}

// Start begins monitoring. Watching the directory is more reliable than
// watching the file, which editors replace on save.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	if err := cw.watcher.Add(filepath.Dir(cw.configPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	slog.Info("Watching configuration file", logfields.Path(cw.configPath))

	go cw.watchLoop(ctx)
	return nil
}

// Stop closes the filesystem watcher.
func (cw *ConfigWatcher) Stop() error {
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Name != cw.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounce, cw.reload)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := config.LoadDaemonConfig(cw.configPath)
	if err != nil {
		slog.Error("Ignoring invalid configuration reload", logfields.Path(cw.configPath), logfields.Error(err))
		return
	}
	slog.Info("Configuration reloaded", logfields.Path(cw.configPath), slog.Int("boards", len(cfg.Boards)))
	cw.onReload(cfg)
}
