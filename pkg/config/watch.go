package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omnicore/agentrt/pkg/logger"
)

// Watcher reloads a config file on change and notifies a callback with
// the freshly loaded Config, grounded on the teacher's
// provider/file.go FileProvider.Watch directory-level fsnotify pattern
// (some systems don't support watching files directly).
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path's containing directory for changes and
// invokes onChange with the result of re-running Load(path) whenever
// the file is written, created, or recreated after removal. onChange
// is called from the watch goroutine; it is the caller's responsibility
// to make it safe for concurrent use with whatever holds the prior
// Config.
func Watch(ctx context.Context, path string, onChange func(Config, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fsw, done: make(chan struct{})}
	go w.watchLoop(ctx, filepath.Base(path), onChange)
	return w, nil
}

func (w *Watcher) watchLoop(ctx context.Context, configFile string, onChange func(Config, error)) {
	defer close(w.done)
	defer w.watcher.Close()

	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	reload := func() {
		cfg, err := Load(w.path)
		onChange(cfg, err)
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, reload)
			case event.Op&fsnotify.Remove != 0:
				logger.GetLogger().Warn("config: file removed, awaiting recreation", "path", w.path)
				go w.tryRewatch(ctx, configFile, onChange)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.GetLogger().Error("config: watcher error", "error", err)
		}
	}
}

func (w *Watcher) tryRewatch(ctx context.Context, configFile string, onChange func(Config, error)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	dir := filepath.Dir(w.path)
	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(w.path); err == nil {
				if err := w.watcher.Add(dir); err == nil {
					logger.GetLogger().Info("config: re-established watch", "path", w.path)
					cfg, loadErr := Load(w.path)
					onChange(cfg, loadErr)
					return
				}
			}
		}
	}
	logger.GetLogger().Warn("config: failed to re-establish watch", "path", w.path)
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
