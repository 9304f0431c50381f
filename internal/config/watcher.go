package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tapeworks/tapedeck/internal/logging"
)

// defaultReloadDebounce absorbs editor write bursts. Deck configs are
// edited by hand mid-session to raise a module's log level, so a short
// settle window is enough.
const defaultReloadDebounce = 500 * time.Millisecond

// ReloadWatcher follows the deck config file on disk and re-reads its
// [logging] table whenever it changes, handing the parsed levels to an
// apply callback. Only logging settings reload live; everything else
// (port, auth, preset file) is fixed for the process lifetime.
//
// The watch is placed on the containing directory, not the file
// itself: editors and provisioning tools replace config files by
// rename, which would silently detach a file-level watch.
type ReloadWatcher struct {
	path     string
	dir      string
	base     string
	debounce time.Duration
	apply    func(logging.Config)
	logger   *slog.Logger

	fsw      *fsnotify.Watcher
	stop     chan struct{}
	stopOnce sync.Once
}

// ReloadOption adjusts a ReloadWatcher before Start.
type ReloadOption func(*ReloadWatcher)

// WithReloadDebounce overrides the settle window between a file event
// and the reload.
func WithReloadDebounce(d time.Duration) ReloadOption {
	return func(w *ReloadWatcher) { w.debounce = d }
}

// NewReloadWatcher prepares a watcher for the config file at path.
// apply is invoked with the freshly parsed logging config after each
// settled change; it runs on the watcher goroutine.
func NewReloadWatcher(path string, apply func(logging.Config), logger *slog.Logger, opts ...ReloadOption) *ReloadWatcher {
	w := &ReloadWatcher{
		path:     path,
		dir:      filepath.Dir(path),
		base:     filepath.Base(path),
		debounce: defaultReloadDebounce,
		apply:    apply,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins following the config file. The file itself may not
// exist yet; the directory must.
func (w *ReloadWatcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw

	w.logger.Info("Watching config for logging level changes", "path", w.path)
	go w.run()
	return nil
}

// Stop detaches the watch. Safe to call more than once and before
// Start succeeded.
func (w *ReloadWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.fsw != nil {
		w.fsw.Close()
	}
}

func (w *ReloadWatcher) run() {
	var settle *time.Timer
	var settled <-chan time.Time

	for {
		select {
		case <-w.stop:
			if settle != nil {
				settle.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.base {
				continue
			}
			// Write for in-place edits, Create/Rename for atomic
			// replaces.
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(w.debounce)
			settled = settle.C

		case <-settled:
			settled = nil
			cfg := LoadLoggingConfig(w.path)
			w.logger.Info("Config changed, re-applying logging levels",
				"level", cfg.Level, "modules", len(cfg.Modules))
			w.apply(cfg)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watch error", "error", err)
		}
	}
}
