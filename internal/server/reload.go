package server

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"relaycast/internal/config"
)

// ReloadWatcher triggers Server.Reconfigure whenever configPath changes
// on disk or the process receives SIGHUP (spec §4.7's reconfiguration
// engine, invoked without a restart either way).
type ReloadWatcher struct {
	server     *Server
	configPath string
	logger     zerolog.Logger

	watcher *fsnotify.Watcher
	sighup  chan os.Signal
	done    chan struct{}
}

// NewReloadWatcher creates a watcher bound to configPath. Watch must be
// called to actually start watching.
func NewReloadWatcher(srv *Server, configPath string, logger zerolog.Logger) (*ReloadWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// fsnotify watches directories, not individual inodes -- editors
	// commonly replace a config file via rename-over rather than an
	// in-place write, which only a directory watch observes reliably.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)

	return &ReloadWatcher{
		server:     srv,
		configPath: configPath,
		logger:     logger.With().Str("component", "reload").Logger(),
		watcher:    watcher,
		sighup:     sighup,
		done:       make(chan struct{}),
	}, nil
}

// Watch runs the event loop until Close is called. Call it in its own
// goroutine.
func (w *ReloadWatcher) Watch() {
	target := filepath.Clean(w.configPath)
	for {
		select {
		case <-w.done:
			return
		case sig, ok := <-w.sighup:
			if !ok {
				return
			}
			w.logger.Info().Str("signal", sig.String()).Msg("reload requested")
			w.reload()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Info().Str("event", ev.Op.String()).Msg("config file changed")
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *ReloadWatcher) reload() {
	cfg, err := config.Load(w.configPath)
	if err != nil {
		w.logger.Error().Err(err).Msg("reload: failed to load config, keeping current configuration")
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error().Err(err).Msg("reload: invalid config, keeping current configuration")
		return
	}
	if err := w.server.Reconfigure(cfg); err != nil {
		w.logger.Error().Err(err).Msg("reload: reconfiguration failed")
		return
	}
	w.logger.Info().Msg("reconfiguration applied")
}

// Close stops the watcher and releases its resources.
func (w *ReloadWatcher) Close() error {
	close(w.done)
	signal.Stop(w.sighup)
	return w.watcher.Close()
}
