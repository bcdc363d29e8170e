package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"relaycast/internal/config"
	"relaycast/internal/logging"
	"relaycast/internal/server"
)

var (
	serveEnvironment string
	servePIDFile     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the relay/fan-out server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveEnvironment, "environment", "production", "logging environment (production or development)")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", filepath.Join(os.TempDir(), "relayd.pid"), "path to write the running process's PID, read by `reload`")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(serveEnvironment)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	if err := writePIDFile(servePIDFile); err != nil {
		logger.Warn().Err(err).Str("path", servePIDFile).Msg("failed to write pid file; `reload` will need --pid")
	} else {
		defer os.Remove(servePIDFile)
	}

	reloadWatcher, err := server.NewReloadWatcher(srv, configPath, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("config file watcher unavailable; reload still works via SIGHUP")
	} else {
		go reloadWatcher.Watch()
		defer reloadWatcher.Close()
	}

	ctx := context.Background()
	shutdownHandler := server.NewShutdownHandler(srv, ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-waitForShutdown(shutdownHandler):
	}

	logger.Info().Msg("server shut down cleanly")
	return nil
}

func waitForShutdown(h *server.ShutdownHandler) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := h.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		}
	}()
	return done
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}
