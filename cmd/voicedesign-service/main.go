// main package for the voicedesign-service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/di-osc/qwen3-design-api/internal/archive"
	"github.com/di-osc/qwen3-design-api/internal/config"
	"github.com/di-osc/qwen3-design-api/internal/core"
	"github.com/di-osc/qwen3-design-api/internal/engine"
	"github.com/di-osc/qwen3-design-api/internal/server"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "voicedesign-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// Temporary logger for the bootstrap process; the real one needs the
	// configured log directory, which is not known yet.
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logsDir := cfg.Paths.BaseLogsDir
	if logsDir == "" {
		logsDir = os.TempDir()
	}

	finalLog, err := setupLogger(logsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The model is loaded exactly once, before the first request.
	// A failed load aborts startup.
	designer := engine.New(engine.Config{
		BinaryPath: cfg.Model.BinaryPath,
		ModelPath:  cfg.Model.ModelPath,
		Device:     cfg.Model.Device,
		Timeout:    time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
	}, log)

	probeErr := designer.Probe(ctx)
	if probeErr != nil {
		log.Error("Model initialization failed: %v", probeErr)

		return fmt.Errorf("model initialization failed: %w", probeErr)
	}

	store, natsConnection, err := setupArchive(cfg, log)
	if err != nil {
		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	srv := server.New(designer, store, log)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.System("Voice design service listening on %s", cfg.ListenAddr())

		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}

		close(errCh)
	}()

	select {
	case serveErr := <-errCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}

		return nil
	case <-ctx.Done():
	}

	log.System("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down http server: %w", shutdownErr)
	}

	return nil
}

// setupArchive connects the optional NATS-backed clip archive. Returns a
// nil store when archiving is disabled.
func setupArchive(cfg *config.Config, log *logger.Logger) (core.ObjectStore, *nats.Conn, error) {
	if !cfg.Archive.Enabled {
		return nil, nil, nil
	}

	natsConnection, err := nats.Connect(cfg.Archive.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Archive.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := archive.New(jetstreamContext, cfg.Archive.Bucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to initialize clip archive: %w", err)
	}

	log.Info("Clip archive enabled: bucket %s at %s", cfg.Archive.Bucket, cfg.Archive.URL)

	return store, natsConnection, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
