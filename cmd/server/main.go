package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bloodagent/internal/app"
	"bloodagent/internal/config"
	"bloodagent/internal/handler"
	"bloodagent/internal/logging"
	"bloodagent/internal/repository/postgres"
	"bloodagent/internal/router"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server.exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	// Batches outlive their request but stop with the process.
	batchCtx, cancelBatches := context.WithCancel(context.Background())
	defer cancelBatches()

	var pinger handler.Pinger
	if a.DB != nil {
		pinger = postgres.NewPinger(a.DB)
	}
	pipelineH := handler.NewPipelineHandler(batchCtx, a.Pipeline, cfg.Model.Layer(), cfg.Server.MaxUploadMB<<20, a.Artifacts)
	healthH := handler.NewHealthHandler(pinger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router.Setup(cfg, pipelineH, healthH),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server.starting", "addr", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	cancelBatches()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
