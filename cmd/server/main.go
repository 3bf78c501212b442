package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/document-enrichment/internal/adapters/http"
	"github.com/kirillkom/document-enrichment/internal/bootstrap"
	"github.com/kirillkom/document-enrichment/internal/config"
	"github.com/kirillkom/document-enrichment/internal/observability/logging"
	"github.com/kirillkom/document-enrichment/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("server", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Pipeline.Run(ctx)
	}()

	if _, err := app.Recovery.RecoverOnStartup(ctx); err != nil {
		logger.Error("startup_recovery_failed", "error", err)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.Recovery.RunPeriodic(ctx, cfg.RecoveryScanInterval, cfg.RecoveryTimeout)
	}()
	go func() {
		defer wg.Done()
		if err := app.ConsumeSubmissions(ctx); err != nil {
			logger.Error("submission_consumer_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(
		app.IngestUC,
		app.Pipeline,
		app.Repo,
		app.RemoveUC,
		app.Recovery,
		httpadapter.Options{
			MaxUploadBytes:       cfg.MaxUploadBytes,
			DefaultRescanTimeout: cfg.RecoveryTimeout,
			MetricsHandler:       app.Metrics.Handler(),
			HTTPMetrics:          metrics.NewHTTPServerMetrics("server", app.Metrics.Registry()),
		},
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	wg.Wait()
}
