package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/agrisense/agrisense-engine/internal/adapters/http"
	"github.com/agrisense/agrisense-engine/internal/bootstrap"
	"github.com/agrisense/agrisense-engine/internal/config"
	"github.com/agrisense/agrisense-engine/internal/observability/logging"
)

const serviceName = "agrisense-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, serviceName)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := app.Refresher.Refresh(ctx); err != nil {
		logger.Error("initial_refresh_failed", slog.String("error", err.Error()))
	}
	go func() {
		if err := app.Bus.SubscribeIngested(ctx, app.Refresher.Handle); err != nil {
			logger.Error("ingest_subscription_failed", slog.String("error", err.Error()))
		}
	}()

	router := httpadapter.NewRouter(
		serviceName,
		app.Query,
		app.Ingestion,
		app.Store,
		app.Metrics,
		logger,
		app.Limiter,
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", slog.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", slog.String("error", err.Error()))
	}
}
