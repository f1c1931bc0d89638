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

	"github.com/biihlive/authcodes/config"
	"github.com/biihlive/authcodes/internal/app"
	"github.com/biihlive/authcodes/internal/metrics"
	"github.com/biihlive/authcodes/log"
	"github.com/biihlive/authcodes/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := cfg.ZerologLevel()
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger := log.Setup(logLevel, cfg.LogPretty)
	ctx := context.Background()
	if parseErr != nil {
		appLogger.Warn(ctx, "Invalid log level configured, defaulting to 'info'", map[string]interface{}{
			"configured_log_level": cfg.LogLevel,
		})
	}
	appLogger.Info(ctx, "Starting authcodes server...", map[string]interface{}{
		"http_addr":      cfg.HTTPAddr,
		"store_backend":  cfg.StoreBackend,
		"mail_transport": cfg.MailTransport,
		"code_ttl":       cfg.CodeTTL.String(),
		"max_attempts":   cfg.MaxAttempts,
		"sweep_cron":     cfg.SweepCron,
		"otel_service":   cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err, nil)
	}

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize application", err, nil)
	}

	scheduler, err := application.NewScheduler(tp)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to schedule code cleanup", err, nil)
	}
	scheduler.Start()

	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on %s", cfg.HTTPAddr))
		if err := application.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.HTTPServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}
	if err := scheduler.Shutdown(); err != nil {
		appLogger.Error(shutdownCtx, "Scheduler shutdown error", err, nil)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
	}
	if err := application.Close(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "Store shutdown error", err, nil)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
