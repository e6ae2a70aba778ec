package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/bootstrap"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/config"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/observability/logging"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/observability/metrics"
)

const (
	serviceName       = "doc-classifier-worker"
	reprocessDeadline = 5 * time.Minute
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:       logger,
		Registerer:   workerMetrics.Registry(),
		RequireQueue: true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSReprocessSubject)
	err = app.Queue.SubscribeReprocess(ctx, func(handlerCtx context.Context, key string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, reprocessDeadline)
		defer cancel()

		workerMetrics.StartJob()
		start := time.Now()
		res, err := app.Rebuild.ReprocessKey(processCtx, key)
		status := ""
		if err == nil {
			status = string(res.Status)
		}
		workerMetrics.FinishJob(serviceName, status, time.Since(start))
		if err != nil {
			return err
		}
		logger.Info("reprocess_completed", "key", key, "status", res.Status, "record_id", res.RecordID)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
