package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/luismhernandezs-crypto/doc-classifier/internal/adapters/http"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/adapters/http/openapi"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/bootstrap"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/config"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/observability/logging"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/observability/metrics"
)

const serviceName = "doc-classifier-api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:     logger,
		Registerer: httpMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	contract, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("openapi_load_failed", "error", err)
		os.Exit(1)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Processor:   app.Pipeline,
		Classifier:  app.Pipeline,
		History:     app.History,
		Metrics:     app.Metrics,
		Contract:    contract,
		Exposition:  httpMetrics.Handler(),
		HTTPMetrics: httpMetrics,
		Logger:      logger,
	}).Handler()

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.OCRTimeout + 60*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	go func() {
		logger.Info("api_listening",
			"port", cfg.APIPort,
			"max_connections", cfg.MaxConnections,
			"max_concurrent_requests", cfg.MaxConcurrentRequests,
			"model_version", app.Model.Version(),
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
