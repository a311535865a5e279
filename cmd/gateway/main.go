package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/partsmarket/internal/config"
	"github.com/joao-fontenele/partsmarket/internal/gateway"
	"github.com/joao-fontenele/partsmarket/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load("gateway", "8080")
	if err := cfg.Require("CATALOG_SERVICE_URL", "INVENTORY_SERVICE_URL", "ORDERS_SERVICE_URL"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	httpClient := telemetry.HTTPClient(10 * time.Second)
	handler := gateway.NewHandler(
		gateway.NewServiceProxy(cfg.CatalogServiceURL, httpClient),
		gateway.NewServiceProxy(cfg.InventoryServiceURL, httpClient),
		gateway.NewServiceProxy(cfg.OrdersServiceURL, httpClient),
		logger,
	)

	limiter := gateway.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, logger)
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go limiter.Run(limiterCtx)

	mux := http.NewServeMux()
	handler.Routes(mux, telemetry.WithHTTPRoute)

	root := http.NewServeMux()
	root.Handle("GET /metrics", metricsHandler)
	root.Handle("/", limiter.Middleware(mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.HTTPHandler(root, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", cfg.Port, "rate_limit", cfg.RateLimitPerSecond, "burst", cfg.RateLimitBurst)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
