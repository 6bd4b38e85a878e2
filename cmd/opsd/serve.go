// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/assign"
	"github.com/freightctl/freightctl/services/ops/autonomy"
	"github.com/freightctl/freightctl/services/ops/billing"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/export"
	"github.com/freightctl/freightctl/services/ops/handlers"
	"github.com/freightctl/freightctl/services/ops/observability"
	"github.com/freightctl/freightctl/services/ops/registry"
	"github.com/freightctl/freightctl/services/ops/review"
	"github.com/freightctl/freightctl/services/ops/routes"
	"github.com/freightctl/freightctl/services/ops/store"
)

var (
	serveConfigPath string
	serveAddr       string
	serveDBDir      string
	serveExportDir  string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the ops API server",
		Long: `Starts the HTTP server on the configured address. State lives in an
embedded Badger database; with no --db flag the store is in-memory and
everything is lost on exit.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "",
		"config file path (falls back to $"+config.EnvConfigPath+")")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveDBDir, "db", "", "Badger data directory (overrides config)")
	serveCmd.Flags().StringVar(&serveExportDir, "export-dir", "", "export drop directory (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveDBDir != "" {
		cfg.Store.Dir = serveDBDir
	}
	if serveExportDir != "" {
		cfg.Export.Dir = serveExportDir
	}

	logger := logging.New(logging.Config{
		Level:   parseLogLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "opsd",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()

	if cfg.Tracing.Endpoint != "" {
		shutdown, err := initTracer(cfg.Tracing)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdown(context.Background())
	}

	metrics := observability.Init()

	s, err := openStore(cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	deps := buildDeps(cfg, s, metrics, logger)

	created, err := deps.Registry.BootstrapDrivers(context.Background())
	if err != nil {
		return fmt.Errorf("bootstrap drivers: %w", err)
	}
	if created > 0 {
		logger.Info("bootstrapped default drivers", "count", created)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing.Endpoint != "" {
		router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	routes.Setup(router, deps)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops API listening", "addr", cfg.Server.Addr, "db", cfg.Store.Dir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, metrics *observability.Metrics, logger *logging.Logger) (*store.Store, error) {
	dbCfg := store.InMemoryDBConfig()
	if cfg.Store.Dir != "" {
		dbCfg = store.DefaultDBConfig(cfg.Store.Dir)
		dbCfg.GCInterval = cfg.Store.GCInterval
	}
	storeCfg := store.Config{
		DB:                   dbCfg,
		IdempotencyRetention: cfg.Store.IdempotencyRetention,
		TelemetryRetention:   cfg.Telemetry.Retention,
		Logger:               logger,
	}
	if metrics != nil {
		storeCfg.Replays = metrics
	}
	return store.New(storeCfg)
}

func buildDeps(cfg *config.Config, s *store.Store, metrics *observability.Metrics, logger *logging.Logger) *handlers.Deps {
	biller := billing.NewEngine(cfg.Billing, cfg.Review.RequiredDocuments, metrics, logger)
	reg := registry.New(s, biller, logger)
	assigner := assign.NewEngine(s, logger)
	reviewer := review.NewEngine(s, biller, cfg.Review, cfg.Telemetry.Lookback, logger)
	exporter := export.NewEngine(s, export.NewFileBridge(cfg.Export.Dir), cfg.Export.SubmitTimeout, logger)
	coordinator := autonomy.New(s, assigner, reviewer, biller, exporter, cfg.Autonomy, logger)

	return &handlers.Deps{
		Store:       s,
		Registry:    reg,
		Assigner:    assigner,
		Reviewer:    reviewer,
		Exporter:    exporter,
		Coordinator: coordinator,
		Telemetry:   cfg.Telemetry,
		Metrics:     metrics,
		Logger:      logger,
	}
}

func parseLogLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// initTracer wires OTLP trace export over gRPC. Spans are dropped
// silently if the collector is unreachable; tracing never blocks the
// request path.
func initTracer(cfg config.TracingConfig) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logging.Default().Error("tracer shutdown failed", "error", err)
		}
	}, nil
}
