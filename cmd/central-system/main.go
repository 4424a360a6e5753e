package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/gridstreamer/ocpp-central/internal/centralsystem"
	"github.com/gridstreamer/ocpp-central/internal/config"
	"github.com/gridstreamer/ocpp-central/internal/handlers"
	"github.com/gridstreamer/ocpp-central/internal/metrics"
	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
	"github.com/gridstreamer/ocpp-central/internal/ocppcs/v16"
	"github.com/gridstreamer/ocpp-central/internal/ocppcs/v20"
	"github.com/gridstreamer/ocpp-central/internal/ocppcs/v201"
	"github.com/gridstreamer/ocpp-central/internal/schemas"
	"github.com/gridstreamer/ocpp-central/internal/transport/httptunnel"
	"github.com/gridstreamer/ocpp-central/internal/transport/ws"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting OCPP central system")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"listen_addr", cfg.ListenAddr,
		"response_timeout_seconds", cfg.ResponseTimeoutSeconds,
		"metrics_addr", cfg.MetricsAddr,
	)

	schemaRegistry, err := schemas.Load()
	if err != nil {
		slog.Error("failed to load embedded JSON schemas", "error", err)
		os.Exit(1)
	}

	metricsRegistry := metrics.New()

	routers := buildRouters(cfg, schemaRegistry, logger)

	cs := centralsystem.New(routers, metricsRegistry, logger)

	var webhook *httptunnel.Webhook
	if cfg.WebhookURL != "" {
		webhook = httptunnel.NewWebhook(cfg.WebhookURL, cfg.WebhookToken)
	}

	wsHandler := ws.NewHandler(cs, logger)
	httpTunnelHandler := httptunnel.NewHandler(cs, webhook, logger)

	r := mux.NewRouter()
	wsHandler.RegisterRoutes(r)
	httpTunnelHandler.RegisterRoutes(r)

	adminRouter := centralsystem.NewAdminRouter(cs, cfg.AdminToken)
	r.PathPrefix("/").Handler(adminRouter)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	}

	if err := cs.Start(); err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("OCPP-J server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("OCPP-J server error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		group.Go(func() error {
			slog.Info("metrics server listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- group.Wait() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server error, shutting down", "error", err)
		}
	}

	slog.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("OCPP-J server shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	if err := cs.Stop(); err != nil {
		slog.Error("shutdown hook failed", "error", err)
	}

	slog.Info("central system shut down cleanly")
}

func buildRouters(cfg *config.Config, schemaRegistry *schemas.Registry, logger *slog.Logger) map[ocppcs.Subprotocol]*ocppcs.Router {
	timeout := time.Duration(cfg.ResponseTimeoutSeconds) * time.Second

	adapter16 := ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP16)
	v16.Register(adapter16)
	router16 := ocppcs.NewRouter(ocppcs.SubprotocolOCPP16, adapter16,
		ocppcs.WithResponseTimeout(timeout),
		ocppcs.WithSchemaValidator(schemaRegistry),
		ocppcs.WithLogger(logger),
	)
	handlers.Register(router16, logger)

	adapter20 := ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP20)
	v20.Register(adapter20)
	router20 := ocppcs.NewRouter(ocppcs.SubprotocolOCPP20, adapter20,
		ocppcs.WithResponseTimeout(timeout),
		ocppcs.WithSchemaValidator(schemaRegistry),
		ocppcs.WithLogger(logger),
	)
	handlers.Register(router20, logger)

	adapter201 := ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP201)
	v201.Register(adapter201)
	router201 := ocppcs.NewRouter(ocppcs.SubprotocolOCPP201, adapter201,
		ocppcs.WithResponseTimeout(timeout),
		ocppcs.WithSchemaValidator(schemaRegistry),
		ocppcs.WithLogger(logger),
	)
	handlers.Register(router201, logger)

	return map[ocppcs.Subprotocol]*ocppcs.Router{
		ocppcs.SubprotocolOCPP16:  router16,
		ocppcs.SubprotocolOCPP20:  router20,
		ocppcs.SubprotocolOCPP201: router201,
	}
}
