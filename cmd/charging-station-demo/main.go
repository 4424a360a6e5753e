package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridstreamer/ocpp-central/internal/chargingstation"
	"github.com/gridstreamer/ocpp-central/internal/config"
	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to charging station config file")
	flag.Parse()

	cfg, err := config.LoadDemoClientConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting charging station simulator",
		"server_url", cfg.ServerURL,
		"charging_station_id", cfg.ChargingStationID,
		"subprotocol", cfg.Subprotocol,
	)

	client := &chargingstation.Client{
		ServerURL:         cfg.ServerURL,
		ChargingStationID: cfg.ChargingStationID,
		Subprotocol:       ocppcs.Subprotocol(cfg.Subprotocol),
		HeartbeatInterval: time.Duration(cfg.HeartbeatInterval) * time.Second,
		AuthToken:         cfg.AuthToken,
		Log:               logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("client stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("charging station simulator shut down")
}
