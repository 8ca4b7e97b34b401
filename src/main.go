package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sandrolain/h02-bridge/src/config"
	"github.com/sandrolain/h02-bridge/src/server"
	"github.com/sandrolain/h02-bridge/src/sinks/httpsink"
	"github.com/sandrolain/h02-bridge/src/sinks/mqttsink"
	"github.com/sandrolain/h02-bridge/src/sinks/natssink"
	"github.com/sandrolain/h02-bridge/src/sinks/sink"
)

func main() {
	w := os.Stdout

	// Set global logger with custom options
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}),
	))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	snk, err := buildSink(&cfg.Sink)
	if err != nil {
		slog.Error("failed to create sink", "error", err)
		os.Exit(1)
	}
	defer snk.Close()

	srv, err := server.New(&cfg.Server, snk)
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func buildSink(cfg *config.SinkConfig) (sink.Sink, error) {
	switch cfg.Type {
	case "mqtt":
		if cfg.MQTT == nil {
			return nil, fmt.Errorf("mqtt sink configuration missing")
		}
		slog.Info("using MQTT sink", "address", cfg.MQTT.Address, "topic", cfg.MQTT.Topic)
		return mqttsink.New(cfg.MQTT, cfg.TID)
	case "nats":
		if cfg.NATS == nil {
			return nil, fmt.Errorf("nats sink configuration missing")
		}
		slog.Info("using NATS sink", "address", cfg.NATS.Address, "subject", cfg.NATS.Subject)
		return natssink.New(cfg.NATS, cfg.TID)
	case "http":
		if cfg.HTTP == nil {
			return nil, fmt.Errorf("http sink configuration missing")
		}
		slog.Info("using HTTP sink", "url", cfg.HTTP.URL, "method", cfg.HTTP.Method)
		return httpsink.New(cfg.HTTP, cfg.TID)
	}
	return nil, fmt.Errorf("unsupported sink type: %s", cfg.Type)
}
