// Package main implements the sttp-subscriber binary: a standalone
// IEEE 2664 streaming telemetry subscriber that connects to a
// publisher's command channel, subscribes to a table, and logs the
// measurements it receives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/sttp/config"
	"github.com/c360/sttp/health"
	"github.com/c360/sttp/httpapi"
	"github.com/c360/sttp/metric"
	"github.com/c360/sttp/natsbridge"
	"github.com/c360/sttp/subscriber"
)

const version = "0.1.0"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("sttp-subscriber exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cli := parseFlags()
	if cli.ShowVersion {
		fmt.Printf("sttp-subscriber version %s\n", version)
		return nil
	}
	if cli.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	var bridge *natsbridge.Bridge
	if cfg.NATSBridge.Enabled {
		bridge, err = natsbridge.New(ctx, cfg.NATSBridge.URL, cfg.NATSBridge.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("connect nats bridge: %w", err)
		}
		defer func() { _ = bridge.Close(context.Background()) }()
	}

	engine, err := subscriber.NewEngine(cfg, registry, monitor, bridge, subscriberCallbacks())
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	slog.Info("sttp-subscriber connected", "connection_string", cfg.ConnectionString)

	if err := engine.Subscribe(ctx, cli.TableName, cli.IDColumn, cli.SubscribeFilter); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	slog.Info("subscription accepted", "table", cli.TableName, "filter", cli.SubscribeFilter)

	var opsServer *httpapi.Server
	if cfg.Ops.Enabled {
		opsServer = httpapi.NewServer(cfg.Ops.ListenAddress, monitor, registry, engine, time.Second)
		if err := opsServer.Start(ctx); err != nil {
			return fmt.Errorf("start ops server: %w", err)
		}
		slog.Info("ops surface listening", "address", cfg.Ops.ListenAddress)
	}

	consumeDone := consumeMeasurements(ctx, engine)

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer shutdownCancel()

	if opsServer != nil {
		if err := opsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("ops server shutdown error", "error", err)
		}
	}
	if err := engine.Close(); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	<-consumeDone

	slog.Info("sttp-subscriber shutdown complete")
	return nil
}

func loadConfig(cli *CLIConfig) (config.SubscriberConfig, error) {
	if cli.ConfigPath == "" {
		cfg := config.DefaultSubscriberConfig()
		cfg.ConnectionString = cli.ConnectionString
		return cfg, cfg.Validate()
	}
	return config.LoadSubscriberConfig(cli.ConfigPath)
}

func subscriberCallbacks() *subscriber.Callbacks {
	return &subscriber.Callbacks{
		OnConnect: func(addr string) {
			slog.Info("connected to publisher", "remote", addr)
		},
		OnDisconnect: func(reason string) {
			slog.Warn("disconnected from publisher", "reason", reason)
		},
		OnReconnecting: func(attempt int) {
			slog.Info("reconnecting", "attempt", attempt)
		},
		OnSubscribed: func(signalCount int) {
			slog.Info("subscription resumed", "signals", signalCount)
		},
		OnError: func(err error) {
			slog.Warn("subscriber error", "error", err)
		},
	}
}

// consumeMeasurements logs a running count of received measurements
// every second rather than one line per measurement, which would drown
// the log at any realistic publish rate.
func consumeMeasurements(ctx context.Context, engine *subscriber.Engine) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var count int64
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case m, ok := <-engine.Measurements():
				if !ok {
					return
				}
				count++
				slog.Debug("measurement received", "signal_id", m.SignalID, "value", m.Value, "timestamp", m.Timestamp)
			case <-ticker.C:
				if count > 0 {
					slog.Info("measurements received", "count", count)
					count = 0
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
