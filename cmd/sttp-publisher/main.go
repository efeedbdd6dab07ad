// Package main implements the sttp-publisher binary: a standalone IEEE
// 2664 streaming telemetry publisher serving the command and (optional)
// UDP data channels, with an operational HTTP/WS surface for health,
// metrics, and live connection status.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/c360/sttp/config"
	"github.com/c360/sttp/dataset"
	"github.com/c360/sttp/health"
	"github.com/c360/sttp/httpapi"
	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/metric"
	"github.com/c360/sttp/natsbridge"
	"github.com/c360/sttp/publisher"
	"github.com/c360/sttp/ticks"
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
		slog.Error("sttp-publisher exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cli := parseFlags()
	if cli.ShowVersion {
		fmt.Printf("sttp-publisher version %s\n", version)
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

	engine, err := publisher.NewEngine(cfg, registry, monitor, bridge, publisherCallbacks())
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	signals := demoSignals(cli.DemoSignals)
	snap := engine.DefineMetadata([]dataset.Table{{Name: "ActiveMeasurements", Rows: demoRows(signals)}})
	slog.Info("metadata defined", "generation", snap.Generation, "signals", len(signals))

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	slog.Info("sttp-publisher listening", "address", cfg.ListenAddress)

	var opsServer *httpapi.Server
	if cfg.Ops.Enabled {
		opsServer = httpapi.NewServer(cfg.Ops.ListenAddress, monitor, registry, engine, time.Second)
		if err := opsServer.Start(ctx); err != nil {
			return fmt.Errorf("start ops server: %w", err)
		}
		slog.Info("ops surface listening", "address", cfg.Ops.ListenAddress)
	}

	demoDone := runDemoPublisher(ctx, engine, signals, cli.DemoInterval)

	<-ctx.Done()
	slog.Info("shutdown signal received")
	<-demoDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer shutdownCancel()

	if opsServer != nil {
		if err := opsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("ops server shutdown error", "error", err)
		}
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop engine: %w", err)
	}

	slog.Info("sttp-publisher shutdown complete")
	return nil
}

func loadConfig(cli *CLIConfig) (config.PublisherConfig, error) {
	if cli.ConfigPath == "" {
		cfg := config.DefaultPublisherConfig()
		cfg.ListenAddress = cli.ListenAddress
		return cfg, cfg.Validate()
	}
	return config.LoadPublisherConfig(cli.ConfigPath)
}

func publisherCallbacks() *publisher.Callbacks {
	return &publisher.Callbacks{
		OnConnect: func(id, addr string) {
			slog.Info("subscriber connected", "connection", id, "remote", addr)
		},
		OnDisconnect: func(id, reason string) {
			slog.Info("subscriber disconnected", "connection", id, "reason", reason)
		},
		OnSubscribe: func(id string, signalCount int) {
			slog.Info("subscriber subscribed", "connection", id, "signals", signalCount)
		},
		OnError: func(id string, err error) {
			slog.Warn("publisher connection error", "connection", id, "error", err)
		},
	}
}

func demoSignals(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func demoRows(signals []uuid.UUID) []dataset.Row {
	rows := make([]dataset.Row, len(signals))
	for i, id := range signals {
		rows[i] = dataset.NewRow(map[string]string{
			"id":          id.String(),
			"pointtag":    fmt.Sprintf("DEMO:PT%04d", i+1),
			"description": "synthetic demo signal",
		})
	}
	return rows
}

// runDemoPublisher feeds synthetic measurements into the engine at a
// fixed interval so a freshly started publisher has something to
// subscribe to without an external data source wired in. Real
// deployments replace this with engine.PublishMeasurements calls driven
// by whatever feeds the application's actual telemetry.
func runDemoPublisher(ctx context.Context, engine *publisher.Engine, signals []uuid.UUID, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := ticks.FromTime(time.Now())
				batch := make(measurement.Batch, len(signals))
				for i, id := range signals {
					batch[i] = measurement.New(id, rand.Float64()*100, now)
				}
				if err := engine.PublishMeasurements(batch); err != nil {
					slog.Warn("demo publish failed", "error", err)
				}
			}
		}
	}()
	return done
}
