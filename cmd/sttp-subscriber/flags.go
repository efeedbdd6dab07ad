package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds the command-line configuration for sttp-subscriber.
type CLIConfig struct {
	ConfigPath       string
	ConnectionString string
	LogLevel         string
	LogFormat        string
	SubscribeFilter  string
	IDColumn         string
	TableName        string
	ShutdownTimeout  time.Duration
	ShowVersion      bool
	ShowHelp         bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("STTP_SUBSCRIBER_CONFIG", ""),
		"Path to a YAML configuration file (env: STTP_SUBSCRIBER_CONFIG); defaults used when empty")

	flag.StringVar(&cfg.ConnectionString, "connection",
		getEnv("STTP_SUBSCRIBER_CONNECTION", "server=127.0.0.1:7165"),
		"server=host:port connection string, overridden by -config (env: STTP_SUBSCRIBER_CONNECTION)")

	flag.StringVar(&cfg.TableName, "table", "ActiveMeasurements", "Table name to subscribe to")
	flag.StringVar(&cfg.IDColumn, "id-column", "id", "Signal ID column name")
	flag.StringVar(&cfg.SubscribeFilter, "filter", "true", "Subscription filter expression")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("STTP_SUBSCRIBER_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: STTP_SUBSCRIBER_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("STTP_SUBSCRIBER_LOG_FORMAT", "json"),
		"Log format: json, text (env: STTP_SUBSCRIBER_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second,
		"Graceful shutdown timeout")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")

	flag.Usage = printHelp
	flag.Parse()
	return cfg
}

func printHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `sttp-subscriber - IEEE 2664 streaming telemetry subscriber

Usage: %s [options]

Options:
`, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Received measurements are logged as they arrive. Pair with
sttp-publisher -demo-signals for a quick end-to-end smoke test.
`)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
