package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds the command-line configuration for sttp-publisher.
type CLIConfig struct {
	ConfigPath      string
	ListenAddress   string
	LogLevel        string
	LogFormat       string
	DemoSignals     int
	DemoInterval    time.Duration
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("STTP_PUBLISHER_CONFIG", ""),
		"Path to a YAML configuration file (env: STTP_PUBLISHER_CONFIG); defaults used when empty")

	flag.StringVar(&cfg.ListenAddress, "listen",
		getEnv("STTP_PUBLISHER_LISTEN", ":7165"),
		"Command-channel listen address, overridden by -config (env: STTP_PUBLISHER_LISTEN)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("STTP_PUBLISHER_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: STTP_PUBLISHER_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("STTP_PUBLISHER_LOG_FORMAT", "json"),
		"Log format: json, text (env: STTP_PUBLISHER_LOG_FORMAT)")

	flag.IntVar(&cfg.DemoSignals, "demo-signals", 10,
		"Number of synthetic signals to publish when no external data source is wired in")

	flag.DurationVar(&cfg.DemoInterval, "demo-interval", time.Second,
		"Interval between synthetic publish cycles")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second,
		"Graceful shutdown timeout")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")

	flag.Usage = printHelp
	flag.Parse()
	return cfg
}

func printHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `sttp-publisher - IEEE 2664 streaming telemetry publisher

Usage: %s [options]

Options:
`, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Without -config, sttp-publisher runs with defaults and publishes
synthetic demo signals so the command channel has something to
subscribe to.
`)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
