package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/exchange/config"
)

// Blob store backends selectable with --store.
const (
	storeAzure = "azure"
	storeNATS  = "nats"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	ConfigDir   string
	LogLevel    string
	LogFormat   string
	Debug       bool
	MetricsFile string
	Store       string
	Timeout     time.Duration
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()

	pf.StringVar(&f.ConfigDir, "config-dir",
		getEnv(config.DirEnv, ""),
		"Directory holding the JSON config files (env: "+config.DirEnv+", default ~/.config/exchange)")

	pf.StringVar(&f.LogLevel, "log-level",
		getEnv("EXCHANGE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: EXCHANGE_LOG_LEVEL)")

	pf.StringVar(&f.LogFormat, "log-format",
		getEnv("EXCHANGE_LOG_FORMAT", "text"),
		"Log format: text, json (env: EXCHANGE_LOG_FORMAT)")

	pf.BoolVar(&f.Debug, "debug",
		getEnvBool("EXCHANGE_DEBUG", false),
		"Enable debug logging with source locations (env: EXCHANGE_DEBUG)")

	pf.StringVar(&f.MetricsFile, "metrics-file",
		getEnv("EXCHANGE_METRICS_FILE", ""),
		"Write Prometheus metrics to this file on exit, - for stderr (env: EXCHANGE_METRICS_FILE)")

	pf.StringVar(&f.Store, "store",
		getEnv("EXCHANGE_STORE", storeAzure),
		"Blob store backend: azure, nats (env: EXCHANGE_STORE)")

	pf.DurationVar(&f.Timeout, "timeout",
		getEnvDuration("EXCHANGE_TIMEOUT", 30*time.Second),
		"HTTP request and connection timeout (env: EXCHANGE_TIMEOUT)")
}

func (f *globalFlags) validate() error {
	if !contains([]string{"debug", "info", "warn", "error"}, f.LogLevel) {
		return fmt.Errorf("invalid log level: %s", f.LogLevel)
	}
	if !contains([]string{"json", "text"}, f.LogFormat) {
		return fmt.Errorf("invalid log format: %s", f.LogFormat)
	}
	if !contains([]string{storeAzure, storeNATS}, f.Store) {
		return fmt.Errorf("invalid store: %s (use azure or nats)", f.Store)
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s", f.Timeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
