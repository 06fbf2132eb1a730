package mcp

import (
	"os"
	"strconv"
	"time"
)

// Config holds the MCP server configuration
type Config struct {
	// Database for request history, empty to skip persistence
	DatabaseURL string

	// Retrieval
	TopK           int
	RequestTimeout time.Duration

	// Debug
	Debug bool
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		DatabaseURL:    "",
		TopK:           3,
		RequestTimeout: 30 * time.Second,
		Debug:          false,
	}
}

// ConfigFromEnv layers SILOS_* environment variables over the defaults.
func ConfigFromEnv() Config {
	config := DefaultConfig()
	if v := os.Getenv("SILOS_DB_URL"); v != "" {
		config.DatabaseURL = v
	}
	if v := os.Getenv("SILOS_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			config.TopK = k
		}
	}
	if v := os.Getenv("SILOS_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.RequestTimeout = d
		}
	}
	if v := os.Getenv("SILOS_DEBUG"); v == "1" || v == "true" {
		config.Debug = true
	}
	return config
}
