// Package config loads process-wide configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime settings shared by the CLI commands.
type Config struct {
	DatabasePath string
	ProxyBase    string // empty disables proxy rewriting
	FetchTimeout time.Duration
	Workers      int

	TranslateProvider string
	TranslateAPIKey   string
}

// Load reads configuration from environment variables, applying
// defaults for anything unset.
func Load() Config {
	return Config{
		DatabasePath:      getenv("FEEDHUB_DB", ""),
		ProxyBase:         getenv("FEEDHUB_PROXY_BASE", ""),
		FetchTimeout:      parseDurationEnv("FEEDHUB_FETCH_TIMEOUT", 30*time.Second),
		Workers:           parseIntEnv("FEEDHUB_WORKERS", 10),
		TranslateProvider: getenv("FEEDHUB_TRANSLATE_PROVIDER", "dummy"),
		TranslateAPIKey:   getenv("FEEDHUB_TRANSLATE_API_KEY", ""),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
