// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Storage settings.
	Backend     string // "file", "sqlite", or "postgres"
	DataDir     string // Collection directory for the file backend.
	SQLitePath  string
	DatabaseURL string

	// Qdrant settings for knowledge retrieval.
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Platform metrics API for delayed engagement data.
	MetricsBaseURL string
	MetricsAPIKey  string
	MetricsTimeout time.Duration

	// Best-practices summary output.
	SummaryPath string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel         string
	LookbackDays     int // Improvement cycle outcome window.
	DelayedCheckDays int // Wait before fetching delayed metrics.
	MaxRankedLessons int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Backend:          envStr("DREAMWEAVE_BACKEND", "file"),
		DataDir:          envStr("DREAMWEAVE_DATA_DIR", "./data/lessons"),
		SQLitePath:       envStr("DREAMWEAVE_SQLITE_PATH", "./data/dreamweave.db"),
		DatabaseURL:      envStr("DATABASE_URL", ""),
		QdrantURL:        envStr("QDRANT_URL", ""),
		QdrantAPIKey:     envStr("QDRANT_API_KEY", ""),
		QdrantCollection: envStr("DREAMWEAVE_QDRANT_COLLECTION", "session_knowledge"),
		MetricsBaseURL:   envStr("DREAMWEAVE_METRICS_BASE_URL", ""),
		MetricsAPIKey:    envStr("DREAMWEAVE_METRICS_API_KEY", ""),
		MetricsTimeout:   envDuration("DREAMWEAVE_METRICS_TIMEOUT", 15*time.Second),
		SummaryPath:      envStr("DREAMWEAVE_SUMMARY_PATH", "./data/lessons/best_practices.md"),
		OTELEndpoint:     envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:      envStr("OTEL_SERVICE_NAME", "dreamweave"),
		LogLevel:         envStr("DREAMWEAVE_LOG_LEVEL", "info"),
		LookbackDays:     envInt("DREAMWEAVE_LOOKBACK_DAYS", 30),
		DelayedCheckDays: envInt("DREAMWEAVE_DELAYED_CHECK_DAYS", 7),
		MaxRankedLessons: envInt("DREAMWEAVE_MAX_RANKED_LESSONS", 10),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	switch c.Backend {
	case "file":
		if c.DataDir == "" {
			return fmt.Errorf("config: DREAMWEAVE_DATA_DIR is required for the file backend")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("config: DREAMWEAVE_SQLITE_PATH is required for the sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want file, sqlite, or postgres)", c.Backend)
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("config: DREAMWEAVE_LOOKBACK_DAYS must be positive")
	}
	if c.DelayedCheckDays <= 0 {
		return fmt.Errorf("config: DREAMWEAVE_DELAYED_CHECK_DAYS must be positive")
	}
	if c.MaxRankedLessons <= 0 {
		return fmt.Errorf("config: DREAMWEAVE_MAX_RANKED_LESSONS must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
