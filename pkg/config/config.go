// Package config loads process configuration from the environment and retry
// presets from YAML.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// DefaultJWTSeed is used when JWT_SEED is unset.
const DefaultJWTSeed = "zerot-insecure-dev-seed"

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	RedisAddr     string // empty selects the in-memory rate limiter
	RedisPassword string
	RedisDB       int

	OTelEnabled  bool
	OTLPEndpoint string

	AuditDriver string // "stdout", "sqlite" or "postgres"
	AuditDSN    string

	PresetsPath string

	RateLimitRPM   int
	RateLimitBurst int

	JWTIssuer string
	JWTSeed   string // derives the token signing key; development only
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          envOr("PORT", "8080"),
		LogLevel:      envOr("LOG_LEVEL", "INFO"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		OTelEnabled:   os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:  envOr("OTLP_ENDPOINT", "localhost:4317"),
		AuditDriver:   strings.ToLower(envOr("AUDIT_DRIVER", "stdout")),
		AuditDSN:      os.Getenv("AUDIT_DSN"),
		PresetsPath:   os.Getenv("PRESETS_PATH"),
		JWTIssuer:     envOr("JWT_ISSUER", "zerot"),
		JWTSeed:       envOr("JWT_SEED", DefaultJWTSeed),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM, err = envInt("RATE_LIMIT_RPM", 60); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}

	switch cfg.AuditDriver {
	case "stdout":
	case "sqlite":
		if cfg.AuditDSN == "" {
			cfg.AuditDSN = "zerot-audit.db"
		}
	case "postgres":
		if cfg.AuditDSN == "" {
			return nil, fmt.Errorf("config: AUDIT_DSN is required for AUDIT_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("config: unknown AUDIT_DRIVER %q", cfg.AuditDriver)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// NewLogger builds a JSON slog logger at level ("DEBUG", "INFO", "WARN",
// "ERROR"). Unknown levels fall back to INFO.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
