// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Logging
	LogLevel  string
	LogFormat string // "json" | "console"

	// Database
	DatabaseURL      string
	DatabaseMaxConns int
	AutoMigrate      bool

	// Security
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
	RateLimitRPM   int

	// Redis (escalation sweep lock)
	RedisURL string

	// Escalation policy
	EscalationThreshold         time.Duration
	EscalationSweepInterval     time.Duration
	EscalationWorkers           int
	EscalationItemTimeout       time.Duration
	EscalationManualRequiresDue bool

	// Access policy
	StateAdminSeesAllLocations bool
	AllowStatusReopen          bool

	// Reverse geocoding
	GeocodeURL       string
	GeocodeUserAgent string

	// Merkle tree over the activity log
	MerkleRebuildInterval int // minutes
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: getEnvInt("DATABASE_MAX_CONNS", 25),
		AutoMigrate:      getEnvBool("AUTO_MIGRATE", true),

		JWTSecret:      getEnv("JWT_SECRET", devJWTSecret),
		TokenTTL:       time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		EscalationThreshold:         time.Duration(getEnvInt("ESCALATION_THRESHOLD_HOURS", 72)) * time.Hour,
		EscalationSweepInterval:     time.Duration(getEnvInt("ESCALATION_SWEEP_MINUTES", 60)) * time.Minute,
		EscalationWorkers:           getEnvInt("ESCALATION_WORKERS", 4),
		EscalationItemTimeout:       time.Duration(getEnvInt("ESCALATION_ITEM_TIMEOUT_SECONDS", 10)) * time.Second,
		EscalationManualRequiresDue: getEnvBool("ESCALATION_MANUAL_REQUIRES_DUE", false),

		StateAdminSeesAllLocations: getEnvBool("STATE_ADMIN_SEES_ALL", false),
		AllowStatusReopen:          getEnvBool("ALLOW_STATUS_REOPEN", true),

		GeocodeURL:       getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeUserAgent: getEnv("GEOCODE_USER_AGENT", "civic-issue-reporting-app"),

		MerkleRebuildInterval: getEnvInt("MERKLE_REBUILD_INTERVAL", 5),
	}

	if cfg.EscalationThreshold <= 0 {
		return nil, fmt.Errorf("ESCALATION_THRESHOLD_HOURS must be positive")
	}
	if cfg.EscalationWorkers < 1 {
		cfg.EscalationWorkers = 1
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == devJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
