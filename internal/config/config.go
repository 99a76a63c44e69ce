package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	AuthIssuer  string
	AuthJWKSURL string

	// HorizonDays is the forward window of pre-materialized tasks.
	HorizonDays int
	// SweepNotifications enables status-change notifications for
	// automatically missed tasks. Off by default.
	SweepNotifications bool
	// GenerationInterval is how often the worker generates for all patients.
	GenerationInterval time.Duration
	// SweepInterval is how often the worker sweeps overdue tasks.
	SweepInterval time.Duration

	WorkerDebugMode bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables, optionally seeded
// from a .env file
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:         getEnvBool("ENABLE_HSTS", false),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:   getEnvInt("RABBITMQ_PREFETCH", 1),
		AuthIssuer:         getEnv("AUTH_ISSUER", ""),
		AuthJWKSURL:        getEnv("AUTH_JWKS_URL", ""),
		HorizonDays:        getEnvInt("HORIZON_DAYS", 7),
		SweepNotifications: getEnvBool("SWEEP_NOTIFICATIONS", false),
		GenerationInterval: getEnvDuration("GENERATION_INTERVAL", time.Hour),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		WorkerDebugMode:    getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:    getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for job queueing")
	}

	if cfg.HorizonDays < 1 || cfg.HorizonDays > 90 {
		return nil, fmt.Errorf("HORIZON_DAYS must be between 1 and 90, got %d", cfg.HorizonDays)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
