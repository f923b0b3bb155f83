package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration
type Config struct {
	Agent    AgentConfig
	Dispatch DispatchConfig
	Session  SessionConfig
	Location LocationConfig
	API      APIConfig
	Store    StoreConfig
	Redis    RedisConfig
	Sentry   SentryConfig
}

// AgentConfig holds identity and control-surface configuration
type AgentConfig struct {
	Environment string
	DriverID    string
	DriverName  string
	ControlPort string
	CORSOrigins string // Comma-separated list of allowed origins
}

// DispatchConfig holds the dispatch WebSocket connection settings
type DispatchConfig struct {
	URL            string
	Role           string
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
}

// SessionConfig holds ride-session lifecycle tuning
type SessionConfig struct {
	OfferWindow time.Duration
}

// LocationConfig holds location reporting settings
type LocationConfig struct {
	Interval     time.Duration
	WebhookURL   string // optional HTTP mirror for location updates
	H3Resolution int
}

// APIConfig holds the platform REST API settings
type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// StoreConfig selects and tunes the session store backend
type StoreConfig struct {
	Backend string // "file" or "redis"
	Path    string // file backend: directory for session records
}

// RedisConfig holds Redis configuration (redis store backend)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Agent: AgentConfig{
			Environment: getEnv("ENVIRONMENT", "development"),
			DriverID:    getEnv("DRIVER_ID", ""),
			DriverName:  getEnv("DRIVER_NAME", ""),
			ControlPort: getEnv("CONTROL_PORT", "8080"),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Dispatch: DispatchConfig{
			URL:            getEnv("DISPATCH_URL", "ws://localhost:9000/ws"),
			Role:           getEnv("DISPATCH_ROLE", "driver"),
			ReconnectDelay: getEnvAsDuration("DISPATCH_RECONNECT_DELAY_MS", 2000),
			WriteTimeout:   getEnvAsDuration("DISPATCH_WRITE_TIMEOUT_MS", 10000),
			PongTimeout:    getEnvAsDuration("DISPATCH_PONG_TIMEOUT_MS", 60000),
		},
		Session: SessionConfig{
			OfferWindow: getEnvAsDuration("OFFER_WINDOW_MS", 120000),
		},
		Location: LocationConfig{
			Interval:     getEnvAsDuration("LOCATION_INTERVAL_MS", 5000),
			WebhookURL:   getEnv("LOCATION_WEBHOOK_URL", ""),
			H3Resolution: getEnvAsInt("LOCATION_H3_RESOLUTION", 9),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:8000/api/v1"),
			Token:   getEnv("API_TOKEN", ""),
			Timeout: getEnvAsDuration("API_TIMEOUT_MS", 10000),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "file"),
			Path:    getEnv("STORE_PATH", "./data"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: getEnv("SENTRY_ENVIRONMENT", getEnv("ENVIRONMENT", "development")),
			Release:     getEnv("SENTRY_RELEASE", ""),
		},
	}

	if cfg.Store.Backend != "file" && cfg.Store.Backend != "redis" {
		return nil, fmt.Errorf("invalid STORE_BACKEND value: %s", cfg.Store.Backend)
	}

	if cfg.Session.OfferWindow <= 0 {
		cfg.Session.OfferWindow = 120 * time.Second
	}

	if cfg.Dispatch.ReconnectDelay <= 0 {
		cfg.Dispatch.ReconnectDelay = 2 * time.Second
	}

	if cfg.Location.Interval <= 0 {
		cfg.Location.Interval = 5 * time.Second
	}

	if cfg.Location.H3Resolution < 0 || cfg.Location.H3Resolution > 15 {
		return nil, fmt.Errorf("invalid LOCATION_H3_RESOLUTION value: %d", cfg.Location.H3Resolution)
	}

	return cfg, nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultMillis)) * time.Millisecond
}
