package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	SigningKey string // Required: symmetric signing key for tokens
	Algorithm  string // Optional: HMAC signing algorithm (HS256, HS384, HS512) (default: HS256)

	AccessTTL  time.Duration // Optional: access token lifetime (default: 30m)
	RefreshTTL time.Duration // Optional: refresh token lifetime (default: 48h)

	RedisAddr     string // Optional: session store address (default: localhost:6379)
	RedisPassword string // Optional: session store password
	RedisDB       int    // Optional: session store database number (default: 0)

	DatabaseFile string // Optional: path to SQLite database file (default: ./admin.db)
	PepperFile   string // Optional: path to pepper file for password hashing (default: ./pepper)

	AdminUsername string // Optional: seeded superuser name (default: admin)
	AdminPassword string // Optional: seeded superuser password (default: changeme, dev only)

	// DevBypass accepts the "dev" token sentinel as a superuser credential.
	// Only honoured when Env is "dev"; anything else fails startup.
	DevBypass bool

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Token mirror sweep interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		SigningKey:           os.Getenv("AUTH_SIGNING_KEY"),
		Algorithm:            getEnvOrDefault("AUTH_ALGORITHM", "HS256"),
		AccessTTL:            getEnvDurationOrDefault("AUTH_ACCESS_TTL", 30*time.Minute),
		RefreshTTL:           getEnvDurationOrDefault("AUTH_REFRESH_TTL", 48*time.Hour),
		RedisAddr:            getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getEnvIntOrDefault("REDIS_DB", 0),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "admin.db"),
		PepperFile:           getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		AdminUsername:        getEnvOrDefault("ADMIN_USERNAME", "admin"),
		AdminPassword:        getEnvOrDefault("ADMIN_PASSWORD", "changeme"),
		DevBypass:            getEnvBoolOrDefault("AUTH_DEV_BYPASS", false),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate rejects configurations that must never reach a running process.
func (cfg Config) Validate() error {
	if cfg.SigningKey == "" {
		return errors.New("AUTH_SIGNING_KEY is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return fmt.Errorf("access TTL (%s) must be shorter than refresh TTL (%s)", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.DevBypass && cfg.Env != "dev" {
		return fmt.Errorf("AUTH_DEV_BYPASS is only allowed when ENV=dev, got ENV=%s", cfg.Env)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
