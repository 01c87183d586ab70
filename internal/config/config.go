package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string

	// RedisURL is optional. When set, group membership and publishes are
	// relayed through Redis so multiple server nodes share one group space.
	// When empty, the in-memory single-node registry is used.
	RedisURL string

	LifecycleEnabled  bool
	LifecycleInterval time.Duration
	LifecycleTimeout  time.Duration

	PingInterval time.Duration
	PongWait     time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       dbURL,
		RedisURL:          getEnv("REDIS_URL", ""),
		LifecycleEnabled:  getEnvBool("LIFECYCLE_ENABLED", true),
		LifecycleInterval: getEnvDuration("LIFECYCLE_INTERVAL", 5*time.Minute),
		LifecycleTimeout:  getEnvDuration("LIFECYCLE_TIMEOUT", 1*time.Minute),
		PingInterval:      getEnvDuration("PING_INTERVAL", 30*time.Second),
		PongWait:          getEnvDuration("PONG_WAIT", 60*time.Second),
	}

	if cfg.PingInterval >= cfg.PongWait {
		return nil, fmt.Errorf("PING_INTERVAL (%s) must be shorter than PONG_WAIT (%s)", cfg.PingInterval, cfg.PongWait)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
