package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for the registration gateway.
type Server struct {
	Addr          string
	SnapshotDir   string
	RedisURL      string
	DatabaseURL   string
	JWTSigningKey string

	// Simulated backend tuning.
	RateLimitMax    int
	RateLimitWindow time.Duration
	CheckLatency    time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. Defaults favor local development.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("SIGNUPD_ADDR", ":8080"),
		SnapshotDir:     os.Getenv("SIGNUPD_SNAPSHOT_DIR"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSigningKey:   envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		RateLimitMax:    envIntOr("SIGNUPD_RATE_LIMIT_MAX", 5),
		RateLimitWindow: envDurationOr("SIGNUPD_RATE_LIMIT_WINDOW", 10*time.Second),
		CheckLatency:    envDurationOr("SIGNUPD_CHECK_LATENCY", 300*time.Millisecond),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
