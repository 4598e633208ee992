// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env      string
	LogLevel string

	MongoURI string
	RedisURL string

	// JWT settings. Either JWTSecret or JWTKeys (kid:secret,kid2:secret2)
	// must be set; JWTKeys enables key rotation.
	JWTSecret    string
	JWTKeys      string
	JWTActiveKid string
	TokenTTL     time.Duration

	SessionTTL time.Duration

	// RateLimitRPM throttles alert delivery and login/register attempts
	// per user key.
	RateLimitRPM int

	// NotifyRecentWindow bounds how stale an unread message may be and
	// still raise a transient alert.
	NotifyRecentWindow time.Duration
}

func Load() Config {
	return Config{
		Env:                getenv("ENV", "local"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		MongoURI:           getenv("MONGODB_URI", ""),
		RedisURL:           getenv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:          getenv("JWT_SECRET", ""),
		JWTKeys:            getenv("JWT_KEYS", ""),
		JWTActiveKid:       getenv("JWT_ACTIVE_KID", ""),
		TokenTTL:           time.Duration(getenvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		SessionTTL:         time.Duration(getenvInt("SESSION_TTL_HOURS", 720)) * time.Hour,
		RateLimitRPM:       getenvInt("RATE_LIMIT_RPM", 10),
		NotifyRecentWindow: time.Duration(getenvInt("NOTIFY_RECENT_WINDOW_SECONDS", 10)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
