package server

import (
	"os"
	"strconv"
	"time"
)

// Config holds the process-wide settings read from the environment at
// startup.
type Config struct {
	Addr                 string
	LogPath              string
	LogLevel             string
	AllowedOrigin        string
	ReconnectGrace       time.Duration
	BroadcastInterval    time.Duration
	MaxPlayersPerRoom    int
	EnableAddendumEvents bool
}

// LoadConfig reads TANKARENA_* environment variables, falling back to
// sensible defaults for local development.
func LoadConfig() Config {
	return Config{
		Addr:                 envOr("TANKARENA_ADDR", ":8080"),
		LogPath:              envOr("TANKARENA_LOG_PATH", "tankarena.log"),
		LogLevel:             envOr("TANKARENA_LOG_LEVEL", "info"),
		AllowedOrigin:        envOr("TANKARENA_ALLOWED_ORIGIN", "*"),
		ReconnectGrace:       envDurationOr("TANKARENA_RECONNECT_GRACE_MS", ReconnectGraceTime),
		BroadcastInterval:    envDurationOr("TANKARENA_BROADCAST_INTERVAL_MS", BroadcastInterval),
		MaxPlayersPerRoom:    envIntOr("TANKARENA_MAX_PLAYERS", MaxPlayersPerRoom),
		EnableAddendumEvents: envOr("TANKARENA_ENABLE_ADDENDUM", "") == "1",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
