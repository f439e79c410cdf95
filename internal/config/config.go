// Package config loads the server configuration from the environment, with a
// .env file honored for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the chat server. Zero values for the
// optional backends (Redis, NATS) disable them.
type Config struct {
	ListenAddr     string
	DatabaseURL    string
	MigrationsURL  string
	RedisAddr      string
	NatsURL        string
	JWTSecret      string
	TokenTTL       time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:     ":8080",
		MigrationsURL:  "file://migrations",
		JWTSecret:      "dev-secret",
		TokenTTL:       24 * time.Hour,
		WriteTimeout:   10 * time.Second,
		MaxConnections: 10000,
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if v := os.Getenv("MIGRATIONS_URL"); v != "" {
		cfg.MigrationsURL = v
	}
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.NatsURL = os.Getenv("NATS_URL")
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WriteTimeout = d
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConnections = n
		}
	}
	return cfg
}
