// Package dbconfig resolves the Postgres connection settings shared by
// the match service and the seed tooling.
package dbconfig

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the resolved Postgres connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// Pool sizing for the service's database/sql handle.
	MaxOpenConns int
	MaxIdleConns int
}

// FromEnv resolves the configuration from DB_* environment variables,
// falling back to local-development defaults.
func FromEnv() Config {
	return Config{
		Host:         envString("DB_HOST", "localhost"),
		Port:         envInt("DB_PORT", 5432),
		User:         envString("DB_USER", "postgres"),
		Password:     envString("DB_PASSWORD", "postgres"),
		Name:         envString("DB_NAME", "matchlive"),
		SSLMode:      envString("DB_SSLMODE", "disable"),
		MaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 5),
	}
}

// DSN renders the keyword/value connection string understood by both
// lib/pq and pgx.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
