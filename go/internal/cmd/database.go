package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/dbconfig"
)

func setupDatabase() (*sql.DB, error) {
	dbCfg := dbconfig.FromEnv()

	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	database.SetMaxOpenConns(dbCfg.MaxOpenConns)
	database.SetMaxIdleConns(dbCfg.MaxIdleConns)

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("user", dbCfg.User).
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Name).
		Msg("connected to database")
	return database, nil
}
