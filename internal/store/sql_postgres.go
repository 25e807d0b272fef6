package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps the server-mode Postgres connection used by the usage
// repository.
type DB struct {
	*sql.DB
	logger *logger.Logger
}

// NewConnectPostgres opens the server-mode usage database, verifies the
// connection with a ping, and returns the wrapped handle.
func NewConnectPostgres(ctx context.Context, dsn string, log *logger.Logger) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error occured during database connection")
		return nil, fmt.Errorf("error occured during database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(4)

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error connecting database (ping)")
		return nil, err
	}
	log.Info().Str("func", "NewConnectPostgres").Msg("connected to database successfully")

	return &DB{DB: conn, logger: log}, nil
}

// Migrate applies all pending goose migrations.
func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}
