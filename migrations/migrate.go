// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package migrations carries the embedded goose migrations for the
// server-mode usage database and applies them at startup.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// Migrate brings the usage database schema up to date. It is idempotent:
// goose tracks applied versions in its own bookkeeping table.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set usage db dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply usage db migrations: %w", err)
	}

	return nil
}
