// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// usageRepository is the PostgreSQL-backed implementation of
// [UsageRepository]. One row is written to the "usage_logs" table for every
// analysis billed to an account.
type usageRepository struct {
	db      *DB
	builder sq.StatementBuilderType
	logger  *logger.Logger
}

// NewUsageRepository constructs a [UsageRepository] over the given
// connection.
func NewUsageRepository(db *DB, log *logger.Logger) UsageRepository {
	return &usageRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  log,
	}
}

// RecordUsage implements [UsageRepository].
func (r *usageRepository) RecordUsage(ctx context.Context, userID string, entry models.HistoryEntry) error {
	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Insert("usage_logs").
		Columns("user_id", "label", "confidence", "risk_level", "created_at").
		Values(userID, entry.Label, entry.Confidence, string(entry.Risk), entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("user_id", userID).Str("pg_code", postgresCode(err)).Msg("usage insert failed")
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", ErrUnknownAccount, userID)
		}
		return fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrUsageNotRecorded
	}

	return nil
}

// CountForUser implements [UsageRepository].
func (r *usageRepository) CountForUser(ctx context.Context, userID string) (uint64, error) {
	query, args, err := r.builder.
		Select("COUNT(*)").
		From("usage_logs").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	var count uint64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScanningRow, err)
	}

	return count, nil
}

// RecentForUser implements [UsageRepository].
func (r *usageRepository) RecentForUser(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	query, args, err := r.builder.
		Select("id", "label", "confidence", "risk_level", "created_at").
		From("usage_logs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var risk string
		if err := rows.Scan(&entry.ID, &entry.Label, &entry.Confidence, &risk, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScanningRow, err)
		}
		entry.Risk = models.RiskLevel(risk)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanningRow, err)
	}

	return entries, nil
}

// postgresCode extracts the SQLSTATE code from a driver error, or "" when
// the error did not originate in Postgres.
func postgresCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	return ""
}

// isConstraintViolation reports whether err is a Postgres integrity
// constraint violation (e.g. a foreign-key failure for an unknown account).
func isConstraintViolation(err error) bool {
	return pgerrcode.IsIntegrityConstraintViolation(postgresCode(err))
}
