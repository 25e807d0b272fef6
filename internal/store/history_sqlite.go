package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/models"
	_ "github.com/mattn/go-sqlite3"
)

const createHistoryTable = `CREATE TABLE IF NOT EXISTS analysis_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL,
	confidence REAL NOT NULL,
	risk_level TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`

// sqliteHistory is the desktop-mode [HistoryStorage], a local sqlite file
// next to the quota record.
type sqliteHistory struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	logger  *logger.Logger
}

// NewSQLiteHistory opens (creating if necessary) the history database at
// path and ensures the schema exists.
func NewSQLiteHistory(path string, log *logger.Logger) (HistoryStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createHistoryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return newSQLiteHistory(db, log), nil
}

func newSQLiteHistory(db *sql.DB, log *logger.Logger) *sqliteHistory {
	return &sqliteHistory{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger:  log,
	}
}

// Record implements [HistoryStorage].
func (s *sqliteHistory) Record(ctx context.Context, entry models.HistoryEntry) error {
	query, args, err := s.builder.
		Insert("analysis_history").
		Columns("label", "confidence", "risk_level", "created_at").
		Values(entry.Label, entry.Confidence, string(entry.Risk), entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}

	return nil
}

// Recent implements [HistoryStorage], newest first.
func (s *sqliteHistory) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	query, args, err := s.builder.
		Select("id", "label", "confidence", "risk_level", "created_at").
		From("analysis_history").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var risk string
		if err := rows.Scan(&e.ID, &e.Label, &e.Confidence, &risk, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScanningRow, err)
		}
		e.Risk = models.RiskLevel(risk)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}

	return entries, nil
}

// Close implements [HistoryStorage].
func (s *sqliteHistory) Close() error {
	return s.db.Close()
}
