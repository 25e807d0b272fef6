package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func newTestUsageRepo(t *testing.T) (*usageRepository, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	l := logger.Nop()
	repo := NewUsageRepository(&DB{DB: db, logger: l}, l).(*usageRepository)
	return repo, mock, db
}

func pgError(code string) error {
	return &pgconn.PgError{Code: code}
}

func testEntry() models.HistoryEntry {
	return models.HistoryEntry{
		Label:      "Malignant",
		Confidence: 0.92,
		Risk:       models.RiskHigh,
		CreatedAt:  time.Now(),
	}
}

func TestRecordUsage_Success(t *testing.T) {
	repo, mock, db := newTestUsageRepo(t)
	defer db.Close()

	entry := testEntry()
	mock.ExpectExec("INSERT INTO usage_logs").
		WithArgs("user-1", entry.Label, entry.Confidence, string(entry.Risk), entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.RecordUsage(context.Background(), "user-1", entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecordUsage_UnknownAccount(t *testing.T) {
	repo, mock, db := newTestUsageRepo(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO usage_logs").
		WillReturnError(pgError(pgerrcode.ForeignKeyViolation))

	err := repo.RecordUsage(context.Background(), "ghost", testEntry())
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
}

func TestRecordUsage_ZeroRowsAffected(t *testing.T) {
	repo, mock, db := newTestUsageRepo(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO usage_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordUsage(context.Background(), "user-1", testEntry())
	if !errors.Is(err, ErrUsageNotRecorded) {
		t.Fatalf("expected ErrUsageNotRecorded, got %v", err)
	}
}

func TestRecentForUser(t *testing.T) {
	repo, mock, db := newTestUsageRepo(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "label", "confidence", "risk_level", "created_at"}).
		AddRow(2, "Malignant", 0.92, "High", now).
		AddRow(1, "Benign", 0.81, "Low", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT id, label, confidence, risk_level, created_at FROM usage_logs").
		WithArgs("user-1").
		WillReturnRows(rows)

	entries, err := repo.RecentForUser(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Label != "Malignant" || entries[0].Risk != models.RiskHigh {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
}

func TestCountForUser(t *testing.T) {
	repo, mock, db := newTestUsageRepo(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"count"}).AddRow(17)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1").
		WillReturnRows(rows)

	count, err := repo.CountForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 17 {
		t.Errorf("expected count=17, got %d", count)
	}
}
