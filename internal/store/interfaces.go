package store

import (
	"context"

	"github.com/dianalab/diana/models"
)

// QuotaStorage persists the single quota record. Implementations do not
// synchronize concurrent access themselves: the quota ledger serializes
// every read-modify-write cycle under its own lock.
type QuotaStorage interface {
	// Load returns the current quota record, creating a fresh one on first
	// use (analyses_count = 0, first_use_date = now).
	Load() (models.QuotaRecord, error)

	// Save durably replaces the quota record. The write is atomic
	// (write-new-then-replace) so a crash can never truncate the document.
	Save(models.QuotaRecord) error
}

// HistoryStorage records completed analyses. It is optional: a nil
// HistoryStorage disables history, never inference.
type HistoryStorage interface {
	Record(ctx context.Context, entry models.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	Close() error
}

// UsageRepository is the server-mode analysis audit log, keyed by the
// account the analysis was billed to.
type UsageRepository interface {
	RecordUsage(ctx context.Context, userID string, entry models.HistoryEntry) error
	CountForUser(ctx context.Context, userID string) (uint64, error)
	RecentForUser(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
}
