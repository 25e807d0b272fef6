package store

import (
	"context"
	"time"

	"github.com/dianalab/diana/models"
)

// usageHistory adapts the server-mode [UsageRepository] to the
// [HistoryStorage] contract, billing every recorded analysis to one fixed
// subject (the signed-in account or, before sign-in, the device ID).
type usageHistory struct {
	repo    UsageRepository
	subject string
}

// NewUsageHistory wraps repo as a [HistoryStorage] for the given subject.
func NewUsageHistory(repo UsageRepository, subject string) HistoryStorage {
	return &usageHistory{repo: repo, subject: subject}
}

func (u *usageHistory) Record(ctx context.Context, entry models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return u.repo.RecordUsage(ctx, u.subject, entry)
}

func (u *usageHistory) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	return u.repo.RecentForUser(ctx, u.subject, limit)
}

func (u *usageHistory) Close() error {
	return nil
}
