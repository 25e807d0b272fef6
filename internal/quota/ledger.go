// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package quota enforces the freemium allowance: a durable analysis counter
// with a fixed free-tier limit and a premium override.
package quota

import (
	"sync"
	"time"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/store"
	"github.com/dianalab/diana/models"
)

// Ledger is the quota ledger. All read-modify-write cycles on the persisted
// record run under one mutex: two concurrent requests that both passed an
// earlier CanAnalyze check can never debit past the limit, because
// Increment re-checks under the same lock that guards the save.
type Ledger struct {
	mu        sync.Mutex
	storage   store.QuotaStorage
	freeLimit uint64
	logger    *logger.Logger
}

// NewLedger constructs a [Ledger] over the given storage.
func NewLedger(storage store.QuotaStorage, freeLimit uint64, logger *logger.Logger) *Ledger {
	return &Ledger{
		storage:   storage,
		freeLimit: freeLimit,
		logger:    logger,
	}
}

// CanAnalyze reports whether one more analysis is allowed: always true for
// premium, otherwise true while the counter is below the free limit.
//
// The answer is advisory: the authoritative check is repeated inside
// [Ledger.Increment] at debit time.
func (l *Ledger) CanAnalyze() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.storage.Load()
	if err != nil {
		return false, err
	}

	return l.allowed(record), nil
}

func (l *Ledger) allowed(record models.QuotaRecord) bool {
	if record.IsPremium {
		return true
	}
	return record.AnalysesCount < l.freeLimit
}

// Increment debits one analysis. The quota check is re-evaluated under the
// ledger lock, so an exhausted record is never mutated: the method then
// returns false and leaves the counter untouched.
func (l *Ledger) Increment() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.storage.Load()
	if err != nil {
		return false, err
	}

	if !l.allowed(record) {
		l.logger.Warn().Uint64("used", record.AnalysesCount).Msg("free quota exhausted")
		return false, nil
	}

	now := time.Now()
	record.AnalysesCount++
	record.LastAnalysisDate = &now

	if err := l.storage.Save(record); err != nil {
		return false, err
	}

	l.logger.Info().
		Uint64("used", record.AnalysesCount).
		Bool("is_premium", record.IsPremium).
		Msg("analysis debited")

	return true, nil
}

// SetPremium flips the stored premium flag. Once set, [Ledger.CanAnalyze]
// stays true until the flag is explicitly unset.
func (l *Ledger) SetPremium(flag bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.storage.Load()
	if err != nil {
		return err
	}

	record.IsPremium = flag
	if err := l.storage.Save(record); err != nil {
		return err
	}

	l.logger.Info().Bool("is_premium", flag).Msg("premium flag updated")
	return nil
}

// IsPremium reports the stored premium flag.
func (l *Ledger) IsPremium() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.storage.Load()
	if err != nil {
		return false, err
	}

	return record.IsPremium, nil
}

// Reset recreates a fresh record. Admin operation only; the one sanctioned
// way the counter ever decreases.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.storage.Save(models.QuotaRecord{FirstUseDate: time.Now()}); err != nil {
		return err
	}

	l.logger.Info().Msg("quota reset")
	return nil
}

// Stats returns a read-only snapshot of the ledger. Remaining carries
// [models.UnlimitedRemaining] for premium accounts.
func (l *Ledger) Stats() (models.QuotaStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.storage.Load()
	if err != nil {
		return models.QuotaStats{}, err
	}

	stats := models.QuotaStats{
		Used:         record.AnalysesCount,
		Limit:        l.freeLimit,
		IsPremium:    record.IsPremium,
		FirstUse:     record.FirstUseDate,
		LastAnalysis: record.LastAnalysisDate,
	}

	if record.IsPremium {
		stats.Remaining = models.UnlimitedRemaining
	} else if record.AnalysesCount < l.freeLimit {
		stats.Remaining = int64(l.freeLimit - record.AnalysesCount)
	}

	return stats, nil
}
