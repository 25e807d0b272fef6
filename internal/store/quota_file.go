// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dianalab/diana/models"
)

// fileQuotaStorage keeps the quota record in a small JSON document.
// Every save writes a sibling temp file and renames it over the document,
// so a crash mid-write can never leave a truncated record behind.
type fileQuotaStorage struct {
	path string
}

// NewFileQuotaStorage constructs a [QuotaStorage] backed by the JSON
// document at path. Parent directories are created as needed.
func NewFileQuotaStorage(path string) (QuotaStorage, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create quota dir: %w", err)
		}
	}
	return &fileQuotaStorage{path: path}, nil
}

func freshRecord() models.QuotaRecord {
	return models.QuotaRecord{
		AnalysesCount: 0,
		FirstUseDate:  time.Now(),
	}
}

// Load implements [QuotaStorage]. A missing document means first run: the
// initial record is created and persisted. A document that exists but does
// not decode surfaces [ErrQuotaFileCorrupted] instead of being recreated,
// because silently resetting the counter would reopen consumed quota.
func (s *fileQuotaStorage) Load() (models.QuotaRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			record := freshRecord()
			if err := s.Save(record); err != nil {
				return models.QuotaRecord{}, err
			}
			return record, nil
		}
		return models.QuotaRecord{}, fmt.Errorf("read quota file: %w", err)
	}

	var record models.QuotaRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.QuotaRecord{}, fmt.Errorf("%w: %v", ErrQuotaFileCorrupted, err)
	}

	return record, nil
}

// Save implements [QuotaStorage] with a write-new-then-replace cycle.
func (s *fileQuotaStorage) Save(record models.QuotaRecord) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode quota record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".quota-*.tmp")
	if err != nil {
		return fmt.Errorf("create quota temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write quota temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close quota temp file: %w", err)
	}

	if err = os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace quota file: %w", err)
	}

	return nil
}
