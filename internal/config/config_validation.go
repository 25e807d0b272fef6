// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

package config

import "errors"

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a joined error naming every
// violated rule otherwise.
func (cfg *StructuredConfig) validate() error {
	var errs []error

	if cfg.App.EncryptionSecret == "" {
		errs = append(errs, ErrNoEncryptionSecret)
	}

	if cfg.Model.EncryptedPath == "" {
		errs = append(errs, ErrNoEncryptedModelPath)
	}

	if cfg.Storage.QuotaFile == "" {
		errs = append(errs, ErrNoQuotaFile)
	}

	if cfg.App.FreeLimit == 0 {
		errs = append(errs, ErrInvalidFreeLimit)
	}

	return errors.Join(errs...)
}
