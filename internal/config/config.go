// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// screening service. It aggregates all sub-configurations and is populated
// by merging values from environment variables, command-line flags, an
// optional JSON file, and built-in defaults (in that order of precedence).
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings such as the model encryption
	// secret, the free-tier limit, and the application version.
	App App `envPrefix:"APP_"`

	// Model holds filesystem paths to the encrypted primary model, the
	// optional on-disk decryption fallback target, and the gate model.
	Model Model `envPrefix:"MODEL_"`

	// Storage holds persistence settings: the quota record file, the local
	// analysis-history database, and the server-mode Postgres DSN.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds network address and timeout settings for the HTTP server.
	Server Server `envPrefix:"SERVER_"`

	// Backend holds settings for the hosted identity backend.
	Backend Backend `envPrefix:"BACKEND_"`

	// Update holds settings for the release update checker.
	Update Update `envPrefix:"UPDATE_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// EncryptionSecret is the secret the model cipher key is derived from.
	// Either a raw passphrase or a pre-generated base64url 32-byte key.
	// Must be kept confidential. Env: APP_ENCRYPTION_SECRET
	EncryptionSecret string `env:"ENCRYPTION_SECRET"`

	// FreeLimit is the number of analyses granted to non-premium users.
	// Env: APP_FREE_LIMIT
	FreeLimit uint64 `env:"FREE_LIMIT"`

	// Version is the semantic version string of the running application
	// (e.g. "1.2.3"). Compared against published releases by the update
	// checker. Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Model holds filesystem paths to the model artifacts.
type Model struct {
	// EncryptedPath is the path to the encrypted primary model artifact.
	// Env: MODEL_ENCRYPTED_PATH
	EncryptedPath string `env:"ENCRYPTED_PATH"`

	// DecryptedPath is the target path used only by the on-disk decryption
	// fallback. Any file written here is securely erased after use.
	// Env: MODEL_DECRYPTED_PATH
	DecryptedPath string `env:"DECRYPTED_PATH"`

	// GatePath is the path to the optional content-gate model. When the
	// file is absent the gate degrades open. Env: MODEL_GATE_PATH
	GatePath string `env:"GATE_PATH"`
}

// Storage groups the configuration for all persistence backends.
type Storage struct {
	// QuotaFile is the path to the local quota record document.
	// Env: STORAGE_QUOTA_FILE
	QuotaFile string `env:"QUOTA_FILE"`

	// HistoryDB is the path to the local sqlite analysis-history database.
	// Empty disables history recording. Env: STORAGE_HISTORY_DB
	HistoryDB string `env:"HISTORY_DB"`

	// SessionFile is the path where the signed-in session is persisted.
	// Env: STORAGE_SESSION_FILE
	SessionFile string `env:"SESSION_FILE"`

	// DeviceIDFile is the path of the stable per-install device identifier.
	// Env: STORAGE_DEVICE_ID_FILE
	DeviceIDFile string `env:"DEVICE_ID_FILE"`

	// DB holds the server-mode relational database connection settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the server-mode usage database.
type DB struct {
	// DSN is the PostgreSQL Data Source Name. Empty disables the
	// server-mode usage repository.
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Server holds network and timeout settings for the inbound HTTP layer.
type Server struct {
	// HTTPAddress is the TCP address the HTTP server listens on,
	// in "host:port" format. Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// request. Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// MaxUploadBytes caps the size of an uploaded image.
	// Env: SERVER_MAX_UPLOAD_BYTES
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES"`
}

// Backend holds settings for the hosted identity/account service.
type Backend struct {
	// BaseURL is the root URL of the hosted backend.
	// Env: BACKEND_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// Timeout bounds every backend request. Env: BACKEND_TIMEOUT
	Timeout time.Duration `env:"TIMEOUT"`
}

// Update holds settings for the release update checker.
type Update struct {
	// CheckURL is the URL of the published latest.json document.
	// Empty disables update checking. Env: UPDATE_CHECK_URL
	CheckURL string `env:"CHECK_URL"`

	// Interval is the polling period of the background update worker.
	// Env: UPDATE_INTERVAL
	Interval time.Duration `env:"INTERVAL"`
}

// defaults returns the built-in configuration merged in last, so any value
// set through env, flags, or JSON wins.
func defaults() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			FreeLimit: 5000,
			Version:   "0.0.0",
		},
		Model: Model{
			EncryptedPath: "models/breast_cancer_model.dmr.enc",
			DecryptedPath: "models/breast_cancer_model.dmr",
			GatePath:      "models/filter/breast_cancer_filter.dmr",
		},
		Storage: Storage{
			QuotaFile:    "data/user_quota.json",
			SessionFile:  "data/session.dat",
			DeviceIDFile: "data/device_id.txt",
		},
		Server: Server{
			HTTPAddress:    "localhost:8080",
			RequestTimeout: 60 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Backend: Backend{
			Timeout: 15 * time.Second,
		},
		Update: Update{
			Interval: time.Hour,
		},
	}
}

// GetStructuredConfig loads, merges, and validates the full service
// configuration. Precedence from highest to lowest: environment variables,
// command-line flags, JSON file, defaults.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
