package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-secret model encryption secret (passphrase or base64url key)
//	-free-limit free-tier analysis limit
//	-model encrypted model path
//	-gate-model gate model path
//	-quota-file quota record path
//	-history-db local history sqlite path
//	-d database DSN (server-mode usage log)
//	-backend-url hosted backend base URL
//	-update-url latest.json URL
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	var serverAddress string
	var requestTimeout time.Duration
	var encryptionSecret string
	var freeLimit uint64
	var encryptedModelPath string
	var gateModelPath string
	var quotaFile string
	var historyDB string
	var databaseDSN string
	var backendURL string
	var updateURL string
	var jsonConfigPath string

	flag.StringVar(&serverAddress, "a", "", "Net address host:port")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.StringVar(&encryptionSecret, "secret", "", "Model encryption secret")
	flag.Uint64Var(&freeLimit, "free-limit", 0, "Free-tier analysis limit")
	flag.StringVar(&encryptedModelPath, "model", "", "Encrypted model path")
	flag.StringVar(&gateModelPath, "gate-model", "", "Gate model path")
	flag.StringVar(&quotaFile, "quota-file", "", "Quota record path")
	flag.StringVar(&historyDB, "history-db", "", "Local history sqlite path")
	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.StringVar(&backendURL, "backend-url", "", "Hosted backend base URL")
	flag.StringVar(&updateURL, "update-url", "", "Update check URL")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			EncryptionSecret: encryptionSecret,
			FreeLimit:        freeLimit,
		},
		Model: Model{
			EncryptedPath: encryptedModelPath,
			GatePath:      gateModelPath,
		},
		Storage: Storage{
			QuotaFile: quotaFile,
			HistoryDB: historyDB,
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Server: Server{
			HTTPAddress:    serverAddress,
			RequestTimeout: requestTimeout,
		},
		Backend: Backend{
			BaseURL: backendURL,
		},
		Update: Update{
			CheckURL: updateURL,
		},
		JSONFilePath: jsonConfigPath,
	}
}
