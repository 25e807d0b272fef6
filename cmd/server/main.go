package main

import (
	"context"
	"fmt"

	"github.com/dianalab/diana/internal/account"
	"github.com/dianalab/diana/internal/config"
	"github.com/dianalab/diana/internal/crypto"
	"github.com/dianalab/diana/internal/entitlement"
	"github.com/dianalab/diana/internal/gate"
	handler "github.com/dianalab/diana/internal/handler/http"
	"github.com/dianalab/diana/internal/inference"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/modelstore"
	"github.com/dianalab/diana/internal/quota"
	"github.com/dianalab/diana/internal/server"
	"github.com/dianalab/diana/internal/store"
	"github.com/dianalab/diana/internal/update"
	"github.com/dianalab/diana/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("diana-server")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	cipher, err := crypto.NewCipher([]byte(cfg.App.EncryptionSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("error creating model cipher")
	}

	guard := entitlement.NewGuard(
		modelstore.NewStore(cipher, log),
		cfg.Model.EncryptedPath,
		log,
	)

	quotaStorage, err := store.NewFileQuotaStorage(cfg.Storage.QuotaFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating quota storage")
	}
	ledger := quota.NewLedger(quotaStorage, cfg.App.FreeLimit, log)

	filter := gate.NewFilter(cfg.Model.GatePath, log)

	accountClient := account.NewClient(account.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout,
		SessionFile:  cfg.Storage.SessionFile,
		DeviceIDFile: cfg.Storage.DeviceIDFile,
	}, log)

	history, err := newHistoryStorage(cfg, accountClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating history storage")
	}
	if history != nil {
		defer history.Close()
	}

	engine := inference.NewEngine(filter, guard, ledger, history, log)
	if err := engine.LoadModel(accountClient.IsPremium(), false); err != nil {
		log.Warn().Err(err).Msg("model warm-up skipped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checker *update.Checker
	if cfg.Update.CheckURL != "" {
		checker = update.NewChecker(cfg.Update.CheckURL, cfg.App.Version, cfg.Backend.Timeout, log)
		workers.NewWorkers(
			update.NewWorker(ctx, checker, cfg.Update.Interval, log),
		).Run()
	}

	handlers := handler.NewHandler(engine, ledger, filter, handler.Options{
		Account:        accountClient,
		History:        history,
		Checker:        checker,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Version:        cfg.App.Version,
	}, log)

	srv, err := server.NewServer(handlers.Init(), cfg.Server, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	srv.RunServer()
}

// newHistoryStorage picks the history backend: Postgres when a DSN is
// configured, the local sqlite file otherwise, none when both are empty.
func newHistoryStorage(cfg *config.StructuredConfig, accountClient *account.Client, log *logger.Logger) (store.HistoryStorage, error) {
	if dsn := cfg.Storage.DB.DSN; dsn != "" {
		db, err := store.NewConnectPostgres(context.Background(), dsn, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}

		subject := "anonymous"
		if session, ok := accountClient.Current(); ok {
			subject = session.UserID
		}
		return store.NewUsageHistory(store.NewUsageRepository(db, log), subject), nil
	}

	if cfg.Storage.HistoryDB != "" {
		return store.NewSQLiteHistory(cfg.Storage.HistoryDB, log)
	}

	return nil, nil
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
