package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rdmitry/taskvault/internal/config"
	"github.com/rdmitry/taskvault/internal/crypto"
	"github.com/rdmitry/taskvault/internal/logger"
	"github.com/rdmitry/taskvault/internal/reconcile"
	"github.com/rdmitry/taskvault/internal/remote"
	"github.com/rdmitry/taskvault/internal/store"
	"github.com/rdmitry/taskvault/internal/sync"
	"github.com/rdmitry/taskvault/internal/tombstone"
	"github.com/rdmitry/taskvault/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg, err := config.GetConfig()
	if err != nil {
		logger.NewLogger("taskvaultd").Fatal().Err(err).Msg("error getting configs")
	}

	log := logger.NewFileLogger("taskvaultd", cfg.Log.FilePath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewConnectSQLite(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open local database")
	}
	defer db.Close()

	blobs := store.NewBlobStore(db, log)

	salt, err := loadOrCreateSalt(ctx, blobs)
	if err != nil {
		log.Fatal().Err(err).Msg("load cipher salt")
	}

	snapshots := store.NewSnapshotStore(blobs, crypto.NewCipher(cfg.Storage.Passphrase, salt))

	tombs, err := tombstone.NewTracker(ctx, blobs, cfg.Sync.TombstoneRetention, log)
	if err != nil {
		log.Fatal().Err(err).Msg("load deletion intents")
	}

	protocol := sync.NewProtocol(
		remote.NewHTTPClient(cfg.Remote, log),
		cfg.Remote.ObjectPath,
		snapshots,
		reconcile.NewEngine(cfg.Sync.ConflictWindow, log),
		tombs,
		cfg.Sync.RetryBudget,
		cfg.Sync.RetryBackoff,
		log,
	)

	scheduler := sync.NewScheduler(
		protocol,
		store.NewStateCache(blobs),
		cfg.Sync.Debounce,
		cfg.Sync.PeriodicInterval,
		nil,
		log,
	)
	defer scheduler.Subscribe(func(state models.SyncState) {
		log.Info().
			Str("status", string(state.Status)).
			Bool("pending", state.PendingChanges).
			Int("conflicts", state.ConflictCount).
			Msg("sync state changed")
	})()

	monitor := sync.NewMonitor(remote.NewProbe(cfg.Remote), scheduler, cfg.Sync.ProbeInterval, log)

	// Catch up on whatever happened while the process was down.
	scheduler.ManualSync()

	log.Info().Str("remote", cfg.Remote.BaseURL).Str("db", cfg.Storage.DBPath).Msg("taskvaultd started")
	sync.NewWorkers(scheduler, monitor).Run(ctx)
	log.Info().Msg("taskvaultd stopped")
}

// loadOrCreateSalt returns the persisted key-derivation salt, generating
// and storing one on first run. The salt is not secret; it only has to be
// stable for the lifetime of the local database.
func loadOrCreateSalt(ctx context.Context, blobs store.BlobStore) ([]byte, error) {
	salt, err := blobs.GetBlob(ctx, store.KeySalt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, store.ErrBlobNotFound) {
		return nil, err
	}

	salt, err = crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err = blobs.SetBlob(ctx, store.KeySalt, salt); err != nil {
		return nil, err
	}
	return salt, nil
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
