package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/annsync/internal/adapters/driven/blob/minio"
	configfile "github.com/custodia-labs/annsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/annsync/internal/adapters/driven/recordsource/jsonfeed"
	"github.com/custodia-labs/annsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/annsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/annsync/internal/attachments"
	"github.com/custodia-labs/annsync/internal/core/services"
	"github.com/custodia-labs/annsync/internal/logger"
	"github.com/custodia-labs/annsync/internal/normalisers/record"
)

func main() {
	// Credentials may be seeded from a .env file; a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Loading .env: %v", err)
	}

	cli.SetBootstrap(wire)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// wire builds the full pipeline from the config file and injects it
// into the command surface.
func wire(configPath string) error {
	cfg, err := configfile.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	sources := cfg.DomainSources()

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	blobStore, err := minio.NewStore(minio.Config{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		Bucket:    cfg.Blob.Bucket,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("connecting blob store: %w", err)
	}

	var ingestOpts []services.IngestOption
	if cfg.FailureThreshold > 0 {
		ingestOpts = append(ingestOpts, services.WithFailureThreshold(cfg.FailureThreshold))
	}
	if cfg.HistoryKeep > 0 {
		ingestOpts = append(ingestOpts, services.WithHistoryKeep(cfg.HistoryKeep))
	}

	cursorStore := store.CursorStore()
	ingestService := services.NewIngestService(
		jsonfeed.New(),
		record.NewDispatcher(sources),
		attachments.New(blobStore),
		store.AnnouncementStore(),
		cursorStore,
		sources,
		ingestOpts...,
	)
	scheduler := services.NewScheduler(ingestService)

	cli.SetServices(ingestService, scheduler, cursorStore)
	return nil
}
