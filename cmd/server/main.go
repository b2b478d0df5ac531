// Package main is the entry point for the wyckoff-journal HTTP server.
// In Go, the `main` package with a `main()` function is what gets executed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/config"
	"github.com/fleveque/wyckoff-journal/internal/handler"
	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/provider"
	"github.com/fleveque/wyckoff-journal/internal/render"
	"github.com/fleveque/wyckoff-journal/internal/server"
	"github.com/fleveque/wyckoff-journal/internal/service"
	"github.com/fleveque/wyckoff-journal/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal; the variables may come from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("WYCKOFF_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	catalogs := catalog.NewLoader(cfg.Catalog.Dir, logger).LoadAll()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	calls := storage.NewGenerationCallRepository(db)

	sink, err := newExportSink(cfg.Storage, logger)
	if err != nil {
		return err
	}

	// One journal per server process: the session lives as long as the server.
	j := journal.New()
	registry := provider.NewRegistry(cfg.LLM)
	logger.Info("providers registered",
		zap.Strings("providers", registry.Names()),
		zap.Strings("catalog_providers", catalogs.Providers.Names()),
		zap.Strings("strategies", catalogs.Prompts.Names()),
	)
	dispatcher := service.NewDispatcher(
		registry,
		catalogs.Prompts,
		j,
		cfg.LLM.Credentials(),
		logger,
		service.WithRecorder(calls),
		service.WithSentinel(cfg.Journal.Sentinel),
	)
	dispatcher.Begin()

	srv := server.New(cfg, server.Handlers{
		Health:   handler.NewHealthHandler(dispatcher),
		Catalog:  handler.NewCatalogHandler(catalogs.Providers, catalogs.Prompts, catalogs.Errors, dispatcher),
		Analysis: handler.NewAnalysisHandler(dispatcher, service.NewChartProcessor(cfg.Image.MaxDimension), logger),
		Journal:  handler.NewJournalHandler(j, render.New(), sink, logger),
		Stats:    handler.NewStatsHandler(calls, j, logger),
	}, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// newExportSink picks MinIO when enabled, otherwise the export directory.
func newExportSink(cfg config.StorageConfig, logger *zap.Logger) (storage.ExportSink, error) {
	if cfg.MinIO.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sink, err := storage.NewMinIOSink(ctx, cfg.MinIO.Endpoint, cfg.MinIO.Bucket, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("connecting to minio: %w", err)
		}
		logger.Info("archiving exports to minio",
			zap.String("endpoint", cfg.MinIO.Endpoint),
			zap.String("bucket", cfg.MinIO.Bucket),
		)
		return sink, nil
	}

	sink, err := storage.NewFileSystem(cfg.ExportDir)
	if err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return sink, nil
}
