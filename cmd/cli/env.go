package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/config"
	"github.com/fleveque/wyckoff-journal/internal/storage"
)

// env is what every subcommand starts from.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	catalogs catalog.Catalogs
}

func loadEnv(opts *options, stderr io.Writer) (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.journalPath != "" {
		cfg.Journal.Path = opts.journalPath
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	catalogs := catalog.NewLoader(cfg.Catalog.Dir, logger).LoadAll()
	for _, err := range catalogs.Errors {
		fmt.Fprintf(stderr, "warning: %v (using built-in defaults)\n", err)
	}

	return &env{cfg: cfg, logger: logger, catalogs: catalogs}, nil
}

// newLogger is a development logger that stays quiet below warn unless
// verbose is set; the CLI's real output goes to stdout.
func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if !verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return zcfg.Build()
}

func (e *env) openDatabase() (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(e.cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(e.cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// exportSink picks MinIO when enabled, otherwise the export directory.
func (e *env) exportSink(ctx context.Context) (storage.ExportSink, error) {
	cfg := e.cfg.Storage
	if cfg.MinIO.Enabled {
		sink, err := storage.NewMinIOSink(ctx, cfg.MinIO.Endpoint, cfg.MinIO.Bucket, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("connecting to minio: %w", err)
		}
		return sink, nil
	}
	return storage.NewFileSystem(cfg.ExportDir)
}

func (e *env) close() {
	_ = e.logger.Sync()
}
