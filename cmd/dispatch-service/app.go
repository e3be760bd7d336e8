package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"qms/dispatch-service/internal/config"
	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/persistence"
	"qms/dispatch-service/internal/seed"
	"qms/dispatch-service/internal/store"
	"qms/dispatch-service/internal/store/memory"
	"qms/dispatch-service/internal/store/postgres"
	"qms/dispatch-service/internal/store/sqlite"
	"qms/dispatch-service/internal/telemetry"
)

// app holds what every subcommand shares: configuration, logger and the
// ledger over the configured record store.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	ledger *ledger.Ledger
	close  func()
}

func newApp(ctx context.Context, migrate bool) (*app, error) {
	cfg := config.Load()
	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	recordStore, closeStore, err := openStore(ctx, cfg, migrate || cfg.RunMigrations, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		ledger: ledger.New(recordStore, logger),
	}
	a.close = func() {
		closeStore()
		_ = logger.Sync()
	}

	if cfg.OfficesSeedFile != "" {
		file, err := seed.Load(cfg.OfficesSeedFile)
		if err != nil {
			a.close()
			return nil, err
		}
		if _, err := seed.Apply(ctx, a.ledger, file, logger); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, migrate bool, logger *zap.Logger) (store.RecordStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Info("using in-memory store")
		return memory.NewStore(), func() {}, nil
	case config.DriverPostgres:
		pool, err := persistence.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if migrate {
			if err := persistence.MigratePostgres(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewStore(pool), pool.Close, nil
	case config.DriverSQLite:
		db, err := persistence.OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		if migrate {
			if err := persistence.MigrateSQLite(ctx, db, logger); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return sqlite.NewStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
