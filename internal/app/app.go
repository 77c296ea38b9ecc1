// Package app assembles storage and domain services from configuration.
// The server and the seed tool share it.
package app

import (
	"context"
	"fmt"

	"stockflow/internal/config"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/movement"
	"stockflow/internal/domain/product"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/internal/infrastructure/storage/postgres/catalog_repo"
	"stockflow/internal/infrastructure/storage/postgres/document_repo"
	"stockflow/internal/infrastructure/storage/postgres/register_repo"
	"stockflow/pkg/logger"
	"stockflow/pkg/numerator"
)

// Services holds the wired domain services and the resources behind them.
type Services struct {
	Products  *product.Service
	Movements *movement.Service
	Ledger    *ledger.Service

	// Pool is nil for memory storage.
	Pool *postgres.Pool
	// Idempotency is nil unless enabled (postgres only).
	Idempotency *postgres.IdempotencyStore
}

// Close releases the database pool.
func (s *Services) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Build opens the configured storage and wires the services on top of it.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return buildMemory(), nil
	case config.DriverPostgres:
		return buildPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func buildMemory() *Services {
	store := memory.New()
	return newServices(store, store.Products(), store.Documents(), store.Ledger(), movement.ServiceConfig{
		Numerator: numerator.New(numerator.NewMemorySequencer(), nil),
		Events:    store,
		Audit:     store,
	})
}

func buildPostgres(ctx context.Context, cfg *config.Config) (*Services, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DSN)
	poolCfg.AppName = cfg.App.Name
	if cfg.Storage.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Storage.MaxConns)
	}
	if cfg.Storage.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.Storage.MinConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	txOpts := postgres.DefaultTxOptions()
	if cfg.Storage.StatementTimeout > 0 {
		txOpts.StatementTimeout = cfg.Storage.StatementTimeout
	}
	txm := postgres.NewTxManager(pool, txOpts)

	audit, err := postgres.NewAuditLog(txm, 0)
	if err != nil {
		pool.Close()
		return nil, err
	}

	s := newServices(txm,
		catalog_repo.NewProductRepo(txm),
		document_repo.NewDocumentRepo(txm),
		register_repo.NewLedgerRepo(txm),
		movement.ServiceConfig{
			Numerator: numerator.New(numerator.NewPostgresSequencer(pool), nil),
			Events:    postgres.NewOutboxPublisher(txm),
			Audit:     audit,
		})
	s.Pool = pool
	if cfg.Idempotency.Enabled {
		s.Idempotency = postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
	}

	logger.Info(ctx, "postgres storage ready", "migrate", cfg.Storage.Migrate)
	postgres.LogPoolStats(ctx, pool)
	return s, nil
}

func newServices(txm tx.Manager, products product.Repository, docs movement.Repository, entries ledger.Repository, mc movement.ServiceConfig) *Services {
	mc.Documents = docs
	mc.Products = products
	mc.Ledger = entries
	mc.TxManager = txm

	return &Services{
		Products:  product.NewService(products, txm),
		Movements: movement.NewService(mc),
		Ledger:    ledger.NewService(entries),
	}
}
