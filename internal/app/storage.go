package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/receipt"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/sqlite"
)

// backend is an opened storage driver.
type backend struct {
	kv       storage.KV
	receipts receipt.Repository
	ping     func(ctx context.Context) error
	close    func()
}

func openStorage(ctx context.Context, cfg StorageConfig) (*backend, error) {
	switch cfg.Driver {
	case "memory":
		s := memory.New()
		return &backend{
			kv:       s,
			receipts: s,
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		return &backend{
			kv:       s,
			receipts: s,
			ping:     s.Ping,
			close:    func() { _ = s.Close() },
		}, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		s := postgres.New(pool)
		return &backend{
			kv:       s,
			receipts: s,
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
