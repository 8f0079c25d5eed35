package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"licita/internal/ledger/service"
	"licita/internal/ledger/store/cache"
	"licita/internal/ledger/store/memory"
	mongostore "licita/internal/ledger/store/mongo"
	pgstore "licita/internal/ledger/store/postgres"
	"licita/internal/platform/config"
	"licita/internal/platform/health"
	platformmongo "licita/internal/platform/mongo"
	platformpostgres "licita/internal/platform/postgres"
	"licita/internal/platform/redis"
)

// openedStore is the selected backend plus the connections to release at
// shutdown.
type openedStore struct {
	store   service.Store
	closers []func() error
}

func (o *openedStore) close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		_ = o.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Server, log *slog.Logger, checks *health.Handler) (*openedStore, error) {
	opened := &openedStore{}

	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := platformpostgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		opened.closers = append(opened.closers, db.Close)
		store := pgstore.New(db)
		if err := store.Migrate(ctx); err != nil {
			opened.close()
			return nil, fmt.Errorf("migrate ledger schema: %w", err)
		}
		checks.Add("store", pingDB(db))
		opened.store = store

	case config.StoreMongo:
		client, err := platformmongo.Connect(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, err
		}
		opened.closers = append(opened.closers, func() error {
			return client.Disconnect(context.Background())
		})
		store := mongostore.New(client.Database(cfg.Store.MongoDatabase), mongostore.DefaultCollection)
		if err := store.EnsureIndexes(ctx); err != nil {
			opened.close()
			return nil, fmt.Errorf("ensure ledger indexes: %w", err)
		}
		checks.Add("store", platformmongo.Health(client))
		opened.store = store

	default:
		log.Warn("using in-memory ledger store; records are lost on restart")
		opened.store = memory.NewInMemoryStore()
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		opened.close()
		return nil, err
	}
	if rdb != nil {
		opened.closers = append(opened.closers, rdb.Close)
		checks.Add("redis", rdb.Health)
		opened.store = cache.New(opened.store, rdb.Client, cfg.Redis.CacheTTL, cache.WithLogger(log))
		log.Info("verify cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	return opened, nil
}

func pingDB(db *sql.DB) health.Check {
	return db.PingContext
}
