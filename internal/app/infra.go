package app

import (
	"context"
	"fmt"

	"github.com/jwalitptl/telehealth-admin/internal/config"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/repository/memory"
	"github.com/jwalitptl/telehealth-admin/internal/repository/mongo"
	"github.com/jwalitptl/telehealth-admin/internal/repository/postgres"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
	memorybroker "github.com/jwalitptl/telehealth-admin/pkg/messaging/memory"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging/redis"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
)

// OpenStore connects the document store selected by cfg.Store.Driver and
// wraps it in the query cache. Postgres migrations are applied first.
func OpenStore(ctx context.Context, cfg *config.Config, l *logger.Logger, m *metrics.Metrics) (repository.DocumentStore, error) {
	var store repository.DocumentStore
	switch cfg.Store.Driver {
	case "memory":
		store = memory.NewStore()
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		if len(applied) > 0 {
			l.Info("applied migrations", "versions", applied)
		}
		store = postgres.NewStore(db)
	case "mongo":
		s, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.CacheTTL < 0 {
		return store, nil
	}
	return repository.NewCachedStore(store, cfg.Store.CacheTTL, m), nil
}

// OpenBroker connects the channel broker selected by cfg.Channels.Driver.
func OpenBroker(cfg *config.Config, l *logger.Logger) (messaging.Broker, error) {
	switch cfg.Channels.Driver {
	case "memory":
		return memorybroker.NewBroker(cfg.Channels.History), nil
	case "redis":
		zl := l.With("redis").ZL
		return redis.NewRedisBroker(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			History:  cfg.Channels.History,
		}, &zl)
	}
	return nil, fmt.Errorf("unknown channels driver %q", cfg.Channels.Driver)
}
