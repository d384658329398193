package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/config"
	"github.com/ajitpratap0/geovec/pkg/datastore"
	"github.com/ajitpratap0/geovec/pkg/store"
	"github.com/ajitpratap0/geovec/pkg/store/cassandra"
	"github.com/ajitpratap0/geovec/pkg/store/memory"
	"github.com/ajitpratap0/geovec/pkg/store/postgres"
	"github.com/ajitpratap0/geovec/pkg/store/redisstore"
)

// openPlatform connects to the configured key-value platform.
var openPlatform = func(ctx context.Context, cfg config.StoreConfig) (store.Platform, error) {
	switch cfg.Type {
	case config.StoreRedis:
		return redisstore.Open(cfg.Redis), nil
	case config.StoreCassandra:
		return cassandra.Open(cfg.Cassandra)
	case config.StorePostgres:
		return postgres.Open(ctx, cfg.Postgres)
	}
	return memory.New(), nil
}

func (a *app) openDataStore(ctx context.Context) (*datastore.DataStore, error) {
	platform, err := openPlatform(ctx, a.cfg.Store)
	if err != nil {
		return nil, err
	}
	opts := a.cfg.DataStoreOptions()
	opts.Logger = a.log.Named("datastore")
	ds, err := datastore.New(platform, opts)
	if err != nil {
		_ = platform.Close()
		return nil, err
	}
	a.log.Debug("opened datastore",
		zap.String("platform", platform.Name()),
		zap.Int("shards", opts.Shards))
	return ds, nil
}
