package main

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/enrollhub/internal/cache"
	"github.com/Shivanand-hulikatti/enrollhub/internal/config"
	"github.com/Shivanand-hulikatti/enrollhub/internal/database"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/rs/zerolog/log"
)

// openStore connects the configured backend, migrating Postgres when enabled.
func openStore(ctx context.Context, dc config.DatabaseConfig) (repository.Store, error) {
	if dc.Driver == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return repository.NewMemoryStore(dc.BatchLimit), nil
	}

	pool, err := database.NewPool(ctx, dc)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info().Str("host", dc.Host).Str("db", dc.Name).Msg("connected to PostgreSQL")

	if dc.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return repository.NewPostgresStore(pool, repository.PostgresOptions{
		TxMaxAttempts: dc.TxMaxAttempts,
		BatchLimit:    dc.BatchLimit,
	}), nil
}

// openCache returns the Redis cache, or a disabled one when Redis is off or
// unreachable.
func openCache(rc config.RedisConfig) *cache.RedisCache {
	c, err := cache.NewRedisCache(rc)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize Redis cache, continuing without caching")
		return cache.Disabled()
	}
	return c
}
