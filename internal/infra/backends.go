package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Backends holds the external stores a process talks to. A nil field means
// the matching URL was not configured.
type Backends struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Connect opens every backend whose URL is set. Either URL may be empty;
// the caller decides whether a missing store is acceptable.
func Connect(ctx context.Context, databaseURL, redisURL, appName string) (*Backends, error) {
	b := &Backends{}
	if databaseURL != "" {
		db, err := NewPostgresPool(ctx, databaseURL, appName)
		if err != nil {
			return nil, err
		}
		b.DB = db
	}
	if redisURL != "" {
		cache, err := NewRedisClient(ctx, redisURL, appName)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Cache = cache
	}
	return b, nil
}

// Close releases whatever Connect opened.
func (b *Backends) Close() error {
	var err error
	if b.Cache != nil {
		err = b.Cache.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
	return err
}

// NewPostgresPool connects a pool tagged with appName so ledger sessions are
// identifiable in pg_stat_activity.
func NewPostgresPool(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, errors.New("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if appName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRedisClient connects to Redis and verifies it answers.
func NewRedisClient(ctx context.Context, url, appName string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = appName
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
