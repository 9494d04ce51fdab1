package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cryptosim/cryptosim/internal/config"
	"github.com/cryptosim/cryptosim/internal/ledger"
)

// Resources are the connections opened for one process, plus the portfolio
// repository chosen by the configured store driver.
type Resources struct {
	Repository ledger.Repository
	// Cache is set whenever REDIS_URL is configured, whatever the store driver.
	Cache *redis.Client
	DB    *pgxpool.Pool
	SQL   *sql.DB
}

// Open connects the backends named by cfg and builds the portfolio repository.
func Open(ctx context.Context, cfg config.Config) (*Resources, error) {
	res := &Resources{}

	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		res.Cache = cache
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		res.Repository = ledger.NewInMemory()
	case config.DriverFile:
		res.Repository = ledger.NewFileRepository(cfg.StoreFile)
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.SQL = db
		repo, err := ledger.NewSQLiteRepository(db, cfg.PortfolioKey)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("prepare sqlite schema: %w", err)
		}
		res.Repository = repo
	case config.DriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.DB = pool
		repo := ledger.NewPostgresRepository(pool, cfg.PortfolioKey)
		if err := repo.EnsureSchema(ctx); err != nil {
			res.Close()
			return nil, err
		}
		res.Repository = repo
	case config.DriverRedis:
		if res.Cache == nil {
			return nil, fmt.Errorf("redis store requires REDIS_URL")
		}
		res.Repository = ledger.NewRedisRepository(res.Cache, cfg.PortfolioKey)
	default:
		res.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	return res, nil
}

// Close releases every open connection.
func (r *Resources) Close() error {
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.DB != nil {
		r.DB.Close()
	}
	if r.SQL != nil {
		errs = append(errs, r.SQL.Close())
	}
	return errors.Join(errs...)
}
