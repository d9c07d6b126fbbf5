package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lyzr/edgesync/common/config"
	"github.com/lyzr/edgesync/common/logger"
)

//go:embed schema.sql
var schemaSQL string

const (
	connectTimeout = 5 * time.Second
	healthTimeout  = 3 * time.Second
)

// DB wraps pgxpool with the service's startup and health operations
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// PoolConfig builds the pool settings for cfg. Sessions carry the service
// name as application_name.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxIdleTime

	if cfg.Service.Name != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.Service.Name
	}

	return poolConfig, nil
}

// New opens the pool and verifies the connection. The pool is closed again
// if the first ping fails.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s/%s: %w", cfg.Database.Host, cfg.Database.Database, err)
	}

	log.Info("database connected",
		"host", cfg.Database.Host,
		"db", cfg.Database.Database,
		"max_conns", poolConfig.MaxConns,
	)

	return &DB{
		Pool: pool,
		log:  log,
	}, nil
}

// ApplySchema creates the edge-sync tables if they don't exist.
// Safe to run on every start.
func (db *DB) ApplySchema(ctx context.Context) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	db.log.Info("database schema applied")
	return nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.log.Info("closing database connection pool")
	db.Pool.Close()
}

// Health pings the database
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}
