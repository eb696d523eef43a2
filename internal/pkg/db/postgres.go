// Package db opens the PostgreSQL pool and owns the schema.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"cleanup-quest-bot/internal/config"
)

// Pool defaults used when the config leaves a value at zero.
const (
	defaultConnectTimeout  = 10 * time.Second
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
	healthCheckPeriod      = 30 * time.Second
)

// coreTables must exist for the engine to serve requests.
var coreTables = []string{"profiles", "tickets", "ticket_events", "missions", "user_missions", "points_ledger"}

// Pool is the engine's connection pool.
type Pool struct {
	*pgxpool.Pool
}

// Health is a point-in-time view of the database.
type Health struct {
	Latency       time.Duration
	TotalConns    int32
	IdleConns     int32
	MissingTables []string
}

// Ready reports whether the schema is fully migrated.
func (h *Health) Ready() bool {
	return len(h.MissingTables) == 0
}

// PoolConfig translates DatabaseConfig into a pgxpool config.
func PoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	size := max(cfg.PoolSize, 1)
	pc.MaxConns = int32(size)
	pc.MinConns = int32(max(size/4, 1))
	pc.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, defaultConnectTimeout)
	pc.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, defaultMaxConnLifetime)
	pc.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)
	pc.HealthCheckPeriod = healthCheckPeriod
	return pc, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// NewPool connects and pings the database.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", pc.MaxConns).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close closes the pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}

// HealthCheck pings the database and lists core tables the schema lacks.
func (p *Pool) HealthCheck(ctx context.Context) (*Health, error) {
	return CheckHealth(ctx, p.Pool)
}

// CheckHealth is HealthCheck for a bare pgxpool.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) (*Health, error) {
	start := time.Now()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	h := &Health{Latency: time.Since(start)}

	stat := pool.Stat()
	h.TotalConns = stat.TotalConns()
	h.IdleConns = stat.IdleConns()

	for _, table := range coreTables {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
		}
		if !exists {
			h.MissingTables = append(h.MissingTables, table)
		}
	}
	return h, nil
}

// Migrate applies the schema to the pool's database.
func (p *Pool) Migrate(ctx context.Context) error {
	return Migrate(ctx, p.Pool)
}
