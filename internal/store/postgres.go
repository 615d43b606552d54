package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores slots in a shared database so several hosts can hand a shift over.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and creates the slot table if it is missing.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS tableside_slots (
    key        TEXT PRIMARY KEY,
    data       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create slot table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM tableside_slots WHERE key=$1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", key, err)
	}
	return data, nil
}

func (p *Postgres) Write(ctx context.Context, key string, data []byte) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO tableside_slots(key,data,updated_at) VALUES ($1,$2,now())
ON CONFLICT (key) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`, key, data)
	if err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
