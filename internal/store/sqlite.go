package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLite stores slots in the kv_slots table of the workspace database.
type SQLite struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s SQLite) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM kv_slots WHERE key=?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", key, err)
	}
	return data, nil
}

func (s SQLite) Write(ctx context.Context, key string, data []byte) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO kv_slots(key,data,updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		key, data, now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	return nil
}
