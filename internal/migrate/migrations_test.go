package migrate_test

import (
	"context"
	"testing"

	"tableside/internal/db"
	"tableside/internal/migrate"
)

func TestUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	steps, err := migrate.Steps()
	if err != nil || len(steps) == 0 {
		t.Fatalf("steps: %v (%d)", err, len(steps))
	}
	applied, err := migrate.Up(ctx, conn)
	if err != nil {
		t.Fatalf("first up: %v", err)
	}
	if len(applied) != len(steps) {
		t.Fatalf("applied %v, want %d steps", applied, len(steps))
	}
	v, err := migrate.Version(ctx, conn)
	if err != nil || v != steps[len(steps)-1].Version {
		t.Fatalf("version = %d, %v", v, err)
	}
	applied, err = migrate.Up(ctx, conn)
	if err != nil || len(applied) != 0 {
		t.Fatalf("second up applied %v, err %v", applied, err)
	}
	for _, table := range []string{"kv_slots", "events", "menu_items", "webhook_cursors"} {
		var n int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil || n != 1 {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
