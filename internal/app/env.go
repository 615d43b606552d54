// Package app wires a workspace into the pieces commands need: configuration, the
// sqlite database, the session host and its persistence and archive backends.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"tableside/internal/archive"
	"tableside/internal/config"
	"tableside/internal/db"
	"tableside/internal/events"
	"tableside/internal/ledger"
	"tableside/internal/menu"
	"tableside/internal/migrate"
	"tableside/internal/repo"
	"tableside/internal/session"
	"tableside/internal/store"
)

// DefaultRestaurantID is used when the workspace has no tableside.yml.
const DefaultRestaurantID = "default"

// Env is an opened workspace.
type Env struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Repo      repo.Repo
	Log       *zap.SugaredLogger

	closers []func()
}

// Open prepares the workspace directory, loads tableside.yml (defaults when absent)
// and migrates the database.
func Open(ctx context.Context, workspace string, log *zap.SugaredLogger) (*Env, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		log.Debugw("no tableside.yml, using defaults", "workspace", workspace)
		cfg = config.Default(DefaultRestaurantID)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.Up(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(applied) > 0 {
		log.Infow("database migrated", "path", db.Path(workspace), "applied", applied)
	}
	return &Env{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Repo:      repo.Repo{DB: conn},
		Log:       log,
		closers:   []func(){func() { conn.Close() }},
	}, nil
}

// Close releases everything Open and the builders acquired, newest first.
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *Env) Writer() events.Writer {
	return events.Writer{RestaurantID: e.Config.Restaurant.ID}
}

func (e *Env) Catalog() menu.Catalog {
	return menu.Catalog{Repo: e.Repo, Events: e.Writer()}
}

// Slot returns the snapshot store selected by persistence.backend.
func (e *Env) Slot(ctx context.Context) (store.Slot, error) {
	switch e.Config.Persistence.Backend {
	case "", "sqlite":
		return store.SQLite{DB: e.DB}, nil
	case "postgres":
		pg, err := store.OpenPostgres(ctx, e.Config.Persistence.PostgresDSN)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, pg.Close)
		return pg, nil
	case "none":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", e.Config.Persistence.Backend)
	}
}

// Session builds the order and cart hosts, restores their persisted state and
// records every order change in the event log.
func (e *Env) Session(ctx context.Context) (*session.Orders, *session.Carts, error) {
	slot, err := e.Slot(ctx)
	if err != nil {
		return nil, nil, err
	}
	led := ledger.New()
	if e.Config.Ledger.Retention > 0 {
		led.Retention = e.Config.Ledger.Retention
	}
	orders := session.NewOrders(led, slot, e.Log.Named("orders"))
	orders.Load(ctx)
	orders.Subscribe(events.Recorder{DB: e.DB, Writer: e.Writer(), Log: e.Log.Named("events")}.OnChange)
	carts := session.NewCarts(slot, e.Log.Named("carts"))
	carts.Load(ctx)
	if err := carts.Reprice(ctx, e.Catalog().Resolver(ctx)); err != nil {
		e.Log.Warnw("restored carts keep their saved prices", "error", err)
	}
	return orders, carts, nil
}

// ArchiveStores returns the configured shift archive targets: a directory (relative
// paths resolve against the workspace) and an S3 bucket.
func (e *Env) ArchiveStores(ctx context.Context) ([]archive.Store, error) {
	var stores []archive.Store
	if dir := e.Config.Archive.Dir; dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(e.Workspace, dir)
		}
		stores = append(stores, archive.Dir{Path: dir})
	}
	if bucket := e.Config.Archive.Bucket; bucket != "" {
		s3, err := archive.NewS3(ctx, e.Config.Archive.Region, bucket, e.Config.Archive.Prefix)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s3)
	}
	return stores, nil
}
