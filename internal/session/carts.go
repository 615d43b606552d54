package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tableside/internal/cart"
	"tableside/internal/domain"
	"tableside/internal/store"
)

const cartsKey = "carts"

type cartsEnvelope struct {
	Version int                          `json:"version"`
	Tables  map[string][]domain.CartLine `json:"tables"`
}

// CartView is a read-only rendition of one table's cart.
type CartView struct {
	Table string            `json:"table"`
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
}

// Carts keeps one cart per table.
type Carts struct {
	mu     sync.Mutex
	tables map[string]*cart.Cart
	slot   store.Slot
	log    *zap.SugaredLogger
}

func NewCarts(slot store.Slot, log *zap.SugaredLogger) *Carts {
	if slot == nil {
		slot = store.NewMemory()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Carts{tables: map[string]*cart.Cart{}, slot: slot, log: log}
}

// Load restores carts persisted by a previous run. Unreadable data yields no carts.
func (c *Carts) Load(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = map[string]*cart.Cart{}
	data, err := c.slot.Read(ctx, cartsKey)
	if err != nil {
		if !errors.Is(err, store.ErrEmpty) {
			c.log.Warnw("carts snapshot unavailable, starting empty", "error", err)
		}
		return
	}
	var env cartsEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Version != snapshotVersion {
		c.log.Warnw("discarding unreadable carts snapshot", "error", err, "version", env.Version)
		return
	}
	for table, lines := range env.Tables {
		ct := cart.New()
		ct.SetLines(lines)
		c.tables[table] = ct
	}
}

func (c *Carts) View(table string) CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return view(table, c.tables[table])
}

// Tables lists tables with a non-empty cart.
func (c *Carts) Tables() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for t, ct := range c.tables {
		if ct.Len() > 0 {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Reprice refreshes the menu records of every cart, e.g. after Load or a menu import.
func (c *Carts) Reprice(ctx context.Context, resolve cart.Resolver) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for table, ct := range c.tables {
		if err := ct.Reprice(resolve); err != nil {
			return fmt.Errorf("reprice table %s: %w", table, err)
		}
	}
	c.persist(ctx)
	return nil
}

// Update runs fn against the table's cart and persists the result when fn succeeds.
func (c *Carts) Update(ctx context.Context, table string, fn func(*cart.Cart) error) (CartView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct, ok := c.tables[table]
	if !ok {
		ct = cart.New()
	}
	if err := fn(ct); err != nil {
		return view(table, c.tables[table]), err
	}
	if ct.Len() == 0 {
		delete(c.tables, table)
	} else {
		c.tables[table] = ct
	}
	c.persist(ctx)
	return view(table, ct), nil
}

// Take empties the table's cart and returns what it held.
func (c *Carts) Take(ctx context.Context, table string) CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := view(table, c.tables[table])
	if _, ok := c.tables[table]; ok {
		delete(c.tables, table)
		c.persist(ctx)
	}
	return v
}

func view(table string, ct *cart.Cart) CartView {
	if ct == nil {
		return CartView{Table: table, Lines: []domain.CartLine{}, Total: decimal.Zero}
	}
	lines := ct.Lines()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return CartView{Table: table, Lines: lines, Total: ct.Total()}
}

// persist outlives the caller's context; a cart change already applied in memory
// must reach the slot.
func (c *Carts) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	env := cartsEnvelope{Version: snapshotVersion, Tables: make(map[string][]domain.CartLine, len(c.tables))}
	for t, ct := range c.tables {
		env.Tables[t] = ct.Lines()
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Warnw("encode carts snapshot", "error", err)
		return
	}
	if err := c.slot.Write(ctx, cartsKey, data); err != nil {
		c.log.Warnw("persist carts snapshot", "error", err)
	}
}
