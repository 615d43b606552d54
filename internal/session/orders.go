// Package session hosts the ledger and the per-table carts for a multi-goroutine
// server: it serializes writers, persists every change and fans changes out to
// subscribers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"tableside/internal/domain"
	"tableside/internal/ledger"
	"tableside/internal/store"
)

const (
	ordersKey       = "orders"
	snapshotVersion = 1
)

// Change describes one applied ledger mutation.
type Change struct {
	Type     string
	OrderID  string
	Actor    string
	Order    *domain.Order
	Snapshot ledger.Snapshot
	// Cleared holds the orders dropped by Clear.
	Cleared []domain.Order
}

// Listener is called synchronously, in mutation order, after each change, while the
// ledger lock is held. Listeners that do network I/O should be wrapped in a Fanout.
type Listener func(ctx context.Context, c Change)

type ordersEnvelope struct {
	Version int            `json:"version"`
	Orders  []domain.Order `json:"orders"`
	Queue   []string       `json:"queue"`
}

// Orders guards a ledger.Ledger. Readers use Snapshot and never block writers.
type Orders struct {
	mu        sync.Mutex
	led       *ledger.Ledger
	slot      store.Slot
	log       *zap.SugaredLogger
	listeners []Listener
	current   atomic.Pointer[ledger.Snapshot]
}

func NewOrders(led *ledger.Ledger, slot store.Slot, log *zap.SugaredLogger) *Orders {
	if led == nil {
		led = ledger.New()
	}
	if slot == nil {
		slot = store.NewMemory()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	o := &Orders{led: led, slot: slot, log: log}
	o.publish()
	return o
}

// Subscribe registers l for every later change.
func (o *Orders) Subscribe(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// Load rehydrates the ledger from the slot. Missing or unreadable data leaves the
// ledger empty.
func (o *Orders) Load(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, err := o.slot.Read(ctx, ordersKey)
	if err != nil {
		if !errors.Is(err, store.ErrEmpty) {
			o.log.Warnw("orders snapshot unavailable, starting empty", "error", err)
		}
		o.led.Clear()
		o.publish()
		return
	}
	var env ordersEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Version != snapshotVersion {
		o.log.Warnw("discarding unreadable orders snapshot", "error", err, "version", env.Version)
		o.led.Clear()
		o.publish()
		return
	}
	o.led.Restore(ledger.Snapshot{Orders: env.Orders, Queue: env.Queue})
	o.publish()
	o.log.Infow("orders restored", "orders", len(env.Orders), "queued", len(o.led.Queue()))
}

func (o *Orders) Snapshot() ledger.Snapshot {
	return *o.current.Load()
}

func (o *Orders) Order(id string) (domain.Order, bool) {
	return o.Snapshot().Order(id)
}

func (o *Orders) SetOrders(ctx context.Context, actor string, list []domain.Order) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.led.SetOrders(list)
	o.commit(ctx, Change{Type: domain.EventOrdersReplaced, Actor: actor})
}

// Upsert merges or adds in and returns the stored result.
func (o *Orders) Upsert(ctx context.Context, actor string, in domain.Order) (domain.Order, bool) {
	return o.upsert(ctx, domain.EventOrderUpserted, actor, in)
}

// Submit records a freshly created order.
func (o *Orders) Submit(ctx context.Context, actor string, in domain.Order) (domain.Order, bool) {
	return o.upsert(ctx, domain.EventOrderSubmitted, actor, in)
}

func (o *Orders) upsert(ctx context.Context, evtType, actor string, in domain.Order) (domain.Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.led.Upsert(in)
	got, ok := o.led.Order(in.ID)
	if !ok {
		return domain.Order{}, false
	}
	o.commit(ctx, Change{Type: evtType, OrderID: in.ID, Actor: actor, Order: &got})
	return got, true
}

// UpdateStatus applies a status event. found is false for ids the ledger does not know.
func (o *Orders) UpdateStatus(ctx context.Context, actor, id string, status domain.Status) (domain.Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.led.UpdateStatus(id, status) {
		return domain.Order{}, false
	}
	got, _ := o.led.Order(id)
	o.commit(ctx, Change{Type: domain.EventOrderStatusChanged, OrderID: id, Actor: actor, Order: &got})
	return got, true
}

// Clear empties the ledger and returns what it held.
func (o *Orders) Clear(ctx context.Context, actor string) ledger.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev := o.led.Snapshot()
	o.led.Clear()
	o.commit(ctx, Change{Type: domain.EventOrdersCleared, Actor: actor, Cleared: prev.Orders})
	return prev
}

// CloseShift hands the current snapshot to archive and clears the ledger only when
// archive succeeds. No writer can slip in between.
func (o *Orders) CloseShift(ctx context.Context, actor string, archive func(ledger.Snapshot) error) (ledger.Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev := o.led.Snapshot()
	if archive != nil {
		if err := archive(prev); err != nil {
			return prev, err
		}
	}
	o.led.Clear()
	o.commit(ctx, Change{Type: domain.EventOrdersCleared, Actor: actor, Cleared: prev.Orders})
	return prev, nil
}

// commit runs with mu held so persisted state and listeners follow call order. The
// mutation is already applied, so persistence and listeners do not observe the
// caller's cancellation.
func (o *Orders) commit(ctx context.Context, c Change) {
	ctx = context.WithoutCancel(ctx)
	snap := o.publish()
	c.Snapshot = snap
	o.persist(ctx, snap)
	for _, l := range o.listeners {
		l(ctx, c)
	}
}

func (o *Orders) publish() ledger.Snapshot {
	snap := o.led.Snapshot()
	o.current.Store(&snap)
	return snap
}

func (o *Orders) persist(ctx context.Context, snap ledger.Snapshot) {
	data, err := json.Marshal(ordersEnvelope{Version: snapshotVersion, Orders: snap.Orders, Queue: snap.Queue})
	if err != nil {
		o.log.Warnw("encode orders snapshot", "error", err)
		return
	}
	if err := o.slot.Write(ctx, ordersKey, data); err != nil {
		o.log.Warnw("persist orders snapshot", "error", err)
	}
}
