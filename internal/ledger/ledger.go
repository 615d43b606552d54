// Package ledger keeps the local view of a shift's orders and the kitchen
// preparation queue derived from it.
//
// Queue invariants, checked after every mutation:
//   - the queue holds exactly the ids of known orders whose status is PREPARING;
//   - an order keeps its queue position from the moment it first enters PREPARING
//     until it leaves that status;
//   - Order.Priority is index+1 for queued orders and nil for every other order.
package ledger

import (
	"sort"
	"time"

	"tableside/internal/domain"
)

// DefaultRetention is the maximum number of orders kept by Upsert.
const DefaultRetention = 200

// Snapshot is an immutable view of the ledger. Orders are newest first.
type Snapshot struct {
	Orders []domain.Order `json:"orders"`
	Queue  []string       `json:"queue"`
}

// Order looks up an order by id.
func (s Snapshot) Order(id string) (domain.Order, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

// Ledger is a single-writer state container. Each mutation installs a fresh
// Snapshot; snapshots handed out earlier are never modified.
type Ledger struct {
	Retention int
	Now       func() time.Time

	snap Snapshot
}

func New() *Ledger {
	l := &Ledger{Retention: DefaultRetention, Now: time.Now}
	l.Clear()
	return l
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Ledger) retention() int {
	if l.Retention > 0 {
		return l.Retention
	}
	return DefaultRetention
}

func (l *Ledger) Snapshot() Snapshot {
	return l.snap
}

func (l *Ledger) Queue() []string {
	return l.snap.Queue
}

func (l *Ledger) Order(id string) (domain.Order, bool) {
	return l.snap.Order(id)
}

// SetOrders replaces the known order set with a full refresh. Orders already queued
// keep their relative position; orders seen PREPARING for the first time are appended
// oldest first.
func (l *Ledger) SetOrders(list []domain.Order) {
	orders := make([]domain.Order, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, o := range list {
		if o.ID == "" {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		orders = append(orders, normalizeNew(o))
	}
	l.install(orders, rebuildQueue(l.snap.Queue, orders))
}

// Restore rehydrates a persisted snapshot, reconciling its queue with the orders it
// carries through the same rules as SetOrders.
func (l *Ledger) Restore(s Snapshot) {
	l.snap = Snapshot{Queue: s.Queue}
	l.SetOrders(s.Orders)
}

// Upsert merges an incoming order onto the known one with the same id, or prepends it
// and evicts the oldest orders beyond the retention cap.
func (l *Ledger) Upsert(in domain.Order) {
	if in.ID == "" {
		return
	}
	orders := make([]domain.Order, 0, len(l.snap.Orders)+1)
	var result domain.Order
	found := false
	for _, o := range l.snap.Orders {
		if o.ID == in.ID {
			o = merge(o, in, l.now().UTC())
			result = o
			found = true
		}
		orders = append(orders, o)
	}
	if !found {
		result = normalizeNew(in)
		orders = append([]domain.Order{result}, orders...)
		if limit := l.retention(); len(orders) > limit {
			orders = orders[:limit]
		}
	}
	queue := applyMembership(l.snap.Queue, result)
	l.install(orders, pruneQueue(queue, orders))
}

// UpdateStatus applies an announced status to a known order. Unknown ids are ignored.
// It reports whether the order was known.
func (l *Ledger) UpdateStatus(id string, status domain.Status) bool {
	status = status.Normalize()
	idx := -1
	for i, o := range l.snap.Orders {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || status == "" {
		return false
	}
	orders := make([]domain.Order, len(l.snap.Orders))
	copy(orders, l.snap.Orders)
	o := orders[idx]
	now := l.now().UTC()
	times := make(map[domain.Status]time.Time, len(o.StatusTimes)+1)
	for k, v := range o.StatusTimes {
		times[k] = v
	}
	times[status] = now
	o.Status = status
	o.StatusTimes = times
	o.UpdatedAt = now
	orders[idx] = o
	l.install(orders, applyMembership(l.snap.Queue, o))
	return true
}

// Clear drops every order and empties the queue.
func (l *Ledger) Clear() {
	l.snap = Snapshot{Orders: []domain.Order{}, Queue: []string{}}
}

// install recomputes priorities and swaps in the new snapshot.
func (l *Ledger) install(orders []domain.Order, queue []string) {
	pos := make(map[string]int, len(queue))
	for i, id := range queue {
		pos[id] = i + 1
	}
	for i := range orders {
		if p, ok := pos[orders[i].ID]; ok {
			p := p
			orders[i].Priority = &p
		} else {
			orders[i].Priority = nil
		}
	}
	l.snap = Snapshot{Orders: orders, Queue: queue}
}

// applyMembership appends o to the queue when it is PREPARING and not yet queued, and
// removes it otherwise.
func applyMembership(queue []string, o domain.Order) []string {
	next := make([]string, 0, len(queue)+1)
	queued := false
	for _, id := range queue {
		if id == o.ID {
			if o.Status != domain.StatusPreparing {
				continue
			}
			queued = true
		}
		next = append(next, id)
	}
	if o.Status == domain.StatusPreparing && !queued {
		next = append(next, o.ID)
	}
	return next
}

// pruneQueue drops ids whose order is gone or no longer PREPARING.
func pruneQueue(queue []string, orders []domain.Order) []string {
	status := make(map[string]domain.Status, len(orders))
	for _, o := range orders {
		status[o.ID] = o.Status
	}
	next := make([]string, 0, len(queue))
	for _, id := range queue {
		if status[id] == domain.StatusPreparing {
			next = append(next, id)
		}
	}
	return next
}

func rebuildQueue(prev []string, orders []domain.Order) []string {
	queue := pruneQueue(dedupe(prev), orders)
	queued := make(map[string]struct{}, len(queue))
	for _, id := range queue {
		queued[id] = struct{}{}
	}
	var fresh []domain.Order
	for _, o := range orders {
		if o.Status != domain.StatusPreparing {
			continue
		}
		if _, ok := queued[o.ID]; !ok {
			fresh = append(fresh, o)
		}
	}
	// untimestamped orders go after timestamped ones, in list order
	sort.SliceStable(fresh, func(i, j int) bool {
		a, b := fresh[i].CreatedAt, fresh[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
	for _, o := range fresh {
		queue = append(queue, o.ID)
	}
	return queue
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
