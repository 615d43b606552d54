package domain

import (
	"maps"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is an order lifecycle state. The kitchen/server system decides transitions;
// the ledger only reflects what it is told.
type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusServed    Status = "SERVED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every lifecycle state in flow order.
var Statuses = []Status{StatusPlaced, StatusPreparing, StatusReady, StatusServed, StatusPaid, StatusCancelled}

// Normalize upper-cases and trims a status received from an external source.
func (s Status) Normalize() Status {
	return Status(strings.ToUpper(strings.TrimSpace(string(s))))
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s.Normalize() {
	case StatusPaid, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	n := s.Normalize()
	for _, st := range Statuses {
		if st == n {
			return true
		}
	}
	return false
}

// CartLine is one entry of a cart being composed.
type CartLine struct {
	Item       *MenuItem  `json:"item,omitempty"`
	Quantity   int        `json:"quantity"`
	Selections Selections `json:"selections,omitempty"`
}

// ItemID returns the referenced menu item id, or "" when the item is missing.
func (l CartLine) ItemID() string {
	if l.Item == nil {
		return ""
	}
	return l.Item.ID
}

// SameAs reports whether two lines are the same logical line: same item id and
// identical modifier selections.
func (l CartLine) SameAs(other CartLine) bool {
	return l.ItemID() == other.ItemID() && l.Selections.Equal(other.Selections)
}

// LineRequest is the finalized shape handed to the order submission collaborator.
type LineRequest struct {
	ItemID     string     `json:"item_id"`
	Quantity   int        `json:"quantity"`
	Selections Selections `json:"modifiers,omitempty"`
}

// OrderItem is a server-echoed order line. Fields beyond ItemID and Quantity may be absent.
type OrderItem struct {
	ItemID     string           `json:"item_id"`
	Name       string           `json:"name,omitempty"`
	Quantity   int              `json:"quantity"`
	Selections Selections       `json:"modifiers,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
}

// Order is a submitted transaction as known to the ledger.
// Priority is only set while Status is PREPARING.
type Order struct {
	ID          string               `json:"id"`
	Table       string               `json:"table,omitempty"`
	Items       []OrderItem          `json:"items,omitempty"`
	Status      Status               `json:"status,omitempty"`
	Note        string               `json:"note,omitempty"`
	Total       *decimal.Decimal     `json:"total,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	StatusTimes map[Status]time.Time `json:"status_times,omitempty"`
	Priority    *int                 `json:"priority,omitempty"`
}

// Clone returns a deep copy so callers can mutate it freely.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		for i, it := range o.Items {
			it.Selections = it.Selections.Clone()
			if it.UnitPrice != nil {
				p := *it.UnitPrice
				it.UnitPrice = &p
			}
			out.Items[i] = it
		}
	}
	if o.StatusTimes != nil {
		out.StatusTimes = maps.Clone(o.StatusTimes)
	}
	if o.Total != nil {
		t := *o.Total
		out.Total = &t
	}
	if o.Priority != nil {
		p := *o.Priority
		out.Priority = &p
	}
	return out
}

// StatusEvent is a single status-change announcement from the kitchen/server system.
type StatusEvent struct {
	OrderID   string    `json:"order_id"`
	NewStatus Status    `json:"new_status"`
	ChangedBy string    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
	// Origin identifies the publishing host so it can skip its own announcements.
	Origin string `json:"origin,omitempty"`
}
