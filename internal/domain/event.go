package domain

// Event is one row of the append-only event log.
type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	RestaurantID string `json:"restaurant_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Payload      string `json:"payload_json"`
}

// Event types written by the session host.
const (
	EventOrderUpserted      = "order.upserted"
	EventOrderStatusChanged = "order.status_changed"
	EventOrdersReplaced     = "orders.replaced"
	EventOrdersCleared      = "orders.cleared"
	EventOrderSubmitted     = "order.submitted"
	EventMenuImported       = "menu.imported"
)
