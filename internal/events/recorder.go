package events

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"tableside/internal/domain"
	"tableside/internal/session"
)

// Recorder appends every ledger change to the event log.
type Recorder struct {
	DB     *sql.DB
	Writer Writer
	Log    *zap.SugaredLogger
}

// OnChange is a session.Listener.
func (r Recorder) OnChange(ctx context.Context, c session.Change) {
	kind, payload := "order", EventPayload{}
	switch c.Type {
	case domain.EventOrdersReplaced:
		kind = "orders"
		payload["orders"] = len(c.Snapshot.Orders)
		payload["queue"] = c.Snapshot.Queue
	case domain.EventOrdersCleared:
		kind = "orders"
		payload["cleared"] = len(c.Cleared)
	default:
		if c.Order != nil {
			payload["status"] = c.Order.Status
			payload["table"] = c.Order.Table
			if c.Order.Priority != nil {
				payload["priority"] = *c.Order.Priority
			}
		}
	}
	if err := r.Writer.Append(ctx, r.DB, c.Type, kind, c.OrderID, c.Actor, payload); err != nil && r.Log != nil {
		r.Log.Warnw("record event", "type", c.Type, "order_id", c.OrderID, "error", err)
	}
}
