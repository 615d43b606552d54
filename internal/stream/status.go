// Package stream feeds the ledger from upstream sources: status events from the
// kitchen message bus and periodic full refreshes from a remote host.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tableside/internal/domain"
)

// Actor is recorded as the author of changes that arrived over the bus.
const Actor = "amqp"

// FromBus reports whether actor marks a change that arrived over the bus.
func FromBus(actor string) bool {
	return actor == Actor || strings.HasPrefix(actor, Actor+":")
}

var (
	ErrBadEvent = errors.New("malformed status event")
	// ErrOwnEvent marks an announcement this host published itself.
	ErrOwnEvent = errors.New("status event published by this host")
)

// StatusSink applies status events. session.Orders satisfies it.
type StatusSink interface {
	UpdateStatus(ctx context.Context, actor, id string, status domain.Status) (domain.Order, bool)
}

// DecodeStatusEvent parses {"order_id": ..., "new_status": ...}.
func DecodeStatusEvent(body []byte) (domain.StatusEvent, error) {
	var evt domain.StatusEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return evt, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	evt.NewStatus = evt.NewStatus.Normalize()
	if evt.OrderID == "" || evt.NewStatus == "" {
		return evt, fmt.Errorf("%w: order_id and new_status are required", ErrBadEvent)
	}
	return evt, nil
}

// ApplyStatus decodes body and applies it. found is false for orders the ledger
// does not know, which is not an error. Events whose origin is self were already
// applied locally and return ErrOwnEvent without touching the sink.
func ApplyStatus(ctx context.Context, sink StatusSink, body []byte, self string) (evt domain.StatusEvent, found bool, err error) {
	evt, err = DecodeStatusEvent(body)
	if err != nil {
		return evt, false, err
	}
	if self != "" && evt.Origin == self {
		return evt, false, ErrOwnEvent
	}
	actor := Actor
	if evt.ChangedBy != "" {
		actor = Actor + ":" + evt.ChangedBy
	}
	_, found = sink.UpdateStatus(ctx, actor, evt.OrderID, evt.NewStatus)
	return evt, found, nil
}
