package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"

	"tableside/internal/domain"
	"tableside/internal/session"
)

type fakeChannel struct {
	closed bool
	fail   bool
	sent   []amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	if f.fail {
		f.closed = true
		return amqp.ErrClosed
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) IsClosed() bool { return f.closed }
func (f *fakeChannel) Close() error   { f.closed = true; return nil }

func statusChange(id string, s domain.Status) session.Change {
	return session.Change{
		Type:    domain.EventOrderStatusChanged,
		OrderID: id,
		Actor:   "cook",
		Order:   &domain.Order{ID: id, Status: s},
	}
}

func TestPublisherReconnects(t *testing.T) {
	now := time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC)
	var channels []*fakeChannel
	dialErr := error(nil)
	p := newPublisher("kitchen", "host-1", zaptest.NewLogger(t).Sugar(), func() (publishChannel, func(), error) {
		if dialErr != nil {
			return nil, nil, dialErr
		}
		ch := &fakeChannel{}
		channels = append(channels, ch)
		return ch, func() {}, nil
	})
	p.now = func() time.Time { return now }
	ctx := context.Background()

	p.OnChange(ctx, statusChange("A", domain.StatusPreparing))
	if len(channels) != 1 || len(channels[0].sent) != 1 {
		t.Fatalf("first publish should dial once and send")
	}
	var evt domain.StatusEvent
	if err := json.Unmarshal(channels[0].sent[0].Body, &evt); err != nil || evt.Origin != "host-1" {
		t.Fatalf("message not tagged with origin: %+v %v", evt, err)
	}

	// broker drops the connection
	channels[0].closed = true
	dialErr = errors.New("connection refused")
	p.OnChange(ctx, statusChange("A", domain.StatusReady))
	if len(channels) != 1 {
		t.Fatalf("dial should have failed")
	}
	// within the backoff window no dial is attempted
	dialErr = nil
	p.OnChange(ctx, statusChange("B", domain.StatusReady))
	if len(channels) != 1 {
		t.Fatalf("redialed before reconnect delay")
	}

	now = now.Add(reconnectDelay)
	p.OnChange(ctx, statusChange("C", domain.StatusReady))
	if len(channels) != 2 || len(channels[1].sent) != 1 {
		t.Fatalf("publisher did not reconnect after the delay")
	}

	// a failing publish drops the channel; the next one dials again
	channels[1].fail = true
	p.OnChange(ctx, statusChange("D", domain.StatusReady))
	p.OnChange(ctx, statusChange("E", domain.StatusReady))
	if len(channels) != 3 || len(channels[2].sent) != 1 {
		t.Fatalf("publisher did not recover from a failed publish: %d channels", len(channels))
	}
}

func TestPublisherSkipsBusChanges(t *testing.T) {
	c := statusChange("A", domain.StatusReady)
	c.Actor = Actor + ":kitchen-2"
	if _, ok, _ := StatusMessage("host-1", c); ok {
		t.Fatalf("bus change must not be announced")
	}
	if _, ok, _ := StatusMessage("host-1", session.Change{Type: domain.EventOrderUpserted}); ok {
		t.Fatalf("only status changes are announced")
	}
}
