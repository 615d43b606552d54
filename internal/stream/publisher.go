package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"tableside/internal/domain"
	"tableside/internal/session"
)

var errNotConnected = errors.New("amqp publisher not connected")

// publishChannel is the part of *amqp.Channel the publisher uses.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// dialFunc opens a channel on a fresh connection; the returned func closes the connection.
type dialFunc func() (publishChannel, func(), error)

// Publisher announces status changes made on this host to the kitchen exchange so
// other screens can follow. After a broker drop it redials on the next publish, at
// most once per reconnectDelay.
type Publisher struct {
	exchange string
	origin   string
	log      *zap.SugaredLogger
	dial     dialFunc
	now      func() time.Time

	mu         sync.Mutex
	ch         publishChannel
	closeConn  func()
	retryAfter time.Time
}

// NewPublisher dials url and declares exchange. origin tags every message so this
// host's Consumer can recognize its own announcements.
func NewPublisher(url, exchange, origin string, log *zap.SugaredLogger) (*Publisher, error) {
	p := newPublisher(exchange, origin, log, func() (publishChannel, func(), error) {
		conn, ch, err := dialExchange(url, exchange)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { conn.Close() }, nil
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(exchange, origin string, log *zap.SugaredLogger, dial dialFunc) *Publisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{exchange: exchange, origin: origin, log: log, dial: dial, now: time.Now}
}

// StatusMessage encodes the announcement for a ledger change. ok is false for changes
// that are not announced: anything but a status change, and changes that came from
// the bus.
func StatusMessage(origin string, c session.Change) (body []byte, ok bool, err error) {
	if c.Type != domain.EventOrderStatusChanged || c.Order == nil || FromBus(c.Actor) {
		return nil, false, nil
	}
	body, err = json.Marshal(domain.StatusEvent{
		OrderID:   c.OrderID,
		NewStatus: c.Order.Status,
		ChangedBy: c.Actor,
		ChangedAt: c.Order.UpdatedAt,
		Origin:    origin,
	})
	return body, err == nil, err
}

// OnChange is a session.Listener. Wrap it in a session.Fanout; publishing may block on
// the broker.
func (p *Publisher) OnChange(ctx context.Context, c session.Change) {
	body, ok, err := StatusMessage(p.origin, c)
	if err != nil {
		p.log.Errorw("encode status event", "order_id", c.OrderID, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := p.publish(ctx, RoutingKey(c.Order.Status), body); err != nil {
		p.log.Warnw("publish status event", "order_id", c.OrderID, "error", err)
	}
}

func (p *Publisher) publish(ctx context.Context, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		p.dropLocked()
		if p.now().Before(p.retryAfter) {
			return errNotConnected
		}
		if err := p.connectLocked(); err != nil {
			return err
		}
		p.log.Infow("amqp publisher reconnected", "exchange", p.exchange)
	}
	err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    p.now(),
	})
	if err != nil {
		p.dropLocked()
	}
	return err
}

func (p *Publisher) connectLocked() error {
	ch, closeConn, err := p.dial()
	if err != nil {
		p.retryAfter = p.now().Add(reconnectDelay)
		return err
	}
	p.ch, p.closeConn = ch, closeConn
	return nil
}

func (p *Publisher) dropLocked() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.closeConn != nil {
		p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

// RoutingKey is the topic a status event is published under.
func RoutingKey(s domain.Status) string {
	return "order.status." + string(s.Normalize())
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked()
	return nil
}
