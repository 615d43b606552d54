package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const reconnectDelay = 5 * time.Second

// Consumer applies kitchen status events from a RabbitMQ topic exchange. Origin is
// the id this host publishes under; its own announcements are acknowledged and skipped.
type Consumer struct {
	URL      string
	Exchange string
	Queue    string
	Origin   string
	Sink     StatusSink
	Log      *zap.SugaredLogger
}

// Run consumes until ctx is done, reconnecting after broker failures.
func (c Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.Log.Warnw("status consumer disconnected, retrying", "error", err, "delay", reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (c Consumer) consume(ctx context.Context) error {
	conn, ch, err := dialExchange(c.URL, c.Exchange)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()
	if err := ch.Qos(16, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	q, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", c.Queue, err)
	}
	if err := ch.QueueBind(q.Name, "order.status.#", c.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "tableside", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	c.Log.Infow("status consumer started", "exchange", c.Exchange, "queue", q.Name)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	evt, found, err := ApplyStatus(ctx, c.Sink, msg.Body, c.Origin)
	switch {
	case errors.Is(err, ErrOwnEvent):
		c.Log.Debugw("skipping own status event", "order_id", evt.OrderID, "status", evt.NewStatus)
	case err != nil:
		c.Log.Errorw("dropping status event", "error", err, "body", string(msg.Body))
		_ = msg.Nack(false, false)
		return
	case !found:
		c.Log.Infow("status event for unknown order ignored", "order_id", evt.OrderID, "status", evt.NewStatus)
	}
	_ = msg.Ack(false)
}

// dialExchange opens a connection and channel and declares the durable topic exchange.
func dialExchange(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}
