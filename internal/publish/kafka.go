// Package publish streams ledger changes to Kafka for downstream consumers such as
// reporting and analytics.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"tableside/internal/domain"
	"tableside/internal/session"
)

// Message is the value written for every change. Orders are keyed by id so a
// compacted topic keeps the latest state per order.
type Message struct {
	Type         string        `json:"type"`
	RestaurantID string        `json:"restaurant_id"`
	OrderID      string        `json:"order_id,omitempty"`
	Actor        string        `json:"actor,omitempty"`
	Order        *domain.Order `json:"order,omitempty"`
	Queue        []string      `json:"queue"`
	At           time.Time     `json:"at"`
}

type Kafka struct {
	producer     sarama.SyncProducer
	topic        string
	restaurantID string
	log          *zap.SugaredLogger
	now          func() time.Time
}

// NewConfig returns the producer settings used for ledger events.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Net.DialTimeout = 10 * time.Second
	return cfg
}

func Dial(brokers []string, topic, restaurantID string, log *zap.SugaredLogger) (*Kafka, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Infow("kafka producer ready", "brokers", brokers, "topic", topic)
	return New(producer, topic, restaurantID, log), nil
}

func New(producer sarama.SyncProducer, topic, restaurantID string, log *zap.SugaredLogger) *Kafka {
	return &Kafka{producer: producer, topic: topic, restaurantID: restaurantID, log: log, now: time.Now}
}

// OnChange is a session.Listener.
func (k *Kafka) OnChange(_ context.Context, c session.Change) {
	msg := Message{
		Type:         c.Type,
		RestaurantID: k.restaurantID,
		OrderID:      c.OrderID,
		Actor:        c.Actor,
		Order:        c.Order,
		Queue:        c.Snapshot.Queue,
		At:           k.now().UTC(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		k.log.Errorw("encode ledger change", "type", c.Type, "error", err)
		return
	}
	pm := &sarama.ProducerMessage{Topic: k.topic, Value: sarama.ByteEncoder(value)}
	key := c.OrderID
	if key == "" {
		key = k.restaurantID
	}
	pm.Key = sarama.StringEncoder(key)
	if _, _, err := k.producer.SendMessage(pm); err != nil {
		k.log.Warnw("publish ledger change", "type", c.Type, "order_id", c.OrderID, "error", err)
	}
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
