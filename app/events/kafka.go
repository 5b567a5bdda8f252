package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// PaymentStatusEvent is published after a gateway callback has been applied.
type PaymentStatusEvent struct {
	CollectID         string              `json:"collect_id"`
	CustomOrderID     string              `json:"custom_order_id"`
	Status            string              `json:"status"`
	OrderAmount       decimal.Decimal     `json:"order_amount"`
	TransactionAmount decimal.NullDecimal `json:"transaction_amount"`
	PaymentMode       *string             `json:"payment_mode"`
	PaymentTime       time.Time           `json:"payment_time"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, event PaymentStatusEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, timeout)
}

func newKafkaPublisher(writer messageWriter, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{writer: writer, timeout: timeout}
}

// PublishStatusChanged writes the event keyed by collect id so updates for
// one order stay on one partition.
func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, event PaymentStatusEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CollectID),
		Value: value,
		Time:  event.OccurredAt,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no Kafka brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(context.Context, PaymentStatusEvent) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
