package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

const TopicOrdersSubmitted = "orders-submitted"

// KafkaPublisher emits an event per accepted order for downstream
// consumers, keyed by order id so retries of the same order land in
// the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicOrdersSubmitted,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, o *domain.Order) error {
	payload := map[string]interface{}{
		"order_id":         o.ID.String(),
		"number":           o.Number,
		"idempotency_key":  o.IdempotencyKey,
		"customer_email":   o.CustomerEmail,
		"amount":           o.Amount,
		"currency":         o.Currency,
		"status":           o.Status,
		"items":            o.Items,
		"shipping_address": o.ShippingAddress,
		"submitted_at":     time.Now(),
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(o.ID.String()),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
