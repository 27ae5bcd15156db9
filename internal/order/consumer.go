package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

// SubmittedEvent mirrors the Kafka payload shape from KafkaPublisher.
type SubmittedEvent struct {
	OrderID         string                 `json:"order_id"`
	Number          string                 `json:"number"`
	IdempotencyKey  string                 `json:"idempotency_key"`
	CustomerEmail   string                 `json:"customer_email"`
	Amount          float64                `json:"amount"`
	Currency        string                 `json:"currency"`
	Status          domain.OrderStatus     `json:"status"`
	Items           []domain.LineItem      `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	SubmittedAt     time.Time              `json:"submitted_at"`
}

// messageReader is the slice of kafka.Reader the consumer needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer drains submitted-order events into the durable repository.
// Delivery is at-least-once; the idempotency key unique index collapses
// redelivered events.
type Consumer struct {
	repo   Repository
	reader messageReader
	log    *logrus.Logger
}

func NewConsumer(repo Repository, log *logrus.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    TopicOrdersSubmitted,
		GroupID:  "orders-worker",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{repo: repo, reader: reader, log: log}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.WithError(err).Error("error closing kafka reader")
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.WithError(err).Error("error reading message")
		return
	}

	var event SubmittedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.WithError(err).Error("error parsing order event")
		return
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		c.log.WithError(err).WithField("order_id", event.OrderID).Error("invalid order id in event")
		return
	}

	o := &domain.Order{
		ID:              orderID,
		Number:          event.Number,
		IdempotencyKey:  event.IdempotencyKey,
		CustomerEmail:   event.CustomerEmail,
		Amount:          event.Amount,
		Currency:        event.Currency,
		Status:          event.Status,
		Items:           event.Items,
		ShippingAddress: event.ShippingAddress,
		CreatedAt:       event.SubmittedAt,
	}

	if err := c.repo.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			c.log.WithField("order_number", o.Number).Debug("order already recorded, skipping")
			return
		}
		c.log.WithError(err).WithField("order_number", o.Number).Error("failed to record order")
		return
	}

	c.log.WithFields(logrus.Fields{
		"order_number": o.Number,
		"amount":       o.Amount,
	}).Info("order recorded")
}
