package order

import (
	"context"
	"errors"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

// Sink is the remote collaborator that durably records a submitted
// order. Submit returns the record as the sink accepted it, which may
// be a previously created one when the idempotency key matches.
type Sink interface {
	Submit(ctx context.Context, o *domain.Order) (*domain.Order, error)
}

// EventPublisher fans a placed order out to downstream consumers
// (fulfillment, the orders worker). Best-effort from the storefront's
// point of view.
type EventPublisher interface {
	Publish(ctx context.Context, o *domain.Order) error
}

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order with this idempotency key already exists")
)
