package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

func (s OrderStatus) String() string {
	return string(s)
}

// ShippingAddress holds the fields collected by the checkout form.
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// CustomerProfile is what the auth collaborator knows about a returning
// customer, used to pre-fill the checkout form.
type CustomerProfile struct {
	FullName   string
	Email      string
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Order is constructed locally and submitted to the order sink, which
// owns it from then on. ID is the primary identity; Number is a
// human-readable label for display only and must never be used as a
// key. IdempotencyKey is stable across resubmissions of the same
// checkout so the sink can collapse duplicates.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	Number          string          `json:"number"`
	IdempotencyKey  string          `json:"idempotency_key"`
	CustomerEmail   string          `json:"customer_email"`
	Amount          float64         `json:"amount"`
	Currency        string          `json:"currency"`
	Status          OrderStatus     `json:"status"`
	Items           []LineItem      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PendingOrder is the order intent written to the persistent store
// before handing off to the external payment page. It is write-only in
// the current flow; nothing reads it back after a redirect.
type PendingOrder struct {
	Email     string          `json:"email"`
	Address   ShippingAddress `json:"address"`
	Items     []LineItem      `json:"items"`
	Total     float64         `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}
