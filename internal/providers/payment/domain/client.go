package domain

import (
	"context"
	"errors"
	"time"
)

const (
	// Tag keys carried on every order for later reconciliation. The values
	// set at creation time are authoritative over anything a client echoes
	// back during verification.
	TagExternalID = "external_id"
	TagAccountID  = "account_id"
)

var (
	ErrOrderNotFound = errors.New("order_not_found")
	ErrProvider      = errors.New("payment_provider_error")
)

// Order is the provider's view of a payment order.
type Order struct {
	ProviderOrderID  string            `json:"id"`
	AmountMinorUnits int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Receipt          string            `json:"receipt"`
	Status           string            `json:"status"`
	Tags             map[string]string `json:"notes"`
	CreatedAt        time.Time         `json:"created_at"`
}

type CreateOrderRequest struct {
	AmountMinorUnits int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Receipt          string            `json:"receipt"`
	Tags             map[string]string `json:"notes"`
}

// Client is the opaque payment provider capability: order creation, order
// lookup by id, and the shared secret for callback signatures.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	FetchOrder(ctx context.Context, providerOrderID string) (Order, error)
	Secret() string
}
