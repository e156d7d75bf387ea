package domain

import (
	"context"
	"errors"

	providerdomain "github.com/parleylabs/parley/internal/providers/payment/domain"
)

var ErrInvalidAmount = errors.New("invalid_amount")

type CreateOrderRequest struct {
	ExternalID       string `json:"external_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

type Service interface {
	// Create issues a provider order tagged with the internal and external
	// account identifiers. Provider failures are not retried.
	Create(ctx context.Context, req CreateOrderRequest) (providerdomain.Order, error)
}
