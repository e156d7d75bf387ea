package domain

import (
	"context"
	"errors"

	accountdomain "github.com/parleylabs/parley/internal/account/domain"
)

var (
	ErrMissingFields        = errors.New("missing_fields")
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrIdentityMismatch     = errors.New("identity_mismatch")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrDuplicateTransaction = errors.New("duplicate_transaction")
)

// VerifyRequest is the client-submitted payment-completion callback.
type VerifyRequest struct {
	ProviderOrderID   string `json:"provider_order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	Signature         string `json:"signature"`
	ExternalID        string `json:"external_id"`
}

type VerifyResult struct {
	Success          bool `json:"success"`
	AlreadyProcessed bool `json:"-"`
}

type Service interface {
	// Verify runs the callback through signature, order and identity checks,
	// then commits the upgrade and payment record atomically. Re-delivery of
	// an already-committed payment succeeds without side effects.
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	// ListByAccount returns the account's payment ledger, newest first.
	ListByAccount(ctx context.Context, externalID string) ([]PaymentRecord, error)
	// OrphanUpgrades reports accounts holding tier = pro without a completed
	// payment record, for operational auditing.
	OrphanUpgrades(ctx context.Context) ([]accountdomain.Account, error)
}
