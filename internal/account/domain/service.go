package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidExternalID = errors.New("invalid_external_id")
	ErrNotFound          = errors.New("not_found")
	ErrQuotaExceeded     = errors.New("quota_exceeded")
)

type Service interface {
	// Resolve returns the account for externalID, creating it on first sight.
	Resolve(ctx context.Context, externalID string) (Account, error)
	// Lookup returns the account for externalID without creating one.
	Lookup(ctx context.Context, externalID string) (Account, error)
	// RecordUserTurn applies the quota check and increment as one conditional
	// update. Returns ErrQuotaExceeded when a free-tier account is at quota.
	RecordUserTurn(ctx context.Context, accountID snowflake.ID) error
	// Upgrade flips the account to pro and resets the usage counter. Idempotent.
	Upgrade(ctx context.Context, accountID snowflake.ID) error
}
