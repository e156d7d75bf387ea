package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert appends a record, returning ErrDuplicateTransaction when the
	// provider payment id was already recorded.
	Insert(ctx context.Context, db *gorm.DB, record *PaymentRecord) error
	FindByTransactionID(ctx context.Context, db *gorm.DB, providerPaymentID string) (*PaymentRecord, error)
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]PaymentRecord, error)
	OrphanUpgrades(ctx context.Context, db *gorm.DB) ([]accountdomain.Account, error)
}
