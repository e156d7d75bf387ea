package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	"github.com/parleylabs/parley/internal/payment/domain"
	pkgdb "github.com/parleylabs/parley/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert appends one ledger row. The unique index on provider_payment_id
// turns a concurrent double-delivery into ErrDuplicateTransaction.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, account_id, provider_order_id, provider_payment_id,
			amount_minor_units, currency, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.AccountID,
		record.ProviderOrderID,
		record.ProviderPaymentID,
		record.AmountMinorUnits,
		record.Currency,
		record.Status,
		record.CreatedAt,
	).Error
	if pkgdb.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateTransaction
	}
	return err
}

func (r *repo) FindByTransactionID(ctx context.Context, db *gorm.DB, providerPaymentID string) (*domain.PaymentRecord, error) {
	var record domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, provider_order_id, provider_payment_id,
			amount_minor_units, currency, status, created_at
		 FROM payment_records
		 WHERE provider_payment_id = ?
		 LIMIT 1`,
		providerPaymentID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.PaymentRecord, error) {
	var records []domain.PaymentRecord
	err := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("account_id = ?", accountID).
		Order("created_at desc, id desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// OrphanUpgrades finds accounts whose tier flip committed but whose payment
// record append did not, which indicates a crash between the two.
func (r *repo) OrphanUpgrades(ctx context.Context, db *gorm.DB) ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT a.id, a.external_id, a.tier, a.usage_count, a.created_at, a.updated_at
		 FROM accounts a
		 WHERE a.tier = ?
		   AND NOT EXISTS (
			SELECT 1 FROM payment_records p
			WHERE p.account_id = a.id AND p.status = ?
		   )`,
		accountdomain.TierPro,
		domain.StatusCompleted,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
