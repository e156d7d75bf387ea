package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/parleylabs/parley/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, external_id, tier, usage_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.ExternalID,
		account.Tier,
		account.UsageCount,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_id, tier, usage_count, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_id, tier, usage_count, created_at, updated_at
		 FROM accounts WHERE external_id = ?`,
		externalID,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// IncrementUsage is the compare-and-increment half of the quota contract.
// Concurrent turns for one account cannot jointly pass a stale check because
// the guard and the increment are one statement.
func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, quota int, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET usage_count = usage_count + 1, updated_at = ?
		 WHERE id = ? AND tier = ? AND usage_count < ?`,
		now,
		id,
		domain.TierFree,
		quota,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Upgrade(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET tier = ?, usage_count = 0, updated_at = ?
		 WHERE id = ?`,
		domain.TierPro,
		now,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
