package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*Account, error)
	// IncrementUsage bumps usage_count only while tier = free and
	// usage_count < quota. Reports whether a row was updated.
	IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, quota int, now time.Time) (bool, error)
	// Upgrade sets tier = pro and usage_count = 0 in a single statement.
	Upgrade(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}
