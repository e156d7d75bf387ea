package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, turn *ChatTurn) error
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]ChatTurn, error)
}
