package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/parleylabs/parley/internal/chat/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, turn *domain.ChatTurn) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO chat_turns (id, account_id, content, originator, attachments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID,
		turn.AccountID,
		turn.Content,
		turn.Originator,
		turn.Attachments,
		turn.CreatedAt,
	).Error
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.ChatTurn, error) {
	var turns []domain.ChatTurn
	err := db.WithContext(ctx).
		Model(&domain.ChatTurn{}).
		Where("account_id = ?", accountID).
		Order("created_at asc, id asc").
		Find(&turns).Error
	if err != nil {
		return nil, err
	}
	return turns, nil
}
