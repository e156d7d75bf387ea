package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Originator string

const (
	OriginatorUser      Originator = "user"
	OriginatorAssistant Originator = "assistant"
)

// ChatTurn is one message in an account's conversation. Immutable once
// created; created_at is the replay sort key. Attachments holds the inline
// payloads sent with a user turn, for audit and replay.
type ChatTurn struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID   snowflake.ID   `gorm:"not null;index" json:"account_id"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Originator  Originator     `gorm:"type:text;not null" json:"originator"`
	Attachments datatypes.JSON `gorm:"type:json" json:"attachments,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ChatTurn) TableName() string { return "chat_turns" }
