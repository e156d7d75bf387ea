package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Account maps an externally issued identifier to internal subscription state.
// usage_count is meaningful only while tier = free; it resets to 0 on upgrade.
type Account struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalID string       `gorm:"type:text;not null;uniqueIndex:ux_accounts_external_id" json:"external_id"`
	Tier       Tier         `gorm:"type:text;not null;default:'free'" json:"tier"`
	UsageCount int          `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// CanSendUserTurn reports whether the account may originate another chat turn
// under the given free-tier quota.
func (a Account) CanSendUserTurn(quota int) bool {
	if a.Tier == TierPro {
		return true
	}
	return a.UsageCount < quota
}
