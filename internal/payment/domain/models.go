package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PaymentRecord is one row of the append-only payment ledger. The unique
// index on provider_payment_id prevents double-crediting a payment.
type PaymentRecord struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID         snowflake.ID `gorm:"not null;index" json:"account_id"`
	ProviderOrderID   string       `gorm:"type:text;not null" json:"provider_order_id"`
	ProviderPaymentID string       `gorm:"type:text;not null;uniqueIndex:ux_payment_records_provider_payment_id" json:"provider_payment_id"`
	AmountMinorUnits  int64        `gorm:"not null" json:"amount_minor_units"`
	Currency          string       `gorm:"type:text;not null" json:"currency"`
	Status            Status       `gorm:"type:text;not null" json:"status"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
}

func (PaymentRecord) TableName() string { return "payment_records" }
