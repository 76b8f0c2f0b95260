package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal holds funds in Wallet.Blocked until it completes or fails.
type Withdrawal struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	UUID        string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status      string          `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
