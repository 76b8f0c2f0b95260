package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet caches the running totals of a user's ledger. It is only mutated in
// the same transaction as the statement that justifies the change.
type Wallet struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	Blocked     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"blocked"`
	Withdrawals decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"withdrawals"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// AfterFind normalises cents; some dialects keep decimal columns as floats.
func (w *Wallet) AfterFind(tx *gorm.DB) error {
	w.Balance = w.Balance.Round(2)
	w.Blocked = w.Blocked.Round(2)
	w.Withdrawals = w.Withdrawals.Round(2)
	return nil
}

func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.Blocked)
}
