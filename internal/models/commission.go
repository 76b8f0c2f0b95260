package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commission is owed to BeneficiaryID for BuyerID's order. One row per
// (order, beneficiary, buyer); rows are never deleted.
type Commission struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	UUID          string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	OrderID       uint            `gorm:"not null;uniqueIndex:idx_commission_natural_key,priority:1" json:"order_id"`
	BeneficiaryID uint            `gorm:"not null;uniqueIndex:idx_commission_natural_key,priority:2;index" json:"beneficiary_id"`
	BuyerID       uint            `gorm:"not null;uniqueIndex:idx_commission_natural_key,priority:3" json:"buyer_id"`
	Level         int             `gorm:"not null" json:"level"`
	Rate          decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"rate"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Paid          bool            `gorm:"not null;default:false;index:idx_commission_payable,priority:1" json:"paid"`
	AvailableAt   time.Time       `gorm:"not null;index:idx_commission_payable,priority:2" json:"available_at"`
	PaidAt        *time.Time      `json:"paid_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Commission) TableName() string {
	return "commissions"
}

// PayableAt reports whether the commission may be paid at t.
func (c *Commission) PayableAt(t time.Time) bool {
	return !c.Paid && !c.AvailableAt.After(t)
}
