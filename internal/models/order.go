package models

import (
	"time"

	"rafflehub/internal/domain"

	"github.com/shopspring/decimal"
)

// PlanSnapshot freezes the plan terms at purchase time. Commission levels are
// percentages of Price.
type PlanSnapshot struct {
	Price            decimal.Decimal `json:"price"`
	CommissionLevel1 decimal.Decimal `json:"commission_level_1"`
	CommissionLevel2 decimal.Decimal `json:"commission_level_2"`
	CommissionLevel3 decimal.Decimal `json:"commission_level_3"`
	GrantTickets     int             `json:"grant_tickets" validate:"gte=0"`
	TicketLevel      int             `json:"ticket_level" validate:"gte=0"`
}

// Rate returns the commission percentage for a sponsor level; levels the plan
// does not define pay nothing.
func (p PlanSnapshot) Rate(level int) decimal.Decimal {
	switch level {
	case 1:
		return p.CommissionLevel1
	case 2:
		return p.CommissionLevel2
	case 3:
		return p.CommissionLevel3
	default:
		return decimal.Zero
	}
}

type Order struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UUID         string       `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	UserID       uint         `gorm:"not null;index" json:"user_id"`
	Status       string       `gorm:"size:20;not null;index" json:"status"`
	PlanMetadata PlanSnapshot `gorm:"type:text;serializer:json" json:"plan_metadata"`
	ApprovedAt   *time.Time   `json:"approved_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) IsTerminal() bool {
	return o.Status != domain.OrderStatusPending
}
