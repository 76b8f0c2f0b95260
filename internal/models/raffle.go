package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Raffle is maintained by the raffle admin; the allocator only reads it.
type Raffle struct {
	ID                 uint            `gorm:"primaryKey" json:"-"`
	UUID               string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	Name               string          `gorm:"size:120;not null" json:"name"`
	Status             string          `gorm:"size:20;not null;index" json:"status"`
	UnitTicketValue    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_ticket_value"`
	MinTicketsRequired int             `gorm:"not null;default:1" json:"min_tickets_required"`
	TicketLevel        int             `gorm:"not null;default:0" json:"ticket_level"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (Raffle) TableName() string { return "raffles" }

// Ticket belongs to the global pre-generated pool shared by every raffle.
type Ticket struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Number    string    `gorm:"size:32;uniqueIndex;not null" json:"number"`
	CreatedAt time.Time `json:"created_at"`
}

func (Ticket) TableName() string { return "tickets" }

// RaffleTicket binds one pool ticket to a (user, raffle) pair. The unique
// index on TicketID also covers soft-deleted rows, so a ticket is consumed
// at most once.
type RaffleTicket struct {
	ID            uint           `gorm:"primaryKey" json:"-"`
	UUID          string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	RaffleID      uint           `gorm:"not null;index:idx_raffle_ticket_owner,priority:1" json:"raffle_id"`
	UserID        uint           `gorm:"not null;index:idx_raffle_ticket_owner,priority:2" json:"user_id"`
	TicketID      uint           `gorm:"not null;uniqueIndex" json:"ticket_id"`
	ApplicationID uint           `gorm:"not null;index" json:"application_id"`
	Status        string         `gorm:"size:20;not null;index" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Ticket Ticket `gorm:"foreignKey:TicketID" json:"ticket"`
}

func (RaffleTicket) TableName() string { return "raffle_tickets" }

// RaffleApplication records the single application a user may make to a raffle.
type RaffleApplication struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	UUID      string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	RaffleID  uint            `gorm:"not null;uniqueIndex:idx_raffle_application_user,priority:1" json:"raffle_id"`
	UserID    uint            `gorm:"not null;uniqueIndex:idx_raffle_application_user,priority:2" json:"user_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	TotalCost decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_cost"`
	Source    string          `gorm:"size:20;not null" json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

func (RaffleApplication) TableName() string { return "raffle_applications" }

// TicketAllowance is the bounded number of plan-granted tickets a user may
// still redeem at a tier.
type TicketAllowance struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_ticket_allowance_tier,priority:1" json:"user_id"`
	Tier      int       `gorm:"not null;uniqueIndex:idx_ticket_allowance_tier,priority:2" json:"tier"`
	Granted   int       `gorm:"not null;default:0" json:"granted"`
	Consumed  int       `gorm:"not null;default:0" json:"consumed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TicketAllowance) TableName() string { return "ticket_allowances" }

func (a *TicketAllowance) Remaining() int { return a.Granted - a.Consumed }
