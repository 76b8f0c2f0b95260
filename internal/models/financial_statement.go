package models

import (
	"time"

	"rafflehub/internal/domain"

	"github.com/shopspring/decimal"
)

// FinancialStatement is an append-only ledger row. Amount is always positive;
// Type carries the sign. The (user, correlation, type, origin) tuple is the
// natural key of the economic event.
type FinancialStatement struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	UUID          string          `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	UserID        uint            `gorm:"not null;uniqueIndex:idx_statement_natural_key,priority:1;index" json:"user_id"`
	CorrelationID string          `gorm:"size:64;not null;uniqueIndex:idx_statement_natural_key,priority:2" json:"correlation_id"`
	Type          string          `gorm:"size:10;not null;uniqueIndex:idx_statement_natural_key,priority:3" json:"type"`
	Origin        string          `gorm:"size:20;not null;uniqueIndex:idx_statement_natural_key,priority:4;index" json:"origin"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status        string          `gorm:"size:20;not null;index" json:"status"`
	Description   string          `gorm:"size:255" json:"description,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (FinancialStatement) TableName() string {
	return "financial_statements"
}

// Signed returns the amount as it affects the balance.
func (s *FinancialStatement) Signed() decimal.Decimal {
	if s.Type == domain.StatementTypeDebit {
		return s.Amount.Neg()
	}
	return s.Amount
}
