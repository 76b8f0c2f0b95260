package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DisbursementRequest describes funds leaving the platform's payout account
// for a user. Reference is stable across retries of the same payout.
type DisbursementRequest struct {
	UserID    uint
	Amount    decimal.Decimal
	Reference string
	Reason    string
}

type DisbursementResponse struct {
	Reference   string
	Status      string
	ProcessedAt time.Time
}

// Disburser performs the money side effect of a commission payout. It runs
// inside the payout transaction, so an error rolls the payout back.
type Disburser interface {
	Disburse(ctx context.Context, req DisbursementRequest) (*DisbursementResponse, error)
}
