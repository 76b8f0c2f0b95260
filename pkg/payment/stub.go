package payment

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidDisbursement = errors.New("invalid disbursement request")

// LedgerDisburser settles payouts into the internal wallet only; no external
// gateway is involved, so committing the transaction is the payment.
type LedgerDisburser struct{}

func (LedgerDisburser) Disburse(ctx context.Context, req DisbursementRequest) (*DisbursementResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Reference == "" || !req.Amount.IsPositive() {
		return nil, ErrInvalidDisbursement
	}
	return &DisbursementResponse{
		Reference:   "ledger_" + req.Reference,
		Status:      "COMPLETED",
		ProcessedAt: time.Now(),
	}, nil
}
