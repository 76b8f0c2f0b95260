package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/logging"
	"rafflehub/internal/metrics"
	"rafflehub/internal/repository"
	"rafflehub/pkg/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errConcurrentPayout = errors.New("commission paid by a concurrent run")

// PayoutOutcome is the result of paying a single commission.
type PayoutOutcome struct {
	CommissionUUID string          `json:"commission_uuid"`
	BeneficiaryID  uint            `json:"beneficiary_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
}

type PayoutError struct {
	CommissionUUID string `json:"commission_uuid"`
	UserID         uint   `json:"user_id"`
	Error          string `json:"error"`
}

// PayoutResult aggregates a payout batch. A failing commission is recorded
// here and does not stop the batch.
type PayoutResult struct {
	Paid           int             `json:"paid"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	UsersProcessed int             `json:"users_processed"`
	Errors         []PayoutError   `json:"errors"`
}

func newPayoutResult() *PayoutResult {
	return &PayoutResult{TotalAmount: decimal.Zero, Errors: []PayoutError{}}
}

// PayoutService credits available commissions to their beneficiaries'
// wallets. Every commission is paid in its own transaction.
type PayoutService struct {
	db          *gorm.DB
	commissions *repository.CommissionRepository
	ledger      *LedgerService
	disburser   payment.Disburser
	now         func() time.Time
	logger      *zap.Logger
}

func NewPayoutService(
	db *gorm.DB,
	commissions *repository.CommissionRepository,
	ledger *LedgerService,
	disburser payment.Disburser,
	logger *zap.Logger,
) *PayoutService {
	if disburser == nil {
		disburser = payment.LedgerDisburser{}
	}
	return &PayoutService{
		db:          db,
		commissions: commissions,
		ledger:      ledger,
		disburser:   disburser,
		now:         time.Now,
		logger:      logging.OrNop(logger).Named("payout"),
	}
}

// PayUser pays every available commission of one beneficiary.
func (s *PayoutService) PayUser(ctx context.Context, userID uint) (*PayoutResult, error) {
	result := newPayoutResult()
	if err := s.payBeneficiary(ctx, userID, result); err != nil {
		return result, err
	}
	s.logResult("user payout finished", result, zap.Uint("user_id", userID))
	return result, nil
}

// PayAll pays every available commission in the system, one beneficiary at
// a time. Cancelling ctx stops the batch between commissions.
func (s *PayoutService) PayAll(ctx context.Context) (*PayoutResult, error) {
	result := newPayoutResult()
	users, err := s.commissions.PayableBeneficiaries(ctx, s.now())
	if err != nil {
		return result, fmt.Errorf("list payable beneficiaries: %w", err)
	}
	for _, userID := range users {
		if err := s.payBeneficiary(ctx, userID, result); err != nil {
			s.logResult("payout batch interrupted", result, zap.Error(err))
			return result, err
		}
	}
	s.logResult("payout batch finished", result)
	return result, nil
}

func (s *PayoutService) payBeneficiary(ctx context.Context, userID uint, result *PayoutResult) error {
	ids, err := s.commissions.PayableIDs(ctx, userID, s.now())
	if err != nil {
		return fmt.Errorf("list payable commissions of user %d: %w", userID, err)
	}
	result.UsersProcessed++
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := s.payOne(ctx, id)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, PayoutError{CommissionUUID: out.CommissionUUID, UserID: userID, Error: err.Error()})
			s.logger.Error("commission payout failed", zap.Uint("commission_id", id), zap.Uint("user_id", userID), zap.Error(err))
		case out.Status == domain.PayoutPaid:
			result.Paid++
			result.TotalAmount = result.TotalAmount.Add(out.Amount)
		default:
			result.Skipped++
		}
	}
	return nil
}

// PayCommission pays a single commission by uuid. An already paid, voided or
// not yet available commission is reported through the outcome, not as an
// error.
func (s *PayoutService) PayCommission(ctx context.Context, commissionUUID string) (*PayoutOutcome, error) {
	c, err := s.commissions.GetByUUID(ctx, commissionUUID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrCommissionNotFound
		}
		return nil, err
	}
	out, err := s.payOne(ctx, c.ID)
	if err != nil {
		return &out, err
	}
	return &out, nil
}

func (s *PayoutService) payOne(ctx context.Context, commissionID uint) (PayoutOutcome, error) {
	var out PayoutOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commissions := s.commissions.WithTx(tx)
		c, err := commissions.LockByID(ctx, commissionID)
		if err != nil {
			return err
		}
		out = PayoutOutcome{CommissionUUID: c.UUID, BeneficiaryID: c.BeneficiaryID, Amount: c.Amount}
		if c.Paid {
			out.Status = domain.PayoutAlreadyPaid
			return nil
		}
		if !c.Amount.IsPositive() {
			out.Status = domain.PayoutVoid
			return nil
		}
		now := s.now()
		if c.AvailableAt.After(now) {
			out.Status = domain.PayoutNotAvailable
			return nil
		}

		if _, err := s.ledger.post(ctx, tx, domain.StatementTypeCredit, Posting{
			UserID:        c.BeneficiaryID,
			Amount:        c.Amount,
			CorrelationID: c.UUID,
			Origin:        domain.OriginCommission,
			Description:   fmt.Sprintf("level %d commission for order %d", c.Level, c.OrderID),
		}); err != nil {
			return err
		}
		marked, err := commissions.MarkPaid(ctx, c.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return errConcurrentPayout
		}
		// A rejected transfer rolls back the credit and the paid flag.
		if _, err := s.disburser.Disburse(ctx, payment.DisbursementRequest{
			UserID:    c.BeneficiaryID,
			Amount:    c.Amount,
			Reference: c.UUID,
			Reason:    "commission",
		}); err != nil {
			return fmt.Errorf("disburse: %w", err)
		}
		out.Status = domain.PayoutPaid
		return nil
	})
	if err != nil {
		out.Status = domain.PayoutFailed
		metrics.CommissionPayouts.WithLabelValues(out.Status).Inc()
		return out, err
	}
	metrics.CommissionPayouts.WithLabelValues(out.Status).Inc()
	if out.Status == domain.PayoutPaid {
		s.ledger.notify(ctx, out.BeneficiaryID)
	}
	return out, nil
}

func (s *PayoutService) logResult(msg string, r *PayoutResult, fields ...zap.Field) {
	s.logger.Info(msg, append(fields,
		zap.Int("paid", r.Paid),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
		zap.Int("users", r.UsersProcessed),
		zap.String("total", r.TotalAmount.StringFixed(2)))...)
}
