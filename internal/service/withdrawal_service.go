package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/logging"
	"rafflehub/internal/models"
	"rafflehub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WithdrawalService holds requested withdrawals in Wallet.Blocked until an
// operator settles them.
type WithdrawalService struct {
	db          *gorm.DB
	withdrawals *repository.WithdrawalRepository
	wallets     *repository.WalletRepository
	statements  *repository.StatementRepository
	ledger      *LedgerService
	now         func() time.Time
	logger      *zap.Logger
}

func NewWithdrawalService(
	db *gorm.DB,
	withdrawals *repository.WithdrawalRepository,
	wallets *repository.WalletRepository,
	statements *repository.StatementRepository,
	ledger *LedgerService,
	logger *zap.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		db:          db,
		withdrawals: withdrawals,
		wallets:     wallets,
		statements:  statements,
		ledger:      ledger,
		now:         time.Now,
		logger:      logging.OrNop(logger).Named("withdrawal"),
	}
}

func (s *WithdrawalService) Request(ctx context.Context, userID uint, amount decimal.Decimal) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(2)
	w := &models.Withdrawal{
		UUID:   uuid.NewString(),
		UserID: userID,
		Amount: amount,
		Status: domain.WithdrawalStatusPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := s.wallets.WithTx(tx)
		if _, err := wallets.LockByUserID(ctx, userID); err != nil {
			if repository.IsNotFound(err) {
				return ErrWalletNotFound
			}
			return err
		}
		if err := s.withdrawals.WithTx(tx).Create(ctx, w); err != nil {
			return err
		}
		if _, err := s.ledger.registerPending(ctx, tx, domain.StatementTypeDebit, Posting{
			UserID:        userID,
			Amount:        amount,
			CorrelationID: w.UUID,
			Origin:        domain.OriginUser,
			Description:   "withdrawal request",
		}); err != nil {
			return err
		}
		if err := wallets.Block(ctx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("withdrawal requested", zap.String("uuid", w.UUID), zap.Uint("user_id", userID), zap.String("amount", amount.StringFixed(2)))
	s.ledger.notify(ctx, userID)
	return w, nil
}

// Complete settles a pending withdrawal: the blocked funds leave the wallet
// and the pending debit is completed. Completing twice is a no-op.
func (s *WithdrawalService) Complete(ctx context.Context, withdrawalUUID string) (*models.Withdrawal, error) {
	return s.settle(ctx, withdrawalUUID, domain.WithdrawalStatusCompleted)
}

// Fail releases the blocked funds of a pending withdrawal.
func (s *WithdrawalService) Fail(ctx context.Context, withdrawalUUID string) (*models.Withdrawal, error) {
	return s.settle(ctx, withdrawalUUID, domain.WithdrawalStatusFailed)
}

func (s *WithdrawalService) settle(ctx context.Context, withdrawalUUID, target string) (*models.Withdrawal, error) {
	var (
		w       *models.Withdrawal
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		withdrawals := s.withdrawals.WithTx(tx)
		var err error
		w, err = withdrawals.LockByUUID(ctx, withdrawalUUID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrWithdrawalNotFound
			}
			return err
		}
		if w.Status == target {
			return nil
		}
		if w.Status != domain.WithdrawalStatusPending {
			return ErrWithdrawalClosed
		}

		statements := s.statements.WithTx(tx)
		st, err := statements.LockByNaturalKey(ctx, w.UserID, w.UUID, domain.StatementTypeDebit, domain.OriginUser)
		if err != nil {
			return fmt.Errorf("load withdrawal statement: %w", err)
		}
		wallets := s.wallets.WithTx(tx)
		statementStatus := domain.StatementStatusFailed
		if target == domain.WithdrawalStatusCompleted {
			statementStatus = domain.StatementStatusCompleted
			err = wallets.SettleWithdrawal(ctx, w.UserID, w.Amount)
		} else {
			err = wallets.Release(ctx, w.UserID, w.Amount)
		}
		if err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		moved, err := statements.TransitionStatus(ctx, st.ID, domain.StatementStatusPending, statementStatus)
		if err != nil {
			return err
		}
		if !moved {
			return ErrWithdrawalClosed
		}

		now := s.now()
		w.Status = target
		if target == domain.WithdrawalStatusCompleted {
			w.CompletedAt = &now
		}
		changed = true
		return withdrawals.Update(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("withdrawal settled", zap.String("uuid", w.UUID), zap.String("status", w.Status))
		s.ledger.notify(ctx, w.UserID)
	}
	return w, nil
}
