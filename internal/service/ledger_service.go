package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/logging"
	"rafflehub/internal/metrics"
	"rafflehub/internal/models"
	"rafflehub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Posting describes one economic event to record in a user's ledger.
type Posting struct {
	UserID        uint
	Amount        decimal.Decimal
	CorrelationID string
	Origin        string
	Description   string
}

func (p Posting) validate() error {
	if p.UserID == 0 {
		return fmt.Errorf("%w: missing user", ErrInvalidPosting)
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPosting)
	}
	if p.CorrelationID == "" {
		return fmt.Errorf("%w: missing correlation id", ErrInvalidPosting)
	}
	if !domain.IsValidOrigin(p.Origin) {
		return fmt.Errorf("%w: unknown origin %q", ErrInvalidPosting, p.Origin)
	}
	return nil
}

type WalletSnapshot struct {
	UserID      uint            `json:"user_id"`
	Balance     decimal.Decimal `json:"balance"`
	Blocked     decimal.Decimal `json:"blocked"`
	Available   decimal.Decimal `json:"available"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
}

func snapshotOf(w *models.Wallet) WalletSnapshot {
	return WalletSnapshot{
		UserID:      w.UserID,
		Balance:     w.Balance,
		Blocked:     w.Blocked,
		Available:   w.Available(),
		Withdrawals: w.Withdrawals,
	}
}

// WalletNotifier is told about wallet changes after they are committed.
type WalletNotifier interface {
	WalletChanged(userID uint, wallet WalletSnapshot)
}

// CreditResult reports the plan credit released by an approved order.
type CreditResult struct {
	StatementUUID  string          `json:"statement_uuid"`
	Amount         decimal.Decimal `json:"amount"`
	TicketsGranted int             `json:"tickets_granted"`
	TicketLevel    int             `json:"ticket_level"`
}

// Reconciliation compares a wallet balance with its completed statements.
type Reconciliation struct {
	UserID        uint            `json:"user_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Drift         decimal.Decimal `json:"drift"`
	Consistent    bool            `json:"consistent"`
}

// LedgerService owns every write to financial statements and wallets. Other
// services post through it inside their own transactions.
type LedgerService struct {
	db         *gorm.DB
	statements *repository.StatementRepository
	wallets    *repository.WalletRepository
	orders     *repository.OrderRepository
	allowances *repository.AllowanceRepository
	notifier   WalletNotifier
	logger     *zap.Logger
}

func NewLedgerService(
	db *gorm.DB,
	statements *repository.StatementRepository,
	wallets *repository.WalletRepository,
	orders *repository.OrderRepository,
	allowances *repository.AllowanceRepository,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		db:         db,
		statements: statements,
		wallets:    wallets,
		orders:     orders,
		allowances: allowances,
		logger:     logging.OrNop(logger).Named("ledger"),
	}
}

// SetNotifier wires the realtime wallet feed. A nil notifier disables it.
func (s *LedgerService) SetNotifier(n WalletNotifier) {
	s.notifier = n
}

// PostCredit records a completed credit and raises the wallet balance.
func (s *LedgerService) PostCredit(ctx context.Context, p Posting) (*models.FinancialStatement, error) {
	return s.postAndNotify(ctx, domain.StatementTypeCredit, p)
}

// PostDebit records a completed debit and lowers the wallet balance. The
// debit must fit in the available funds.
func (s *LedgerService) PostDebit(ctx context.Context, p Posting) (*models.FinancialStatement, error) {
	return s.postAndNotify(ctx, domain.StatementTypeDebit, p)
}

func (s *LedgerService) postAndNotify(ctx context.Context, stType string, p Posting) (*models.FinancialStatement, error) {
	var st *models.FinancialStatement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = s.post(ctx, tx, stType, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, p.UserID)
	return st, nil
}

// post writes a completed statement and applies it to the wallet using tx.
func (s *LedgerService) post(ctx context.Context, tx *gorm.DB, stType string, p Posting) (*models.FinancialStatement, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	st := &models.FinancialStatement{
		UUID:          uuid.NewString(),
		UserID:        p.UserID,
		CorrelationID: p.CorrelationID,
		Type:          stType,
		Origin:        p.Origin,
		Amount:        p.Amount,
		Status:        domain.StatementStatusCompleted,
		Description:   p.Description,
	}
	if err := s.statements.WithTx(tx).Create(ctx, st); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.LedgerPostings.WithLabelValues(stType, p.Origin, "duplicate").Inc()
			return nil, ErrDuplicateStatement
		}
		return nil, fmt.Errorf("create statement: %w", err)
	}

	wallets := s.wallets.WithTx(tx)
	var err error
	if stType == domain.StatementTypeCredit {
		err = wallets.Credit(ctx, p.UserID, p.Amount)
	} else {
		err = wallets.Debit(ctx, p.UserID, p.Amount)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			return nil, ErrInsufficientBalance
		case repository.IsNotFound(err):
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("apply %s to wallet: %w", stType, err)
	}
	metrics.LedgerPostings.WithLabelValues(stType, p.Origin, st.Status).Inc()
	return st, nil
}

// registerPending records a pending credit that does not touch the wallet
// until it is released.
func (s *LedgerService) registerPending(ctx context.Context, tx *gorm.DB, stType string, p Posting) (*models.FinancialStatement, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	st := &models.FinancialStatement{
		UUID:          uuid.NewString(),
		UserID:        p.UserID,
		CorrelationID: p.CorrelationID,
		Type:          stType,
		Origin:        p.Origin,
		Amount:        p.Amount,
		Status:        domain.StatementStatusPending,
		Description:   p.Description,
	}
	if err := s.statements.WithTx(tx).Create(ctx, st); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateStatement
		}
		return nil, fmt.Errorf("create pending statement: %w", err)
	}
	metrics.LedgerPostings.WithLabelValues(stType, p.Origin, st.Status).Inc()
	return st, nil
}

// RegisterPendingCredit records a credit that is held back until its
// originating event is approved.
func (s *LedgerService) RegisterPendingCredit(ctx context.Context, p Posting) (*models.FinancialStatement, error) {
	var st *models.FinancialStatement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = s.registerPending(ctx, tx, domain.StatementTypeCredit, p)
		return err
	})
	return st, err
}

// failPending moves the pending statement of an event to failed. A missing
// or already settled statement is reported as false.
func (s *LedgerService) failPending(ctx context.Context, tx *gorm.DB, userID uint, correlationID, stType, origin string) (bool, error) {
	statements := s.statements.WithTx(tx)
	st, err := statements.LockByNaturalKey(ctx, userID, correlationID, stType, origin)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if st.Status != domain.StatementStatusPending {
		return false, nil
	}
	return statements.TransitionStatus(ctx, st.ID, domain.StatementStatusPending, domain.StatementStatusFailed)
}

// CreditFromApprovedOrder releases the pending plan credit of an approved
// order into the buyer's wallet and grants the plan's raffle tickets. Running
// it twice for one order yields ErrNothingToCredit the second time.
func (s *LedgerService) CreditFromApprovedOrder(ctx context.Context, orderID uint) (*CreditResult, error) {
	var (
		result *CreditResult
		userID uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).GetByID(ctx, orderID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != domain.OrderStatusApproved {
			return ErrOrderNotApproved
		}
		userID = order.UserID

		statements := s.statements.WithTx(tx)
		st, err := statements.LockByNaturalKey(ctx, order.UserID, order.UUID, domain.StatementTypeCredit, domain.OriginPlan)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNothingToCredit
			}
			return err
		}
		if st.Status != domain.StatementStatusPending {
			return ErrNothingToCredit
		}
		moved, err := statements.TransitionStatus(ctx, st.ID, domain.StatementStatusPending, domain.StatementStatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			return ErrNothingToCredit
		}
		if err := s.wallets.WithTx(tx).Credit(ctx, order.UserID, st.Amount); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}

		plan := order.PlanMetadata
		if err := s.allowances.WithTx(tx).Grant(ctx, order.UserID, plan.TicketLevel, plan.GrantTickets); err != nil {
			return fmt.Errorf("grant tickets: %w", err)
		}
		metrics.LedgerPostings.WithLabelValues(st.Type, st.Origin, domain.StatementStatusCompleted).Inc()
		result = &CreditResult{
			StatementUUID:  st.UUID,
			Amount:         st.Amount,
			TicketsGranted: plan.GrantTickets,
			TicketLevel:    plan.TicketLevel,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("plan credit released",
		zap.Uint("order_id", orderID),
		zap.Uint("user_id", userID),
		zap.String("amount", result.Amount.StringFixed(2)),
		zap.Int("tickets_granted", result.TicketsGranted))
	s.notify(ctx, userID)
	return result, nil
}

// GetBalance returns the user's wallet, opening an empty one on first use.
func (s *LedgerService) GetBalance(ctx context.Context, userID uint) (*WalletSnapshot, error) {
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap := snapshotOf(w)
	return &snap, nil
}

func (s *LedgerService) ListStatements(ctx context.Context, userID uint, f repository.StatementFilter) ([]models.FinancialStatement, int64, error) {
	return s.statements.List(ctx, userID, f)
}

func (s *LedgerService) Allowances(ctx context.Context, userID uint) ([]models.TicketAllowance, error) {
	return s.allowances.ListByUser(ctx, userID)
}

// Reconcile compares the stored wallet balance with the sum of completed
// statements. A user without a wallet reconciles against zero.
func (s *LedgerService) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	walletBalance := decimal.Zero
	w, err := s.wallets.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		walletBalance = w.Balance
	case !repository.IsNotFound(err):
		return nil, err
	}
	ledgerBalance, err := s.statements.CompletedBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	drift := walletBalance.Sub(ledgerBalance)
	rec := &Reconciliation{
		UserID:        userID,
		WalletBalance: walletBalance,
		LedgerBalance: ledgerBalance,
		Drift:         drift,
		Consistent:    drift.IsZero(),
	}
	if !rec.Consistent {
		s.logger.Warn("wallet drift detected",
			zap.Uint("user_id", userID),
			zap.String("wallet_balance", walletBalance.StringFixed(2)),
			zap.String("ledger_balance", ledgerBalance.StringFixed(2)))
	}
	return rec, nil
}

// ReconcileAll reconciles every user that has ledger activity and returns
// only the inconsistent ones.
func (s *LedgerService) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	ids, err := s.statements.UserIDs(ctx)
	if err != nil {
		return nil, err
	}
	drifted := make([]Reconciliation, 0)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return drifted, err
		}
		rec, err := s.Reconcile(ctx, id)
		if err != nil {
			return drifted, fmt.Errorf("reconcile user %d: %w", id, err)
		}
		if !rec.Consistent {
			drifted = append(drifted, *rec)
		}
	}
	return drifted, nil
}

func (s *LedgerService) notify(ctx context.Context, userID uint) {
	if s.notifier == nil {
		return
	}
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Debug("skip wallet notification", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	s.notifier.WalletChanged(userID, snapshotOf(w))
}

// nextMonthStart is the default commission availability policy: the first
// instant of the calendar month after t, in UTC.
func nextMonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
