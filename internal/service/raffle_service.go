package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
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

const defaultSelectionAttempts = 3

// AllocationResult describes the tickets bound by a raffle application.
type AllocationResult struct {
	ApplicationUUID  string          `json:"application_uuid"`
	TicketNumbers    []string        `json:"ticket_numbers"`
	TicketUUIDs      []string        `json:"ticket_uuids"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Duration         time.Duration   `json:"-"`
	DurationMs       int64           `json:"duration_ms"`
}

type CancelResult struct {
	Cancelled         int `json:"cancelled"`
	AllowanceRestored int `json:"allowance_restored"`
}

// RaffleService allocates tickets from the global pool. A ticket is bound to
// at most one (user, raffle) pair, ever.
type RaffleService struct {
	db          *gorm.DB
	raffles     *repository.RaffleRepository
	tickets     *repository.TicketRepository
	wallets     *repository.WalletRepository
	allowances  *repository.AllowanceRepository
	ledger      *LedgerService
	maxAttempts int
	logger      *zap.Logger
}

func NewRaffleService(
	db *gorm.DB,
	raffles *repository.RaffleRepository,
	tickets *repository.TicketRepository,
	wallets *repository.WalletRepository,
	allowances *repository.AllowanceRepository,
	ledger *LedgerService,
	maxAttempts int,
	logger *zap.Logger,
) *RaffleService {
	if maxAttempts <= 0 {
		maxAttempts = defaultSelectionAttempts
	}
	return &RaffleService{
		db:          db,
		raffles:     raffles,
		tickets:     tickets,
		wallets:     wallets,
		allowances:  allowances,
		ledger:      ledger,
		maxAttempts: maxAttempts,
		logger:      logging.OrNop(logger).Named("raffle"),
	}
}

// Apply buys count tickets in a raffle with wallet funds. Either the debit,
// its statement and every binding are stored, or nothing is.
func (s *RaffleService) Apply(ctx context.Context, userID uint, raffleUUID string, count int) (*AllocationResult, error) {
	started := time.Now()
	if count <= 0 {
		return nil, ErrInvalidTicketCount
	}

	var result *AllocationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		raffles := s.raffles.WithTx(tx)
		raffle, err := s.activeRaffle(ctx, raffles, raffleUUID)
		if err != nil {
			return err
		}

		wallets := s.wallets.WithTx(tx)
		wallet, err := wallets.LockByUserID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrWalletNotFound
			}
			return err
		}
		if count < raffle.MinTicketsRequired {
			return ErrBelowMinimumTickets
		}
		applied, err := raffles.HasApplication(ctx, raffle.ID, userID)
		if err != nil {
			return err
		}
		if applied {
			return ErrAlreadyApplied
		}
		cost := raffle.UnitTicketValue.Mul(decimal.NewFromInt(int64(count)))
		if wallet.Available().LessThan(cost) {
			return ErrInsufficientBalance
		}

		app := &models.RaffleApplication{
			UUID:      uuid.NewString(),
			RaffleID:  raffle.ID,
			UserID:    userID,
			Quantity:  count,
			TotalCost: cost,
			Source:    domain.ApplicationSourceWallet,
		}
		if err := raffles.CreateApplication(ctx, app); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyApplied
			}
			return err
		}

		if cost.IsPositive() {
			if _, err := s.ledger.post(ctx, tx, domain.StatementTypeDebit, Posting{
				UserID:        userID,
				Amount:        cost,
				CorrelationID: raffle.UUID,
				Origin:        domain.OriginRaffle,
				Description:   fmt.Sprintf("%d tickets for raffle %s", count, raffle.Name),
			}); err != nil {
				if errors.Is(err, ErrDuplicateStatement) {
					return ErrAlreadyApplied
				}
				return err
			}
		}

		bound, err := s.bind(ctx, tx, raffle, userID, app.ID, count, domain.RaffleTicketConfirmed)
		if err != nil {
			return err
		}
		after, err := wallets.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		result = allocationOf(app, bound)
		result.TotalCost = cost
		result.RemainingBalance = after.Balance
		return nil
	})
	if err != nil {
		metrics.RaffleAllocations.WithLabelValues(allocationLabel(err)).Inc()
		s.logger.Info("raffle application rejected",
			zap.Uint("user_id", userID),
			zap.String("raffle_uuid", raffleUUID),
			zap.Int("count", count),
			zap.Error(err))
		return nil, err
	}

	result.Duration = time.Since(started)
	result.DurationMs = result.Duration.Milliseconds()
	metrics.RaffleAllocations.WithLabelValues("success").Inc()
	metrics.RaffleAllocationSeconds.Observe(result.Duration.Seconds())
	s.logger.Info("raffle tickets allocated",
		zap.Uint("user_id", userID),
		zap.String("raffle_uuid", raffleUUID),
		zap.Int("count", count),
		zap.String("cost", result.TotalCost.StringFixed(2)),
		zap.Duration("duration", result.Duration))
	if result.TotalCost.IsPositive() {
		s.ledger.notify(ctx, userID)
	}
	return result, nil
}

// Redeem spends plan-granted allowance at the raffle's tier instead of
// wallet funds. Redeemed tickets stay pending until confirmed.
func (s *RaffleService) Redeem(ctx context.Context, userID uint, raffleUUID string, count int) (*AllocationResult, error) {
	started := time.Now()
	if count <= 0 {
		return nil, ErrInvalidTicketCount
	}

	var result *AllocationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		raffles := s.raffles.WithTx(tx)
		raffle, err := s.activeRaffle(ctx, raffles, raffleUUID)
		if err != nil {
			return err
		}
		if count < raffle.MinTicketsRequired {
			return ErrBelowMinimumTickets
		}
		applied, err := raffles.HasApplication(ctx, raffle.ID, userID)
		if err != nil {
			return err
		}
		if applied {
			return ErrAlreadyApplied
		}
		if err := s.allowances.WithTx(tx).Consume(ctx, userID, raffle.TicketLevel, count); err != nil {
			if errors.Is(err, repository.ErrAllowanceExhausted) {
				return ErrInsufficientAllowance
			}
			return err
		}

		app := &models.RaffleApplication{
			UUID:      uuid.NewString(),
			RaffleID:  raffle.ID,
			UserID:    userID,
			Quantity:  count,
			TotalCost: decimal.Zero,
			Source:    domain.ApplicationSourceAllowance,
		}
		if err := raffles.CreateApplication(ctx, app); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyApplied
			}
			return err
		}
		bound, err := s.bind(ctx, tx, raffle, userID, app.ID, count, domain.RaffleTicketPending)
		if err != nil {
			return err
		}
		result = allocationOf(app, bound)
		result.TotalCost = decimal.Zero
		result.RemainingBalance = decimal.Zero
		if w, err := s.wallets.WithTx(tx).GetByUserID(ctx, userID); err == nil {
			result.RemainingBalance = w.Balance
		}
		return nil
	})
	if err != nil {
		metrics.RaffleAllocations.WithLabelValues(allocationLabel(err)).Inc()
		return nil, err
	}
	result.Duration = time.Since(started)
	result.DurationMs = result.Duration.Milliseconds()
	metrics.RaffleAllocations.WithLabelValues("success").Inc()
	metrics.RaffleAllocationSeconds.Observe(result.Duration.Seconds())
	s.logger.Info("raffle tickets redeemed",
		zap.Uint("user_id", userID),
		zap.String("raffle_uuid", raffleUUID),
		zap.Int("count", count))
	return result, nil
}

func (s *RaffleService) activeRaffle(ctx context.Context, raffles *repository.RaffleRepository, raffleUUID string) (*models.Raffle, error) {
	raffle, err := raffles.GetByUUID(ctx, raffleUUID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRaffleNotFound
		}
		return nil, err
	}
	if raffle.Status != domain.RaffleStatusActive {
		return nil, ErrRaffleInactive
	}
	return raffle, nil
}

// bind claims count unbound tickets from a random point of the pool and
// binds them in a savepoint. When a concurrent allocator wins one of the
// tickets the savepoint is rolled back and a fresh selection is made.
func (s *RaffleService) bind(ctx context.Context, tx *gorm.DB, raffle *models.Raffle, userID, applicationID uint, count int, status string) ([]models.RaffleTicket, error) {
	tickets := s.tickets.WithTx(tx)
	lo, hi, err := tickets.IDRange(ctx)
	if err != nil {
		return nil, err
	}
	if hi == 0 {
		return nil, ErrInsufficientTickets
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		pivot := lo + uint(rand.Int63n(int64(hi-lo)+1))
		claimed, err := tickets.ClaimUnbound(ctx, count, pivot)
		if err != nil {
			return nil, err
		}
		if len(claimed) < count {
			return nil, ErrInsufficientTickets
		}

		bindings := make([]models.RaffleTicket, len(claimed))
		for i, t := range claimed {
			bindings[i] = models.RaffleTicket{
				UUID:          uuid.NewString(),
				RaffleID:      raffle.ID,
				UserID:        userID,
				TicketID:      t.ID,
				ApplicationID: applicationID,
				Status:        status,
				Ticket:        t,
			}
		}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.raffles.WithTx(sp).CreateBindings(ctx, bindings)
		})
		if err == nil {
			return bindings, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		metrics.TicketBindConflicts.Inc()
		s.logger.Debug("ticket selection collided", zap.Int("attempt", attempt), zap.Uint("raffle_id", raffle.ID))
	}
	return nil, ErrInsufficientTickets
}

// Confirm moves pending raffle tickets to confirmed. Every ticket must exist
// and be pending, otherwise nothing changes.
func (s *RaffleService) Confirm(ctx context.Context, ticketUUIDs []string) (int, error) {
	uuids := dedupe(ticketUUIDs)
	if len(uuids) == 0 {
		return 0, ErrRaffleTicketNotFound
	}
	var confirmed int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		raffles := s.raffles.WithTx(tx)
		bindings, err := raffles.LockBindings(ctx, uuids)
		if err != nil {
			return err
		}
		if len(bindings) != len(uuids) {
			return ErrRaffleTicketNotFound
		}
		ids := make([]uint, len(bindings))
		for i, b := range bindings {
			if b.Status != domain.RaffleTicketPending {
				return ErrNotPending
			}
			ids[i] = b.ID
		}
		n, err := raffles.SetBindingStatus(ctx, ids, domain.RaffleTicketPending, domain.RaffleTicketConfirmed)
		if err != nil {
			return err
		}
		if int(n) != len(ids) {
			return ErrNotPending
		}
		confirmed = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("raffle tickets confirmed", zap.Int("count", confirmed))
	return confirmed, nil
}

// Cancel withdraws pending raffle tickets owned by userID and gives the
// allowance back. The pool tickets themselves stay consumed.
func (s *RaffleService) Cancel(ctx context.Context, userID uint, ticketUUIDs []string) (*CancelResult, error) {
	uuids := dedupe(ticketUUIDs)
	if len(uuids) == 0 {
		return nil, ErrRaffleTicketNotFound
	}
	result := &CancelResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		raffles := s.raffles.WithTx(tx)
		bindings, err := raffles.LockBindings(ctx, uuids)
		if err != nil {
			return err
		}
		if len(bindings) != len(uuids) {
			return ErrRaffleTicketNotFound
		}
		ids := make([]uint, 0, len(bindings))
		perRaffle := make(map[uint]int)
		for _, b := range bindings {
			if b.UserID != userID {
				return ErrRaffleTicketNotFound
			}
			if b.Status != domain.RaffleTicketPending {
				return ErrNotCancellable
			}
			ids = append(ids, b.ID)
			perRaffle[b.RaffleID]++
		}

		n, err := raffles.SetBindingStatus(ctx, ids, domain.RaffleTicketPending, domain.RaffleTicketCancelled)
		if err != nil {
			return err
		}
		if int(n) != len(ids) {
			return ErrNotCancellable
		}
		if err := raffles.SoftDeleteBindings(ctx, ids); err != nil {
			return err
		}

		allowances := s.allowances.WithTx(tx)
		for raffleID, count := range perRaffle {
			raffle, err := raffles.GetByID(ctx, raffleID)
			if err != nil {
				return err
			}
			if err := allowances.Restore(ctx, userID, raffle.TicketLevel, count); err != nil {
				return fmt.Errorf("restore allowance at tier %d: %w", raffle.TicketLevel, err)
			}
			result.AllowanceRestored += count
		}
		result.Cancelled = len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("raffle tickets cancelled", zap.Uint("user_id", userID), zap.Int("count", result.Cancelled))
	return result, nil
}

func (s *RaffleService) PoolStats(ctx context.Context) (repository.PoolStats, error) {
	return s.tickets.Stats(ctx)
}

func (s *RaffleService) ListTickets(ctx context.Context, userID uint, raffleUUID string) ([]models.RaffleTicket, error) {
	raffle, err := s.raffles.GetByUUID(ctx, raffleUUID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRaffleNotFound
		}
		return nil, err
	}
	return s.raffles.ListBindings(ctx, raffle.ID, userID)
}

func allocationOf(app *models.RaffleApplication, bound []models.RaffleTicket) *AllocationResult {
	r := &AllocationResult{
		ApplicationUUID: app.UUID,
		TicketNumbers:   make([]string, len(bound)),
		TicketUUIDs:     make([]string, len(bound)),
	}
	for i, b := range bound {
		r.TicketNumbers[i] = b.Ticket.Number
		r.TicketUUIDs[i] = b.UUID
	}
	return r
}

func allocationLabel(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientTickets):
		return "pool_exhausted"
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrInsufficientAllowance):
		return "insufficient_funds"
	case errors.Is(err, ErrAlreadyApplied):
		return "already_applied"
	default:
		return "rejected"
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
