package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"rafflehub/internal/database/dbtest"
	"rafflehub/internal/domain"
	"rafflehub/internal/models"
	"rafflehub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixedNow sits mid-month so next-month availability is unambiguous.
var fixedNow = time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB

	users       *repository.UserRepository
	wallets     *repository.WalletRepository
	statements  *repository.StatementRepository
	orders      *repository.OrderRepository
	commissions *repository.CommissionRepository
	raffles     *repository.RaffleRepository
	tickets     *repository.TicketRepository
	allowances  *repository.AllowanceRepository
	withdrawals *repository.WithdrawalRepository

	resolver    *UplineResolver
	ledger      *LedgerService
	calculator  *CommissionService
	payouts     *PayoutService
	raffle      *RaffleService
	orderSvc    *OrderService
	withdrawSvc *WithdrawalService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	f := &fixture{
		t:           t,
		ctx:         context.Background(),
		db:          db,
		users:       repository.NewUserRepository(db),
		wallets:     repository.NewWalletRepository(db),
		statements:  repository.NewStatementRepository(db),
		orders:      repository.NewOrderRepository(db),
		commissions: repository.NewCommissionRepository(db),
		raffles:     repository.NewRaffleRepository(db),
		tickets:     repository.NewTicketRepository(db),
		allowances:  repository.NewAllowanceRepository(db),
		withdrawals: repository.NewWithdrawalRepository(db),
	}
	f.resolver = NewUplineResolver(f.users, nil)
	f.ledger = NewLedgerService(db, f.statements, f.wallets, f.orders, f.allowances, nil)
	f.calculator = NewCommissionService(db, f.orders, f.commissions, f.resolver, 3, nil)
	f.calculator.now = func() time.Time { return fixedNow }
	f.payouts = NewPayoutService(db, f.commissions, f.ledger, nil, nil)
	f.payouts.now = func() time.Time { return fixedNow }
	f.raffle = NewRaffleService(db, f.raffles, f.tickets, f.wallets, f.allowances, f.ledger, 3, nil)
	f.orderSvc = NewOrderService(db, f.orders, f.users, f.ledger, f.calculator, nil)
	f.orderSvc.now = func() time.Time { return fixedNow }
	f.withdrawSvc = NewWithdrawalService(db, f.withdrawals, f.wallets, f.statements, f.ledger, nil)
	f.withdrawSvc.now = func() time.Time { return fixedNow }
	return f
}

// user creates a user sponsored by sponsor (nil for a root).
func (f *fixture) user(name string, sponsor *models.User) *models.User {
	f.t.Helper()
	u := &models.User{UUID: uuid.NewString(), Username: name, Role: domain.RoleUser}
	if sponsor != nil {
		id := sponsor.ID
		u.SponsorID = &id
	}
	require.NoError(f.t, f.users.Create(f.ctx, u))
	return u
}

// chain builds root <- u1 <- u2 ... and returns them root first.
func (f *fixture) chain(n int) []*models.User {
	f.t.Helper()
	out := make([]*models.User, 0, n)
	var prev *models.User
	for i := 0; i < n; i++ {
		u := f.user(fmt.Sprintf("member%d", i), prev)
		out = append(out, u)
		prev = u
	}
	return out
}

// fund gives the user a completed system credit so wallet and ledger agree.
func (f *fixture) fund(u *models.User, amount string) {
	f.t.Helper()
	_, err := f.ledger.PostCredit(f.ctx, Posting{
		UserID:        u.ID,
		Amount:        dec(amount),
		CorrelationID: "seed-" + uuid.NewString(),
		Origin:        domain.OriginSystem,
		Description:   "test funding",
	})
	require.NoError(f.t, err)
}

func (f *fixture) approvedOrder(buyer *models.User, plan models.PlanSnapshot) *models.Order {
	f.t.Helper()
	now := fixedNow
	o := &models.Order{
		UUID:         uuid.NewString(),
		UserID:       buyer.ID,
		Status:       domain.OrderStatusApproved,
		PlanMetadata: plan,
		ApprovedAt:   &now,
	}
	require.NoError(f.t, f.orders.Create(f.ctx, o))
	return o
}

func (f *fixture) activeRaffle(unit string, minTickets, tier int) *models.Raffle {
	f.t.Helper()
	r := &models.Raffle{
		UUID:               uuid.NewString(),
		Name:               "spring draw",
		Status:             domain.RaffleStatusActive,
		UnitTicketValue:    dec(unit),
		MinTicketsRequired: minTickets,
		TicketLevel:        tier,
	}
	require.NoError(f.t, f.raffles.Create(f.ctx, r))
	return r
}

func (f *fixture) pool(n int) {
	f.t.Helper()
	numbers := make([]string, n)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("T%06d", i+1)
	}
	require.NoError(f.t, f.tickets.CreateBatch(f.ctx, numbers))
}

func (f *fixture) wallet(u *models.User) *models.Wallet {
	f.t.Helper()
	w, err := f.wallets.GetByUserID(f.ctx, u.ID)
	require.NoError(f.t, err)
	return w
}

func (f *fixture) requireConsistent(u *models.User) {
	f.t.Helper()
	rec, err := f.ledger.Reconcile(f.ctx, u.ID)
	require.NoError(f.t, err)
	require.True(f.t, rec.Consistent, "wallet %s ledger %s", rec.WalletBalance, rec.LedgerBalance)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func plan(price, l1, l2, l3 string) models.PlanSnapshot {
	return models.PlanSnapshot{
		Price:            dec(price),
		CommissionLevel1: dec(l1),
		CommissionLevel2: dec(l2),
		CommissionLevel3: dec(l3),
	}
}
