package service

import (
	"rafflehub/config"
	"rafflehub/internal/repository"
	"rafflehub/pkg/payment"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services is the wired service graph shared by the HTTP layer and jobs.
type Services struct {
	Upline      *UplineResolver
	Ledger      *LedgerService
	Commissions *CommissionService
	Payouts     *PayoutService
	Raffles     *RaffleService
	Orders      *OrderService
	Withdrawals *WithdrawalService
}

func New(cfg *config.Config, db *gorm.DB, disburser payment.Disburser, logger *zap.Logger) *Services {
	users := repository.NewUserRepository(db)
	wallets := repository.NewWalletRepository(db)
	statements := repository.NewStatementRepository(db)
	orders := repository.NewOrderRepository(db)
	commissions := repository.NewCommissionRepository(db)
	raffles := repository.NewRaffleRepository(db)
	tickets := repository.NewTicketRepository(db)
	allowances := repository.NewAllowanceRepository(db)
	withdrawals := repository.NewWithdrawalRepository(db)

	upline := NewUplineResolver(users, logger)
	ledger := NewLedgerService(db, statements, wallets, orders, allowances, logger)
	calculator := NewCommissionService(db, orders, commissions, upline, cfg.Commission.MaxDepth, logger)
	return &Services{
		Upline:      upline,
		Ledger:      ledger,
		Commissions: calculator,
		Payouts:     NewPayoutService(db, commissions, ledger, disburser, logger),
		Raffles:     NewRaffleService(db, raffles, tickets, wallets, allowances, ledger, cfg.Raffle.MaxSelectionAttempts, logger),
		Orders:      NewOrderService(db, orders, users, ledger, calculator, logger),
		Withdrawals: NewWithdrawalService(db, withdrawals, wallets, statements, ledger, logger),
	}
}
