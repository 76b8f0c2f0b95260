package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusApproved  = "approved"
	OrderStatusRejected  = "rejected"
	OrderStatusCancelled = "cancelled"
)

const (
	StatementTypeCredit = "credit"
	StatementTypeDebit  = "debit"
)

const (
	OriginPlan       = "plan"
	OriginCommission = "commission"
	OriginRaffle     = "raffle"
	OriginBalance    = "balance"
	OriginSystem     = "system"
	OriginUser       = "user"
)

const (
	StatementStatusPending   = "pending"
	StatementStatusCompleted = "completed"
	StatementStatusFailed    = "failed"
)

const (
	RaffleStatusDraft    = "draft"
	RaffleStatusActive   = "active"
	RaffleStatusClosed   = "closed"
	RaffleStatusFinished = "finished"
)

const (
	RaffleTicketPending   = "pending"
	RaffleTicketConfirmed = "confirmed"
	RaffleTicketCancelled = "cancelled"
	RaffleTicketRejected  = "rejected"
	RaffleTicketWinner    = "winner"
	RaffleTicketLoser     = "loser"
)

// Where the tickets of a raffle application were paid from.
const (
	ApplicationSourceWallet    = "wallet"
	ApplicationSourceAllowance = "allowance"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusFailed    = "failed"
)

// Payout outcomes reported per commission.
const (
	PayoutPaid         = "paid"
	PayoutAlreadyPaid  = "already_paid"
	PayoutNotAvailable = "not_available"
	PayoutVoid         = "void"
	PayoutFailed       = "failed"
)

// DefaultUplineDepth is how many sponsor levels earn commission unless configured.
const DefaultUplineDepth = 3

var ValidOrigins = []string{OriginPlan, OriginCommission, OriginRaffle, OriginBalance, OriginSystem, OriginUser}

func IsValidOrigin(origin string) bool {
	for _, o := range ValidOrigins {
		if o == origin {
			return true
		}
	}
	return false
}
