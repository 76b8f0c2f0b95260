package service

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotApproved = errors.New("order is not approved")
	ErrOrderNotPending  = errors.New("order is not pending")
	ErrMissingPrice     = errors.New("order plan has no price")
	ErrInvalidPlan      = errors.New("invalid plan snapshot")

	ErrInvalidPosting      = errors.New("invalid ledger posting")
	ErrDuplicateStatement  = errors.New("statement already posted for this event")
	ErrNothingToCredit     = errors.New("nothing to credit")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrCommissionNotFound = errors.New("commission not found")

	ErrRaffleNotFound        = errors.New("raffle not found")
	ErrRaffleInactive        = errors.New("raffle is not active")
	ErrInvalidTicketCount    = errors.New("ticket count must be positive")
	ErrBelowMinimumTickets   = errors.New("ticket count below raffle minimum")
	ErrAlreadyApplied        = errors.New("user already applied to this raffle")
	ErrInsufficientTickets   = errors.New("not enough unbound tickets in pool")
	ErrInsufficientAllowance = errors.New("not enough ticket allowance")
	ErrRaffleTicketNotFound  = errors.New("raffle ticket not found")
	ErrNotCancellable        = errors.New("only pending raffle tickets can be cancelled")
	ErrNotPending            = errors.New("raffle ticket is not pending")

	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrWithdrawalClosed   = errors.New("withdrawal already settled")
)
