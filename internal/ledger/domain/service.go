package domain

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrInvalidAmount     = errors.New("invalid_amount")
)

// Service is the single mutation entry point for every internal balance,
// including the treasury accumulator. Each method is one indivisible step;
// callers never observe an intermediate state and never hold the store's
// lock across an external call.
type Service interface {
	// BalanceOf returns the balance for id. Unknown accounts have balance 0;
	// absence is not an error.
	BalanceOf(id AccountID) uint64

	// Credit adds amount to id's balance. It always succeeds.
	Credit(id AccountID, amount uint64)

	// Debit removes amount from id's balance, or returns ErrInsufficientFunds
	// with no mutation when the balance is too low.
	Debit(id AccountID, amount uint64) error

	// Transfer moves amount from one account to another as a single step.
	Transfer(from, to AccountID, amount uint64) error

	// Charge applies one subscription charge as a single step: debit patron
	// by amount, credit creator by amount-fee, credit the treasury by fee.
	// Returns ErrInsufficientFunds with no mutation when the patron cannot
	// cover the full amount. fee > amount is a programming bug and panics.
	Charge(patron, creator AccountID, amount, fee uint64) error

	// Treasury returns the accumulated platform fees.
	Treasury() uint64

	Snapshot() BalanceSnapshot
	Restore(snap BalanceSnapshot)
}
