// Package domain defines the optimistic accounting protocol surface.
package domain

import (
	"context"
	"errors"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
)

var (
	ErrInsufficientExternalFunds = errors.New("insufficient_external_funds")
	ErrTransferRejected          = errors.New("transfer_rejected")
)

type ConfirmDepositRequest struct {
	Account  ledgerdomain.AccountID
	Expected uint64
}

type WithdrawRequest struct {
	Account ledgerdomain.AccountID
	Amount  uint64

	// IdempotencyKey, when set, lets a caller safely retry a withdrawal whose
	// first attempt may have completed: a replayed key returns the recorded
	// outcome instead of issuing a second transfer.
	IdempotencyKey string
}

type WithdrawResult struct {
	TxRef    string `json:"tx_ref"`
	Amount   uint64 `json:"amount"`
	Replayed bool   `json:"replayed,omitempty"`
}

// Service moves funds across the asynchronous boundary to the external
// ledger. Both operations leave local state untouched on every failure path,
// so a failed call is always safe to retry.
type Service interface {
	// ConfirmDeposit checks the caller's external subaccount and credits the
	// observed amount internally. ErrInsufficientExternalFunds when the
	// observed amount is below the expected one; no local mutation on any
	// failure.
	ConfirmDeposit(ctx context.Context, req ConfirmDepositRequest) (credited uint64, err error)

	// Withdraw debits the caller's internal balance before calling out to the
	// gateway, and credits it back on a rejected or uncertain outcome.
	Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error)
}
