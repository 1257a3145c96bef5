// Package domain defines the boundary to the external token-transfer service.
// The external ledger is the service of record for actual token movement; this
// core only observes balances at derived subaccounts and requests outgoing
// transfers.
package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
)

var (
	// ErrGatewayUnavailable covers transport failure, timeouts and any
	// response the client cannot interpret. Callers must treat the outcome
	// of the remote call as unknown.
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
)

type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferRejected  TransferStatus = "rejected"
)

// TransferResult is the terminal outcome of a transfer request the gateway
// actually answered. Uncertain outcomes surface as ErrGatewayUnavailable
// instead.
type TransferResult struct {
	Status TransferStatus
	TxRef  string
	Reason string
}

type Gateway interface {
	// QueryExternalBalance reads the externally held balance at ref.
	QueryExternalBalance(ctx context.Context, ref string) (uint64, error)

	// SendTransfer requests an outgoing transfer of amount to ref. A nil
	// error means the gateway produced a terminal answer, completed or
	// rejected; any error means the outcome is unknown.
	SendTransfer(ctx context.Context, ref string, amount uint64) (TransferResult, error)
}

const refNamespace = "patronage:acct:"

// ExternalRef derives the stable external subaccount reference for an
// internal account. The derivation is namespaced and collision-free per
// identity so deposits and withdrawals for a user always address the same
// external subaccount.
func ExternalRef(id ledgerdomain.AccountID) string {
	sum := sha256.Sum256([]byte(refNamespace + string(id)))
	return refNamespace + hex.EncodeToString(sum[:])
}
