// Package domain contains the virtual balance ledger model.
package domain

// AccountID is the opaque identity of an internal account. Identities are
// assigned by the identity collaborator and never generated here.
type AccountID string

// BalanceSnapshot is a full copy of ledger state for persistence and restore.
type BalanceSnapshot struct {
	Balances map[AccountID]uint64 `json:"balances"`
	Treasury uint64               `json:"treasury"`

	// All-time external inflow and outflow, used to verify that value is
	// neither created nor destroyed by internal moves.
	TotalCredited uint64 `json:"total_credited"`
	TotalDebited  uint64 `json:"total_debited"`
}
