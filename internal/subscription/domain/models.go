// Package domain contains the recurring subscription model.
package domain

import (
	"time"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
)

// Subscription captures a patron's recurring pledge to a creator.
//
// Identifiers come from a monotonic counter owned by the subscription ledger
// and are never reused. Active flips to false either by patron cancellation
// or by the billing scheduler suspending a charge that cannot be covered;
// both are terminal, a new subscription must be created to resume billing.
type Subscription struct {
	ID           int64                    `json:"id"`
	Patron       ledgerdomain.AccountID   `json:"patron"`
	Creator      ledgerdomain.AccountID   `json:"creator"`
	Amount       uint64                   `json:"amount"`
	Cadence      time.Duration            `json:"cadence"`
	NextChargeAt time.Time                `json:"next_charge_at"`
	Active       bool                     `json:"active"`
	CreatedAt    time.Time                `json:"created_at"`
}

// SubscriptionSnapshot is a full copy of subscription state for persistence.
type SubscriptionSnapshot struct {
	Subscriptions []Subscription `json:"subscriptions"`
	NextID        int64          `json:"next_id"`
}
