// Package domain defines the persistence snapshot of the full state graph.
package domain

import (
	"context"
	"time"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	subscriptiondomain "github.com/smallbiznis/patronage/internal/subscription/domain"
)

// Snapshot is everything needed to rehydrate the core after a restart:
// balances, treasury, subscriptions and the id counter. Restoring a snapshot
// fully reproduces pre-snapshot behavior, including the billing schedule.
type Snapshot struct {
	Ledger        ledgerdomain.BalanceSnapshot             `json:"ledger"`
	Subscriptions subscriptiondomain.SubscriptionSnapshot  `json:"subscriptions"`
	TakenAt       time.Time                                `json:"taken_at"`
}

// TickGuard serializes snapshot work against billing activity. HoldTicks
// waits out any billing pass already in flight and keeps new passes from
// starting until fn returns.
type TickGuard interface {
	HoldTicks(fn func())
}

type Repository interface {
	SaveLatest(ctx context.Context, snap Snapshot) error
	// LoadLatest returns nil when no snapshot has been persisted yet.
	LoadLatest(ctx context.Context) (*Snapshot, error)
}

type Service interface {
	// Take captures the current state graph.
	Take() Snapshot

	// Restore rehydrates both stores from snap.
	Restore(snap Snapshot)

	// Persist takes a snapshot and writes it through the repository.
	Persist(ctx context.Context) error

	// LoadAndRestore loads the latest persisted snapshot, if any, and
	// restores it. It reports whether a snapshot was found.
	LoadAndRestore(ctx context.Context) (bool, error)
}
