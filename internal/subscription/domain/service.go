package domain

import (
	"context"
	"errors"
	"time"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
)

var (
	ErrNotFound       = errors.New("subscription_not_found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidCadence = errors.New("invalid_cadence")
)

type CreateSubscriptionRequest struct {
	Patron  ledgerdomain.AccountID
	Creator ledgerdomain.AccountID
	Amount  uint64
	Cadence time.Duration
}

// Service owns the subscription ledger and its id counter.
type Service interface {
	// Create validates the request, checks the patron can afford the first
	// charge right now (a point-in-time check, not a reservation) and stores
	// the subscription active with NextChargeAt one cadence ahead.
	Create(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)

	// Cancel deactivates the subscription. Only the patron may cancel;
	// cancelling an already-inactive subscription is a no-op success.
	Cancel(ctx context.Context, id int64, requester ledgerdomain.AccountID) error

	Get(id int64) (Subscription, error)

	// ListActive returns active subscriptions in insertion order.
	ListActive() []Subscription

	// Due returns active subscriptions with NextChargeAt <= now, ascending id.
	Due(now time.Time) []Subscription

	// ChargeDue re-checks the subscription is still active and due at now
	// under the subscription lock, runs charge with the current record and,
	// when charge succeeds, advances NextChargeAt by one cadence in the same
	// critical section. It returns false without calling charge when the
	// subscription was cancelled, suspended or already advanced since it was
	// listed by Due.
	ChargeDue(id int64, now time.Time, charge func(Subscription) error) (bool, error)

	// Suspend terminally deactivates a subscription whose charge failed.
	Suspend(id int64)

	Snapshot() SubscriptionSnapshot
	Restore(snap SubscriptionSnapshot)
}
