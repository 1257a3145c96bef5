package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smallbiznis/patronage/internal/clock"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	subscriptiondomain "github.com/smallbiznis/patronage/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Ledger ledgerdomain.Service
}

type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	ledger ledgerdomain.Service

	mu     sync.Mutex
	subs   map[int64]*subscriptiondomain.Subscription
	order  []int64
	nextID int64
}

func New(p Params) subscriptiondomain.Service {
	return NewLedger(p.Log, p.Clock, p.Ledger)
}

// NewLedger returns a bare subscription ledger for tests and embedded use.
func NewLedger(log *zap.Logger, clk clock.Clock, ledger ledgerdomain.Service) *Service {
	return &Service{
		log:    log.Named("subscription.service"),
		clock:  clk,
		ledger: ledger,
		subs:   make(map[int64]*subscriptiondomain.Subscription),
		nextID: 1,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	if req.Amount == 0 {
		return subscriptiondomain.Subscription{}, ledgerdomain.ErrInvalidAmount
	}
	if req.Cadence <= 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidCadence
	}
	if s.ledger.BalanceOf(req.Patron) < req.Amount {
		return subscriptiondomain.Subscription{}, ledgerdomain.ErrInsufficientFunds
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscriptiondomain.Subscription{
		ID:           s.nextID,
		Patron:       req.Patron,
		Creator:      req.Creator,
		Amount:       req.Amount,
		Cadence:      req.Cadence,
		NextChargeAt: now.Add(req.Cadence),
		Active:       true,
		CreatedAt:    now,
	}
	s.nextID++
	s.subs[sub.ID] = sub
	s.order = append(s.order, sub.ID)

	s.log.Info("subscription created",
		zap.Int64("id", sub.ID),
		zap.String("patron", string(sub.Patron)),
		zap.String("creator", string(sub.Creator)),
		zap.Uint64("amount", sub.Amount),
		zap.Duration("cadence", sub.Cadence),
	)
	return *sub, nil
}

func (s *Service) Cancel(ctx context.Context, id int64, requester ledgerdomain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return subscriptiondomain.ErrNotFound
	}
	if sub.Patron != requester {
		return subscriptiondomain.ErrUnauthorized
	}
	if !sub.Active {
		return nil
	}

	sub.Active = false
	s.log.Info("subscription cancelled", zap.Int64("id", id), zap.String("patron", string(requester)))
	return nil
}

func (s *Service) Get(id int64) (subscriptiondomain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrNotFound
	}
	return *sub, nil
}

func (s *Service) ListActive() []subscriptiondomain.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]subscriptiondomain.Subscription, 0, len(s.order))
	for _, id := range s.order {
		if sub := s.subs[id]; sub.Active {
			out = append(out, *sub)
		}
	}
	return out
}

func (s *Service) Due(now time.Time) []subscriptiondomain.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]subscriptiondomain.Subscription, 0)
	for _, sub := range s.subs {
		if sub.Active && !sub.NextChargeAt.After(now) {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChargeDue holds s.mu across the charge callback so a concurrent Cancel or
// Suspend either commits before the re-check here (no money moves) or waits
// until the charge and schedule advance are both done. The balance store has
// its own lock and never calls back into subscriptions, so holding s.mu over
// the callback cannot deadlock.
func (s *Service) ChargeDue(id int64, now time.Time, charge func(subscriptiondomain.Subscription) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok || !sub.Active || sub.NextChargeAt.After(now) {
		return false, nil
	}
	if err := charge(*sub); err != nil {
		return false, err
	}
	sub.NextChargeAt = now.Add(sub.Cadence)
	return true, nil
}

func (s *Service) Suspend(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[id]; ok {
		sub.Active = false
	}
}

func (s *Service) Snapshot() subscriptiondomain.SubscriptionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]subscriptiondomain.Subscription, 0, len(s.order))
	for _, id := range s.order {
		subs = append(subs, *s.subs[id])
	}
	return subscriptiondomain.SubscriptionSnapshot{
		Subscriptions: subs,
		NextID:        s.nextID,
	}
}

func (s *Service) Restore(snap subscriptiondomain.SubscriptionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = make(map[int64]*subscriptiondomain.Subscription, len(snap.Subscriptions))
	s.order = make([]int64, 0, len(snap.Subscriptions))
	for i := range snap.Subscriptions {
		sub := snap.Subscriptions[i]
		s.subs[sub.ID] = &sub
		s.order = append(s.order, sub.ID)
	}
	s.nextID = snap.NextID
	if s.nextID < 1 {
		s.nextID = 1
	}

	s.log.Info("subscription ledger restored",
		zap.Int("subscriptions", len(s.subs)),
		zap.Int64("next_id", s.nextID),
	)
}
