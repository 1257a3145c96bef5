package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	cron "github.com/robfig/cron/v3"
	"github.com/smallbiznis/patronage/internal/clock"
	"github.com/smallbiznis/patronage/internal/config"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/patronage/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/patronage/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tickLockKey = "patronage:billing:tick"

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	Ledger          ledgerdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Billing         *config.BillingConfigHolder

	Lock       *TickLock           `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Config     Config              `optional:"true"`
}

// Scheduler runs the recurring charge cycle. It is the only component that
// performs bulk, unattended balance mutation.
type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	ledger          ledgerdomain.Service
	subscriptionSvc subscriptiondomain.Service
	billing         *config.BillingConfigHolder
	lock            *TickLock
	obsMetrics      *obsmetrics.Metrics

	running atomic.Bool
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Ledger == nil || p.SubscriptionSvc == nil || p.Billing == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		ledger:          p.Ledger,
		subscriptionSvc: p.SubscriptionSvc,
		billing:         p.Billing,
		lock:            p.Lock,
		obsMetrics:      p.ObsMetrics,
	}, nil
}

// CycleResult summarizes one billing pass.
type CycleResult struct {
	Due       int    `json:"due"`
	Charged   int    `json:"charged"`
	Suspended int    `json:"suspended"`
	Fees      uint64 `json:"fees"`
}

// RunBillingCycle applies one charge pass over every due subscription at now.
// Each subscription's outcome is independent: a suspension never rolls back
// or blocks the other charges in the same pass.
func (s *Scheduler) RunBillingCycle(ctx context.Context, now time.Time) CycleResult {
	start := time.Now()
	billing := s.billing.Current()

	due := s.subscriptionSvc.Due(now)
	result := CycleResult{Due: len(due)}

	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			s.log.Warn("billing cycle interrupted", zap.Error(err))
			break
		}

		fee := sub.Amount * billing.FeePercent / 100
		charged, err := s.subscriptionSvc.ChargeDue(sub.ID, now, func(cur subscriptiondomain.Subscription) error {
			return s.ledger.Charge(cur.Patron, cur.Creator, cur.Amount, fee)
		})
		switch {
		case err == nil && !charged:
			// Cancelled, suspended or restored between the due listing and
			// the charge; nothing was debited.
			s.log.Info("subscription no longer chargeable, skipping", zap.Int64("subscription_id", sub.ID))
		case err == nil:
			result.Charged++
			result.Fees += fee
			s.obsMetrics.IncCharged()
			s.obsMetrics.AddFees(fee)
			s.log.Info("subscription charged",
				zap.Int64("subscription_id", sub.ID),
				zap.String("patron", string(sub.Patron)),
				zap.String("creator", string(sub.Creator)),
				zap.Uint64("amount", sub.Amount),
				zap.Uint64("fee", fee),
			)
		case errors.Is(err, ledgerdomain.ErrInsufficientFunds):
			s.subscriptionSvc.Suspend(sub.ID)
			result.Suspended++
			s.obsMetrics.IncSuspended()
			s.log.Info("subscription suspended",
				zap.Int64("subscription_id", sub.ID),
				zap.String("patron", string(sub.Patron)),
				zap.Uint64("amount", sub.Amount),
			)
		default:
			// Charge only fails with insufficient funds; anything else is a bug
			// in the store discipline and has already panicked there.
			s.log.Error("unexpected charge failure", zap.Int64("subscription_id", sub.ID), zap.Error(err))
		}
	}

	s.obsMetrics.IncBillingCycle()
	s.obsMetrics.ObserveCycleDuration(time.Since(start))
	s.log.Info("billing cycle finished",
		zap.Time("now", now),
		zap.Int("due", result.Due),
		zap.Int("charged", result.Charged),
		zap.Int("suspended", result.Suspended),
		zap.Uint64("fees", result.Fees),
	)
	return result
}

// RunOnce executes one guarded tick. Overlapping invocations are skipped, not
// queued: a missed tick is caught up by the due-check on the next one. The
// boolean reports whether the cycle actually ran.
func (s *Scheduler) RunOnce(parent context.Context) (CycleResult, bool, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("billing tick already in progress, skipping")
		return CycleResult{}, false, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(parent, s.cfg.TickTimeout)
	defer cancel()

	if s.lock != nil {
		token, ok, err := s.lock.TryLock(ctx, tickLockKey, s.cfg.LockTTL)
		if err != nil {
			return CycleResult{}, false, err
		}
		if !ok {
			s.log.Warn("billing tick held by another instance, skipping")
			return CycleResult{}, false, nil
		}
		defer func() {
			if err := s.lock.Release(ctx, tickLockKey, token); err != nil {
				s.log.Warn("failed to release billing tick lock", zap.Error(err))
			}
		}()
	}

	return s.RunBillingCycle(ctx, s.clock.Now()), true, nil
}

// HoldTicks runs fn while the tick guard is held: it waits out any billing
// pass already in flight, and RunOnce skips until fn returns. Snapshot take
// and restore run under it so a pass never sees a half-swapped state graph.
func (s *Scheduler) HoldTicks(fn func()) {
	for !s.running.CompareAndSwap(false, true) {
		time.Sleep(10 * time.Millisecond)
	}
	defer s.running.Store(false)
	fn()
}

// RunForever drives ticks on the configured cron schedule until ctx is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	for {
		schedule, err := cron.ParseStandard(s.billing.Current().Schedule)
		if err != nil {
			// The holder validates on load, so this only happens if a bad
			// schedule raced past a reload; fall back to daily.
			s.log.Error("invalid billing schedule, falling back to daily", zap.Error(err))
			schedule, _ = cron.ParseStandard("@daily")
		}

		now := s.clock.Now()
		timer := time.NewTimer(schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("billing tick failed", zap.Error(err))
		}
	}
}
