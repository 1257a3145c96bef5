package service

import (
	"context"
	"fmt"
	"time"

	accountingdomain "github.com/smallbiznis/patronage/internal/accounting/domain"
	"github.com/smallbiznis/patronage/internal/cache"
	gatewaydomain "github.com/smallbiznis/patronage/internal/gateway/domain"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/patronage/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Completed withdrawals are replayable by idempotency key for a day, matching
// the billing tick cadence.
const idempotencyTTL = 24 * time.Hour

type Params struct {
	fx.In

	Log        *zap.Logger
	Ledger     ledgerdomain.Service
	Gateway    gatewaydomain.Gateway
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	ledger     ledgerdomain.Service
	gateway    gatewaydomain.Gateway
	obsMetrics *obsmetrics.Metrics

	completed cache.Cache[string, accountingdomain.WithdrawResult]
}

func New(p Params) accountingdomain.Service {
	return &Service{
		log:        p.Log.Named("accounting.service"),
		ledger:     p.Ledger,
		gateway:    p.Gateway,
		obsMetrics: p.ObsMetrics,
		completed:  cache.NewTTLCache[string, accountingdomain.WithdrawResult](),
	}
}

func (s *Service) ConfirmDeposit(ctx context.Context, req accountingdomain.ConfirmDepositRequest) (uint64, error) {
	if req.Expected == 0 {
		return 0, ledgerdomain.ErrInvalidAmount
	}

	ref := gatewaydomain.ExternalRef(req.Account)
	observed, err := s.gateway.QueryExternalBalance(ctx, ref)
	if err != nil {
		// Nothing was mutated, so the caller may retry freely.
		return 0, err
	}
	if observed < req.Expected {
		return 0, accountingdomain.ErrInsufficientExternalFunds
	}

	s.ledger.Credit(req.Account, observed)
	s.obsMetrics.IncDepositConfirmed()
	s.log.Info("deposit confirmed",
		zap.String("account", string(req.Account)),
		zap.Uint64("expected", req.Expected),
		zap.Uint64("credited", observed),
	)
	return observed, nil
}

// Withdraw runs the check/update/interact/resolve protocol. The debit happens
// before the gateway call, so any overlapping withdrawal on the same account
// observes the already-reduced balance and cannot double-spend the funds
// while the transfer is outstanding.
func (s *Service) Withdraw(ctx context.Context, req accountingdomain.WithdrawRequest) (accountingdomain.WithdrawResult, error) {
	if req.Amount == 0 {
		return accountingdomain.WithdrawResult{}, ledgerdomain.ErrInvalidAmount
	}

	if req.IdempotencyKey != "" {
		if prior, ok := s.completed.Get(s.idemKey(req)); ok {
			prior.Replayed = true
			s.log.Info("withdrawal replayed from idempotency record",
				zap.String("account", string(req.Account)),
				zap.String("tx_ref", prior.TxRef),
			)
			return prior, nil
		}
	}

	// Update before interact.
	if err := s.ledger.Debit(req.Account, req.Amount); err != nil {
		s.obsMetrics.IncWithdrawal("insufficient_funds")
		return accountingdomain.WithdrawResult{}, err
	}

	ref := gatewaydomain.ExternalRef(req.Account)
	result, err := s.gateway.SendTransfer(ctx, ref, req.Amount)
	if err != nil {
		// The outcome is unknown. Assume non-delivery and refund rather than
		// risk a delivered-but-unrecorded transfer silently losing the user's
		// funds; the rare double refund this allows is the documented
		// tradeoff.
		s.ledger.Credit(req.Account, req.Amount)
		s.obsMetrics.IncWithdrawal("gateway_unavailable")
		s.obsMetrics.IncWithdrawalRollback("gateway_unavailable")
		s.log.Warn("withdrawal rolled back on uncertain gateway outcome",
			zap.String("account", string(req.Account)),
			zap.Uint64("amount", req.Amount),
			zap.Error(err),
		)
		return accountingdomain.WithdrawResult{}, err
	}

	if result.Status == gatewaydomain.TransferRejected {
		s.ledger.Credit(req.Account, req.Amount)
		s.obsMetrics.IncWithdrawal("rejected")
		s.obsMetrics.IncWithdrawalRollback("rejected")
		s.log.Warn("withdrawal rejected by gateway",
			zap.String("account", string(req.Account)),
			zap.Uint64("amount", req.Amount),
			zap.String("reason", result.Reason),
		)
		return accountingdomain.WithdrawResult{}, fmt.Errorf("%w: %s", accountingdomain.ErrTransferRejected, result.Reason)
	}

	out := accountingdomain.WithdrawResult{TxRef: result.TxRef, Amount: req.Amount}
	if req.IdempotencyKey != "" {
		s.completed.Set(s.idemKey(req), out, idempotencyTTL)
	}
	s.obsMetrics.IncWithdrawal("completed")
	s.log.Info("withdrawal completed",
		zap.String("account", string(req.Account)),
		zap.Uint64("amount", req.Amount),
		zap.String("tx_ref", result.TxRef),
	)
	return out, nil
}

func (s *Service) idemKey(req accountingdomain.WithdrawRequest) string {
	return string(req.Account) + "\x00" + req.IdempotencyKey
}
