package service

import (
	"fmt"
	"sync"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
}

// Service is the in-memory balance store. One mutex guards the whole map so
// every exported operation is a single critical section; this is what makes
// the accounting protocol's update-before-interact ordering sufficient for
// re-entrancy safety in a multi-goroutine host.
type Service struct {
	log *zap.Logger

	mu       sync.Mutex
	balances map[ledgerdomain.AccountID]uint64
	treasury uint64

	totalCredited uint64
	totalDebited  uint64
}

func New(p Params) ledgerdomain.Service {
	return &Service{
		log:      p.Log.Named("ledger.service"),
		balances: make(map[ledgerdomain.AccountID]uint64),
	}
}

// NewStore returns a bare store for tests and embedded use.
func NewStore(log *zap.Logger) *Service {
	return &Service{
		log:      log.Named("ledger.service"),
		balances: make(map[ledgerdomain.AccountID]uint64),
	}
}

func (s *Service) BalanceOf(id ledgerdomain.AccountID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[id]
}

func (s *Service) Credit(id ledgerdomain.AccountID, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[id] += amount
	s.totalCredited += amount
}

func (s *Service) Debit(id ledgerdomain.AccountID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.debitLocked(id, amount); err != nil {
		return err
	}
	s.totalDebited += amount
	return nil
}

func (s *Service) Transfer(from, to ledgerdomain.AccountID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.debitLocked(from, amount); err != nil {
		return err
	}
	s.balances[to] += amount
	return nil
}

func (s *Service) Charge(patron, creator ledgerdomain.AccountID, amount, fee uint64) error {
	if fee > amount {
		panic(fmt.Sprintf("ledger: fee %d exceeds charge amount %d", fee, amount))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.debitLocked(patron, amount); err != nil {
		return err
	}
	s.balances[creator] += amount - fee
	s.treasury += fee
	return nil
}

func (s *Service) Treasury() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treasury
}

func (s *Service) Snapshot() ledgerdomain.BalanceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	balances := make(map[ledgerdomain.AccountID]uint64, len(s.balances))
	for id, balance := range s.balances {
		balances[id] = balance
	}
	return ledgerdomain.BalanceSnapshot{
		Balances:      balances,
		Treasury:      s.treasury,
		TotalCredited: s.totalCredited,
		TotalDebited:  s.totalDebited,
	}
}

func (s *Service) Restore(snap ledgerdomain.BalanceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances = make(map[ledgerdomain.AccountID]uint64, len(snap.Balances))
	for id, balance := range snap.Balances {
		s.balances[id] = balance
	}
	s.treasury = snap.Treasury
	s.totalCredited = snap.TotalCredited
	s.totalDebited = snap.TotalDebited

	s.log.Info("ledger state restored",
		zap.Int("accounts", len(s.balances)),
		zap.Uint64("treasury", s.treasury),
	)
}

// debitLocked performs the checked subtraction. The caller holds s.mu, so the
// check and the mutation are one step. An underflow past the check means the
// single-mutation-point discipline was violated somewhere and is not
// recoverable.
func (s *Service) debitLocked(id ledgerdomain.AccountID, amount uint64) error {
	balance := s.balances[id]
	if balance < amount {
		return ledgerdomain.ErrInsufficientFunds
	}
	s.balances[id] = balance - amount
	return nil
}
