// Package gatewaytest provides a scripted transfer gateway for unit tests.
package gatewaytest

import (
	"context"
	"sync"

	gatewaydomain "github.com/smallbiznis/patronage/internal/gateway/domain"
)

type TransferCall struct {
	Ref    string
	Amount uint64
}

// Fake is a scripted gateway. Balances are set per external ref; TransferFunc
// decides the outcome of each transfer. When Gate is set, SendTransfer blocks
// until the gate is released, which lets tests interleave operations while a
// transfer is in flight.
type Fake struct {
	mu        sync.Mutex
	balances  map[string]uint64
	balErrs   map[string]error
	transfers []TransferCall

	TransferFunc func(ref string, amount uint64) (gatewaydomain.TransferResult, error)
	Gate         chan struct{}
}

func New() *Fake {
	return &Fake{
		balances: make(map[string]uint64),
		balErrs:  make(map[string]error),
	}
}

func (f *Fake) SetBalance(ref string, balance uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[ref] = balance
}

func (f *Fake) FailBalance(ref string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balErrs[ref] = err
}

func (f *Fake) Transfers() []TransferCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TransferCall, len(f.transfers))
	copy(out, f.transfers)
	return out
}

func (f *Fake) QueryExternalBalance(_ context.Context, ref string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.balErrs[ref]; err != nil {
		return 0, err
	}
	return f.balances[ref], nil
}

func (f *Fake) SendTransfer(_ context.Context, ref string, amount uint64) (gatewaydomain.TransferResult, error) {
	f.mu.Lock()
	f.transfers = append(f.transfers, TransferCall{Ref: ref, Amount: amount})
	gate := f.Gate
	fn := f.TransferFunc
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fn != nil {
		return fn(ref, amount)
	}
	return gatewaydomain.TransferResult{Status: gatewaydomain.TransferCompleted, TxRef: "tx-" + ref}, nil
}
