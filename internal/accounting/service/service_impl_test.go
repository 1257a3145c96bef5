package service

import (
	"context"
	"sync"
	"testing"
	"time"

	accountingdomain "github.com/smallbiznis/patronage/internal/accounting/domain"
	gatewaydomain "github.com/smallbiznis/patronage/internal/gateway/domain"
	"github.com/smallbiznis/patronage/internal/gateway/gatewaytest"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/patronage/internal/ledger/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (accountingdomain.Service, ledgerdomain.Service, *gatewaytest.Fake) {
	t.Helper()
	store := ledgerservice.NewStore(zap.NewNop())
	fake := gatewaytest.New()
	svc := New(Params{
		Log:     zap.NewNop(),
		Ledger:  store,
		Gateway: fake,
	})
	return svc, store, fake
}

func TestConfirmDepositCreditsObservedAmount(t *testing.T) {
	svc, store, fake := newTestService(t)
	fake.SetBalance(gatewaydomain.ExternalRef("alice"), 1_000_000)

	credited, err := svc.ConfirmDeposit(context.Background(), accountingdomain.ConfirmDepositRequest{
		Account:  "alice",
		Expected: 1_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), credited)
	assert.Equal(t, uint64(1_000_000), store.BalanceOf("alice"))
}

func TestConfirmDepositInsufficientExternalFunds(t *testing.T) {
	svc, store, fake := newTestService(t)
	fake.SetBalance(gatewaydomain.ExternalRef("alice"), 999)

	_, err := svc.ConfirmDeposit(context.Background(), accountingdomain.ConfirmDepositRequest{
		Account:  "alice",
		Expected: 1_000,
	})
	require.ErrorIs(t, err, accountingdomain.ErrInsufficientExternalFunds)
	assert.Equal(t, uint64(0), store.BalanceOf("alice"))
}

func TestConfirmDepositGatewayDownLeavesStateForRetry(t *testing.T) {
	svc, store, fake := newTestService(t)
	ref := gatewaydomain.ExternalRef("alice")
	fake.FailBalance(ref, gatewaydomain.ErrGatewayUnavailable)

	_, err := svc.ConfirmDeposit(context.Background(), accountingdomain.ConfirmDepositRequest{
		Account:  "alice",
		Expected: 100,
	})
	require.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
	assert.Equal(t, uint64(0), store.BalanceOf("alice"))

	// Retry after the gateway recovers.
	fake.FailBalance(ref, nil)
	fake.SetBalance(ref, 100)
	credited, err := svc.ConfirmDeposit(context.Background(), accountingdomain.ConfirmDepositRequest{
		Account:  "alice",
		Expected: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), credited)
}

func TestWithdrawHappyPath(t *testing.T) {
	svc, store, fake := newTestService(t)
	fake.SetBalance(gatewaydomain.ExternalRef("alice"), 1_000_000)

	_, err := svc.ConfirmDeposit(context.Background(), accountingdomain.ConfirmDepositRequest{
		Account:  "alice",
		Expected: 1_000_000,
	})
	require.NoError(t, err)

	result, err := svc.Withdraw(context.Background(), accountingdomain.WithdrawRequest{
		Account: "alice",
		Amount:  500_000,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.TxRef)
	assert.Equal(t, uint64(500_000), store.BalanceOf("alice"))

	transfers := fake.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, gatewaydomain.ExternalRef("alice"), transfers[0].Ref)
	assert.Equal(t, uint64(500_000), transfers[0].Amount)
}

func TestWithdrawInsufficientFundsDoesNotCallGateway(t *testing.T) {
	svc, store, fake := newTestService(t)
	store.Credit("alice", 100)

	_, err := svc.Withdraw(context.Background(), accountingdomain.WithdrawRequest{
		Account: "alice",
		Amount:  101,
	})
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)
	assert.Equal(t, uint64(100), store.BalanceOf("alice"))
	assert.Empty(t, fake.Transfers())
}

// Rollback law: for a rejected or uncertain transfer, the post-operation
// balance equals the pre-operation balance.
func TestWithdrawRollbackOnRejection(t *testing.T) {
	svc, store, fake := newTestService(t)
	store.Credit("alice", 800)
	fake.TransferFunc = func(string, uint64) (gatewaydomain.TransferResult, error) {
		return gatewaydomain.TransferResult{Status: gatewaydomain.TransferRejected, Reason: "compliance_hold"}, nil
	}

	_, err := svc.Withdraw(context.Background(), accountingdomain.WithdrawRequest{Account: "alice", Amount: 500})
	require.ErrorIs(t, err, accountingdomain.ErrTransferRejected)
	assert.Equal(t, uint64(800), store.BalanceOf("alice"))
}

func TestWithdrawRollbackOnGatewayFailure(t *testing.T) {
	svc, store, fake := newTestService(t)
	store.Credit("alice", 800)
	fake.TransferFunc = func(string, uint64) (gatewaydomain.TransferResult, error) {
		return gatewaydomain.TransferResult{}, gatewaydomain.ErrGatewayUnavailable
	}

	_, err := svc.Withdraw(context.Background(), accountingdomain.WithdrawRequest{Account: "alice", Amount: 500})
	require.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
	assert.Equal(t, uint64(800), store.BalanceOf("alice"))
}

// Two overlapping withdrawals that each exceed half the balance must resolve
// to exactly one success and one insufficient-funds failure; the debit before
// the gateway call is what prevents the double spend.
func TestConcurrentWithdrawalsCannotDoubleSpend(t *testing.T) {
	svc, store, fake := newTestService(t)
	store.Credit("alice", 1_000)

	gate := make(chan struct{})
	fake.Gate = gate

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = svc.Withdraw(context.Background(), accountingdomain.WithdrawRequest{Account: "alice", Amount: 600})
	}()

	// Wait until the first withdrawal is parked inside the gateway call, i.e.
	// after its debit.
	require.Eventually(t, func() bool {
		return len(fake.Transfers()) == 1
	}, time.Second, time.Millisecond)

	_, secondErr := svc.Withdraw(context.Background(), accountingdomain.WithdrawRequest{Account: "alice", Amount: 600})
	require.ErrorIs(t, secondErr, ledgerdomain.ErrInsufficientFunds)

	close(gate)
	wg.Wait()
	require.NoError(t, firstErr)

	assert.Equal(t, uint64(400), store.BalanceOf("alice"))
	assert.Len(t, fake.Transfers(), 1)
}

func TestWithdrawIdempotencyKeyReplaysOutcome(t *testing.T) {
	svc, store, fake := newTestService(t)
	store.Credit("alice", 1_000)

	req := accountingdomain.WithdrawRequest{Account: "alice", Amount: 400, IdempotencyKey: "retry-1"}

	first, err := svc.Withdraw(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := svc.Withdraw(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TxRef, second.TxRef)

	// The replay neither re-debits nor re-transfers.
	assert.Equal(t, uint64(600), store.BalanceOf("alice"))
	assert.Len(t, fake.Transfers(), 1)
}

func TestWithdrawZeroAmountRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Withdraw(context.Background(), accountingdomain.WithdrawRequest{Account: "alice", Amount: 0})
	require.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}
