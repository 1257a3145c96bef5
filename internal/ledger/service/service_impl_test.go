package service

import (
	"sync"
	"testing"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Service {
	t.Helper()
	return NewStore(zap.NewNop())
}

func TestBalanceOfUnknownAccountIsZero(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, uint64(0), store.BalanceOf("ghost"))
}

func TestDebitInsufficientFundsLeavesBalanceUntouched(t *testing.T) {
	store := newTestStore(t)
	store.Credit("alice", 50)

	err := store.Debit("alice", 51)
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)
	assert.Equal(t, uint64(50), store.BalanceOf("alice"))
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	store := newTestStore(t)
	store.Credit("alice", 100)

	require.NoError(t, store.Transfer("alice", "bob", 60))
	assert.Equal(t, uint64(40), store.BalanceOf("alice"))
	assert.Equal(t, uint64(60), store.BalanceOf("bob"))

	err := store.Transfer("alice", "bob", 41)
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)
	assert.Equal(t, uint64(40), store.BalanceOf("alice"))
	assert.Equal(t, uint64(60), store.BalanceOf("bob"))
}

func TestChargeSplitsFeeIntoTreasury(t *testing.T) {
	store := newTestStore(t)
	store.Credit("patron", 100)

	require.NoError(t, store.Charge("patron", "creator", 100, 1))
	assert.Equal(t, uint64(0), store.BalanceOf("patron"))
	assert.Equal(t, uint64(99), store.BalanceOf("creator"))
	assert.Equal(t, uint64(1), store.Treasury())
}

func TestChargeInsufficientFundsIsAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	store.Credit("patron", 99)

	err := store.Charge("patron", "creator", 100, 1)
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)
	assert.Equal(t, uint64(99), store.BalanceOf("patron"))
	assert.Equal(t, uint64(0), store.BalanceOf("creator"))
	assert.Equal(t, uint64(0), store.Treasury())
}

func TestChargeFeeAboveAmountPanics(t *testing.T) {
	store := newTestStore(t)
	store.Credit("patron", 100)
	assert.Panics(t, func() {
		_ = store.Charge("patron", "creator", 10, 11)
	})
}

// Value is never created or destroyed by internal moves: at any point,
// sum(balances) + treasury == all-time credits - all-time debits.
func TestConservationAcrossMixedOperations(t *testing.T) {
	store := newTestStore(t)

	store.Credit("alice", 1_000)
	store.Credit("bob", 500)
	require.NoError(t, store.Debit("alice", 200))
	require.NoError(t, store.Transfer("bob", "alice", 100))
	require.NoError(t, store.Charge("alice", "carol", 300, 3))
	store.Credit("alice", 200) // rollback of the earlier debit

	snap := store.Snapshot()
	var sum uint64
	for _, balance := range snap.Balances {
		sum += balance
	}
	assert.Equal(t, snap.TotalCredited-snap.TotalDebited, sum+snap.Treasury)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	store.Credit("alice", 123)
	store.Credit("bob", 77)
	require.NoError(t, store.Charge("alice", "bob", 100, 5))

	snap := store.Snapshot()

	restored := newTestStore(t)
	restored.Restore(snap)

	assert.Equal(t, store.BalanceOf("alice"), restored.BalanceOf("alice"))
	assert.Equal(t, store.BalanceOf("bob"), restored.BalanceOf("bob"))
	assert.Equal(t, store.Treasury(), restored.Treasury())

	// Snapshot is a copy, not a view.
	store.Credit("alice", 1)
	assert.NotEqual(t, store.BalanceOf("alice"), restored.BalanceOf("alice"))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := newTestStore(t)
	store.Credit("alice", 1_000)

	var wg sync.WaitGroup
	successes := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Debit("alice", 100) == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	var n int
	for range successes {
		n++
	}
	assert.Equal(t, 10, n)
	assert.Equal(t, uint64(0), store.BalanceOf("alice"))
}
