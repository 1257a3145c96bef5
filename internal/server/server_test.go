package server

import (
	"net/http"
	"testing"
	"time"

	gatewaydomain "github.com/smallbiznis/patronage/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(t, rec))

	rec = ts.do(t, http.MethodGet, "/v1/balance", "tok-mallory", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetBalanceAndTreasury(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 250)

	rec := ts.do(t, http.MethodGet, "/v1/balance", "tok-alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "alice", data["account"])
	assert.EqualValues(t, 250, data["balance"])

	rec = ts.do(t, http.MethodGet, "/v1/treasury", "tok-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeData(t, rec)["treasury"])
}

func TestConfirmDeposit(t *testing.T) {
	ts := newTestServer(t)
	ts.gateway.SetBalance(gatewaydomain.ExternalRef("alice"), 1_000)

	rec := ts.do(t, http.MethodPost, "/v1/deposits/confirm", "tok-alice", map[string]any{
		"expected_amount": 1_000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 1_000, data["credited"])
	assert.EqualValues(t, 1_000, data["balance"])
	assert.Equal(t, uint64(1_000), ts.store.BalanceOf("alice"))
}

func TestConfirmDepositInsufficientExternal(t *testing.T) {
	ts := newTestServer(t)
	ts.gateway.SetBalance(gatewaydomain.ExternalRef("alice"), 400)

	rec := ts.do(t, http.MethodPost, "/v1/deposits/confirm", "tok-alice", map[string]any{
		"expected_amount": 1_000,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_external_funds", errorType(t, rec))
	assert.Equal(t, uint64(0), ts.store.BalanceOf("alice"))
}

func TestConfirmDepositValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/deposits/confirm", "tok-alice", map[string]any{
		"expected_amount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorType(t, rec))
}

func TestWithdraw(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 1_000)

	rec := ts.do(t, http.MethodPost, "/v1/withdrawals", "tok-alice", map[string]any{
		"amount": 400,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.NotEmpty(t, data["tx_ref"])
	assert.Equal(t, uint64(600), ts.store.BalanceOf("alice"))
	require.Len(t, ts.gateway.Transfers(), 1)
	assert.Equal(t, uint64(400), ts.gateway.Transfers()[0].Amount)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 100)

	rec := ts.do(t, http.MethodPost, "/v1/withdrawals", "tok-alice", map[string]any{
		"amount": 400,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_funds", errorType(t, rec))
	assert.Empty(t, ts.gateway.Transfers())
}

func TestWithdrawGatewayDown(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 1_000)
	ts.gateway.TransferFunc = func(string, uint64) (gatewaydomain.TransferResult, error) {
		return gatewaydomain.TransferResult{}, gatewaydomain.ErrGatewayUnavailable
	}

	rec := ts.do(t, http.MethodPost, "/v1/withdrawals", "tok-alice", map[string]any{
		"amount": 400,
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "gateway_unavailable", errorType(t, rec))
	// The debit was rolled back.
	assert.Equal(t, uint64(1_000), ts.store.BalanceOf("alice"))
}

func TestSubscriptionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 1_000)

	rec := ts.do(t, http.MethodPost, "/v1/subscriptions", "tok-alice", map[string]any{
		"creator": "bob",
		"amount":  100,
		"cadence": "24h",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 1, data["id"])
	assert.Equal(t, "alice", data["patron"])
	assert.Equal(t, "24h0m0s", data["cadence"])
	assert.Equal(t, true, data["active"])

	rec = ts.do(t, http.MethodGet, "/v1/subscriptions", "tok-alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/subscriptions/1", "tok-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Only the patron may cancel.
	rec = ts.do(t, http.MethodDelete, "/v1/subscriptions/1", "tok-bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorType(t, rec))

	rec = ts.do(t, http.MethodDelete, "/v1/subscriptions/1", "tok-alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sub, err := ts.subs.Get(1)
	require.NoError(t, err)
	assert.False(t, sub.Active)
}

func TestSubscriptionNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/subscriptions/99", "tok-alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorType(t, rec))

	rec = ts.do(t, http.MethodGet, "/v1/subscriptions/abc", "tok-alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSubscriptionValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 1_000)

	rec := ts.do(t, http.MethodPost, "/v1/subscriptions", "tok-alice", map[string]any{
		"creator": "bob",
		"amount":  100,
		"cadence": "soon",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/subscriptions", "tok-alice", map[string]any{
		"creator": "",
		"amount":  100,
		"cadence": "24h",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Amount beyond the patron's balance is refused up front.
	rec = ts.do(t, http.MethodPost, "/v1/subscriptions", "tok-alice", map[string]any{
		"creator": "bob",
		"amount":  5_000,
		"cadence": "24h",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_funds", errorType(t, rec))
}

func TestRunBillingCycleEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 1_000)

	rec := ts.do(t, http.MethodPost, "/v1/subscriptions", "tok-alice", map[string]any{
		"creator": "bob",
		"amount":  100,
		"cadence": "24h",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	ts.clk.Advance(24 * time.Hour)

	rec = ts.do(t, http.MethodPost, "/v1/billing/run", "tok-carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, true, data["ran"])
	assert.EqualValues(t, 1, data["due"])
	assert.EqualValues(t, 1, data["charged"])
	assert.EqualValues(t, 1, data["fees"])

	assert.Equal(t, uint64(900), ts.store.BalanceOf("alice"))
	assert.Equal(t, uint64(99), ts.store.BalanceOf("bob"))
	assert.Equal(t, uint64(1), ts.store.Treasury())
}

func TestSnapshotRoundTripOverAPI(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Credit("alice", 777)

	rec := ts.do(t, http.MethodGet, "/v1/snapshot", "tok-alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshotBody map[string]any
	requireJSON(t, rec, &snapshotBody)

	fresh := newTestServer(t)
	rec = fresh.do(t, http.MethodPost, "/v1/snapshot/restore", "tok-alice", snapshotBody["data"])
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(777), fresh.store.BalanceOf("alice"))
}
