package server

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	accountingservice "github.com/smallbiznis/patronage/internal/accounting/service"
	"github.com/smallbiznis/patronage/internal/clock"
	"github.com/smallbiznis/patronage/internal/config"
	"github.com/smallbiznis/patronage/internal/gateway/gatewaytest"
	identityservice "github.com/smallbiznis/patronage/internal/identity/service"
	ledgerservice "github.com/smallbiznis/patronage/internal/ledger/service"
	"github.com/smallbiznis/patronage/internal/scheduler"
	snapshotservice "github.com/smallbiznis/patronage/internal/snapshot/service"
	subscriptionservice "github.com/smallbiznis/patronage/internal/subscription/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type testServer struct {
	srv     *Server
	engine  *gin.Engine
	store   *ledgerservice.Service
	subs    *subscriptionservice.Service
	gateway *gatewaytest.Fake
	clk     *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	store := ledgerservice.NewStore(log)
	clk := clock.NewFakeClock(testEpoch)
	gw := gatewaytest.New()

	acct := accountingservice.New(accountingservice.Params{
		Log:     log,
		Ledger:  store,
		Gateway: gw,
	})
	subs := subscriptionservice.NewLedger(log, clk, store)

	holder, err := config.NewStaticBillingConfigHolder(config.BillingConfig{
		FeePercent: 1,
		Schedule:   "@daily",
	})
	require.NoError(t, err)

	sched, err := scheduler.New(scheduler.Params{
		Log:             log,
		Clock:           clk,
		Ledger:          store,
		SubscriptionSvc: subs,
		Billing:         holder,
	})
	require.NoError(t, err)

	snap := snapshotservice.New(snapshotservice.Params{
		Log:             log,
		Clock:           clk,
		Ledger:          store,
		SubscriptionSvc: subs,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{AppName: "patronage-test"},
		Log:             log,
		Authn:           identityservice.NewStatic(log, "tok-alice=alice,tok-bob=bob,tok-carol=carol"),
		LedgerSvc:       store,
		AccountingSvc:   acct,
		SubscriptionSvc: subs,
		SnapshotSvc:     snap,
		Scheduler:       sched,
	})

	return &testServer{
		srv:     srv,
		engine:  engine,
		store:   store,
		subs:    subs,
		gateway: gw,
		clk:     clk,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Data
}

func requireJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var payload errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Type
}
