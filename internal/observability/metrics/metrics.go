// Package metrics exposes prometheus instruments for the ledger core.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics captures accounting and billing health signals.
type Metrics struct {
	depositsConfirmed  prometheus.Counter
	withdrawals        *prometheus.CounterVec
	withdrawalRollback *prometheus.CounterVec

	billingCycles          prometheus.Counter
	subscriptionsCharged   prometheus.Counter
	subscriptionsSuspended prometheus.Counter
	feesCollected          prometheus.Counter
	cycleDuration          prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// Default returns the singleton metrics registry.
func Default() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	depositsConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patronage_deposits_confirmed_total",
		Help: "Deposit confirmations credited to internal balances.",
	})
	withdrawals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_withdrawals_total",
		Help: "Withdrawal attempts by terminal outcome.",
	}, []string{"outcome"})
	withdrawalRollback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_withdrawal_rollbacks_total",
		Help: "Withdrawal rollbacks by cause, including uncertain gateway outcomes.",
	}, []string{"cause"})
	billingCycles := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patronage_billing_cycles_total",
		Help: "Billing cycle passes executed.",
	})
	subscriptionsCharged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patronage_subscriptions_charged_total",
		Help: "Subscription charges applied in full.",
	})
	subscriptionsSuspended := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patronage_subscriptions_suspended_total",
		Help: "Subscriptions suspended for insufficient patron funds.",
	})
	feesCollected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patronage_fees_collected_total",
		Help: "Platform fee tokens credited to the treasury.",
	})
	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "patronage_billing_cycle_duration_seconds",
		Help:    "Billing cycle pass latency.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	for _, c := range []prometheus.Collector{
		depositsConfirmed, withdrawals, withdrawalRollback,
		billingCycles, subscriptionsCharged, subscriptionsSuspended,
		feesCollected, cycleDuration,
	} {
		if err := registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return &Metrics{
		depositsConfirmed:      depositsConfirmed,
		withdrawals:            withdrawals,
		withdrawalRollback:     withdrawalRollback,
		billingCycles:          billingCycles,
		subscriptionsCharged:   subscriptionsCharged,
		subscriptionsSuspended: subscriptionsSuspended,
		feesCollected:          feesCollected,
		cycleDuration:          cycleDuration,
	}
}

func (m *Metrics) IncDepositConfirmed() {
	if m == nil {
		return
	}
	m.depositsConfirmed.Inc()
}

func (m *Metrics) IncWithdrawal(outcome string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncWithdrawalRollback(cause string) {
	if m == nil {
		return
	}
	m.withdrawalRollback.WithLabelValues(cause).Inc()
}

func (m *Metrics) IncBillingCycle() {
	if m == nil {
		return
	}
	m.billingCycles.Inc()
}

func (m *Metrics) IncCharged() {
	if m == nil {
		return
	}
	m.subscriptionsCharged.Inc()
}

func (m *Metrics) IncSuspended() {
	if m == nil {
		return
	}
	m.subscriptionsSuspended.Inc()
}

func (m *Metrics) AddFees(fee uint64) {
	if m == nil {
		return
	}
	m.feesCollected.Add(float64(fee))
}

func (m *Metrics) ObserveCycleDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

// HTTPMetrics records request counts and latency for the gin server.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpMetrics     *HTTPMetrics
)

func HTTP() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		requests := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patronage_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"})
		duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "patronage_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"})
		prometheus.MustRegister(requests, duration)
		httpMetrics = &HTTPMetrics{requests: requests, duration: duration}
	})
	return httpMetrics
}

// GinMiddleware instruments every request.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
