package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutOrdersTotal counts checkout attempts by outcome.
	CheckoutOrdersTotal *prometheus.CounterVec
	// CheckoutRetriesTotal counts checkout transactions re-run after a version conflict.
	CheckoutRetriesTotal prometheus.Counter
	// CouponEvaluationsTotal counts coupon evaluations by result code.
	CouponEvaluationsTotal *prometheus.CounterVec
	// LoyaltyCoinsTotal counts coins moved through wallets.
	LoyaltyCoinsTotal *prometheus.CounterVec
	// DBQueryDuration records statement latency in milliseconds.
	DBQueryDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutOrdersTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_orders_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"}))
		CheckoutRetriesTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_conflict_retries_total",
			Help:      "Checkout transactions retried after a concurrent update.",
		}))
		CouponEvaluationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluations_total",
			Help:      "Count of coupon evaluations by result.",
		}, []string{"result"}))
		LoyaltyCoinsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_coins_total",
			Help:      "Loyalty coins redeemed or earned.",
		}, []string{"direction"}))
		DBQueryDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Database statement latency in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"operation"}))
	})
}

// ObserveCheckout records a checkout outcome. Safe to call before registration.
func ObserveCheckout(result string) {
	if CheckoutOrdersTotal != nil {
		CheckoutOrdersTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCheckoutRetry records a conflict retry.
func ObserveCheckoutRetry() {
	if CheckoutRetriesTotal != nil {
		CheckoutRetriesTotal.Inc()
	}
}

// ObserveCoupon records a coupon evaluation; result is "valid" or an error code.
func ObserveCoupon(result string) {
	if CouponEvaluationsTotal != nil {
		CouponEvaluationsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCoins records coins moving in direction "redeemed" or "earned".
func ObserveCoins(direction string, coins int64) {
	if LoyaltyCoinsTotal != nil && coins > 0 {
		LoyaltyCoinsTotal.WithLabelValues(direction).Add(float64(coins))
	}
}
