package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersCreatedTotal,
		ordersCancelledTotal,
		paymentTransitionsTotal,
		paymentsRevenueTotal,
	)
}

var (
	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders opened with a pending payment, labeled by currency.",
		},
		[]string{"currency"},
	)

	ordersCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Orders cancelled, labeled by terminal status (cancelled/user_cancelled).",
		},
		[]string{"status"},
	)

	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Pending payments advanced to a terminal status.",
		},
		[]string{"status"}, // 'completed', 'failed', 'cancelled', 'refunded'
	)

	paymentsRevenueTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments.",
		},
	)
)

func IncOrderCreated(currency string) {
	ordersCreatedTotal.WithLabelValues(norm(currency)).Inc()
}

func IncOrderCancelled(status string) {
	ordersCancelledTotal.WithLabelValues(norm(status)).Inc()
}

func IncPaymentTransition(status string) {
	paymentTransitionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(amount int64) {
	paymentsRevenueTotal.Add(float64(amount))
}
