package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
		webhookReplaysTotal,
		pollAttemptsPerResolve,
	)
}

var (
	// Count of webhook deliveries grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): bad_json|bad_secret|payment_not_found|confirm_error|method_not_allowed|unknown
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Count of /api/v1/webhook/payment deliveries by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of the webhook handler grouped by result.
	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of /api/v1/webhook/payment handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	webhookReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_webhook_replays_total",
			Help: "Webhook deliveries for payments already in a terminal status.",
		},
	)

	pollAttemptsPerResolve = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_poll_attempts",
			Help:    "Gateway poll attempts spent per payment resolution.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
)

func IncWebhookReplay() {
	webhookReplaysTotal.Inc()
}

func ObservePollAttempts(attempts int) {
	pollAttemptsPerResolve.Observe(float64(attempts))
}
