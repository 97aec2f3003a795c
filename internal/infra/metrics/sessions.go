package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsCreatedTotal,
		sessionsFinishedTotal,
		sessionsExpiredTotal,
	)
}

var (
	sessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Sessions opened, labeled by mode and funding source.",
		},
		[]string{"mode", "funding"}, // funding: 'paid', 'free'
	)

	sessionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_finished_total",
			Help: "Sessions moved to a terminal status.",
		},
		[]string{"status"}, // 'exhausted', 'expired', 'cancelled'
	)

	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_sweep_total",
			Help: "Sessions finished by the wall-clock expiry sweeper.",
		},
	)
)

func IncSessionCreated(mode, funding string) {
	sessionsCreatedTotal.WithLabelValues(norm(mode), norm(funding)).Inc()
}

func IncSessionFinished(status string) {
	sessionsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncSessionsExpired(count int) {
	sessionsExpiredTotal.Add(float64(count))
}
