package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		generationTotal,
		generationLatencyMs,
		generationJobsTotal,
	)
}

var (
	generationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_total",
			Help: "Content generation calls by provider and result.",
		},
		[]string{"provider", "result"}, // result: 'ok', 'error'
	)

	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_latency_ms",
			Help:    "Generation call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"provider"},
	)

	generationJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_total",
			Help: "Background regeneration jobs processed, labeled by status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)
)

func IncGeneration(provider, result string) {
	generationTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}

func ObserveGenerationLatency(provider string, latencyMs int) {
	generationLatencyMs.WithLabelValues(norm(provider)).Observe(float64(latencyMs))
}

func IncGenerationJob(status string) {
	generationJobsTotal.WithLabelValues(norm(status)).Inc()
}
