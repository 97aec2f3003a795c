package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConnections) }

var dbPoolConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_connections",
		Help: "pgx pool connections backing the session and order repositories.",
	},
	[]string{"state"}, // 'total', 'idle', 'in_use'
)

// SetDBPoolStats mirrors the pgxpool counters sampled by the stats loop.
func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolConnections.WithLabelValues("total").Set(float64(total))
	dbPoolConnections.WithLabelValues("idle").Set(float64(idle))
	dbPoolConnections.WithLabelValues("in_use").Set(float64(inUse))
}
