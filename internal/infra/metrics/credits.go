package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(creditMinutesTotal) }

var creditMinutesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "credit_minutes_purchased_total",
		Help: "Total purchased time-credit minutes across all users.",
	},
)

func AddCreditMinutes(minutes int) {
	creditMinutesTotal.Add(float64(minutes))
}
