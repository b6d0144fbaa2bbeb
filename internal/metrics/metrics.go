package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotad_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotad_quota_upserts_total",
			Help: "Total number of quota upsert operations.",
		},
		[]string{"outcome"},
	)

	LaunchValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotad_launch_validations_total",
			Help: "Total number of launch token validations.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaUpsertsTotal,
		LaunchValidationsTotal,
	)
}
