package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airaware_backend_calls_total",
			Help: "Total live AQI backend calls",
		},
		[]string{"endpoint", "status"},
	)

	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airaware_backend_latency_seconds",
			Help:    "Live AQI backend call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airaware_reading_cache_lookups_total",
			Help: "Live reading cache lookups by result",
		},
		[]string{"result"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airaware_fallbacks_total",
			Help: "Requests served from generated mock data because the backend was unavailable",
		},
		[]string{"kind"},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airaware_classifications_total",
			Help: "AQI values classified by band level",
		},
		[]string{"level"},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airaware_readings_ingested_total",
			Help: "Total readings successfully stored by the poller",
		},
		[]string{"city"},
	)
)
