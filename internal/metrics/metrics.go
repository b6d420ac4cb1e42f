package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_upstream_attempts_total",
			Help: "Catalog HTTP attempts by outcome (ok, rate_limited, http_error, network_error)",
		},
		[]string{"outcome"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roulette_upstream_breaker_state",
			Help: "Catalog circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ResultCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_result_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	PoolRefills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_pool_refills_total",
			Help: "Pool refills by outcome (filled, empty, reused, failed)",
		},
		[]string{"outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roulette_sessions_active",
			Help: "Roulette engines held in memory",
		},
	)

	Draws = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_draws_total",
			Help: "Draw requests by outcome (drawn, ignored, regenerated, exhausted, empty)",
		},
		[]string{"outcome"},
	)

	DetailLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_detail_loads_total",
			Help: "Detail lookups by source (cache, preload, fetch, error)",
		},
		[]string{"source"},
	)
)
