package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BoardOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_board_ops_total",
			Help: "Board operations applied, by operation name",
		},
		[]string{"op"},
	)

	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_persist_failures_total",
			Help: "Best-effort persistence writes that failed",
		},
	)

	TicketsSold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_tickets_sold",
			Help: "Tickets currently reserved or paid",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
