package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sb_reservations_total",
			Help: "Reservation attempts by terminal state and reason",
		},
		[]string{"state", "reason"},
	)

	PaymentPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sb_payment_polls_total",
			Help: "Payment status polls issued",
		},
	)

	PaymentSettleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sb_payment_settle_seconds",
			Help:    "Time from push to terminal payment state",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	CommitRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sb_commit_retries_total",
			Help: "Retries of the availability write during commit",
		},
	)

	PartialCommitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sb_partial_commits_total",
			Help: "Confirmed bookings whose availability write was deferred to reconciliation",
		},
	)

	ReconcileRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sb_reconcile_repairs_total",
			Help: "Repairs applied by the reconciliation pass",
		},
		[]string{"kind"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sb_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sb_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sb_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
