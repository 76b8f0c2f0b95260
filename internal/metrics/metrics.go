package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerPostings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_postings_total",
			Help: "Financial statements written, by type, origin and status",
		},
		[]string{"type", "origin", "status"},
	)

	CommissionsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commissions_written_total",
			Help: "Commission rows created or updated by the calculator",
		},
		[]string{"action"},
	)

	CommissionPayouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_payouts_total",
			Help: "Commission payout attempts by outcome",
		},
		[]string{"outcome"},
	)

	RaffleAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_allocations_total",
			Help: "Raffle ticket allocation attempts by result",
		},
		[]string{"result"},
	)

	RaffleAllocationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raffle_allocation_seconds",
			Help:    "Duration of successful raffle ticket allocations",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicketBindConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_ticket_bind_conflicts_total",
			Help: "Ticket binds rejected by the uniqueness constraint and retried",
		},
	)
)
