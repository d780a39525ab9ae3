// Package metrics provides prometheus collectors for settlement activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SettlementEvents counts inbound settlement events by source
	// (postback, status, withdrawal, webhook, admin, poller) and outcome
	// (processed, duplicate, ignored, rejected, error).
	SettlementEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_events_total",
			Help: "Total number of settlement events by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	// PayoutRequests counts outbound payout provider calls by result.
	PayoutRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_requests_total",
			Help: "Total number of payout provider API calls",
		},
		[]string{"operation", "status"},
	)
)

// Event outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)
