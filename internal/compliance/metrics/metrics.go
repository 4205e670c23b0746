package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts enforcement decisions by kind and reason
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purity_decisions_total",
			Help: "Total number of enforcement decisions",
		},
		[]string{"decision", "reason"},
	)

	// EnforceLatency tracks end-to-end Enforce latency
	EnforceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "purity_enforce_latency_seconds",
			Help:    "Enforce latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CollaboratorLatency tracks calls to scorer, voters and ledger
	CollaboratorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purity_collaborator_latency_seconds",
			Help:    "Collaborator call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collaborator"},
	)

	// CollaboratorErrors counts failed or timed-out collaborator calls
	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purity_collaborator_errors_total",
			Help: "Total number of collaborator failures",
		},
		[]string{"collaborator"},
	)

	// QuorumRounds counts consensus rounds by outcome
	QuorumRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purity_quorum_rounds_total",
			Help: "Total number of consensus rounds",
		},
		[]string{"outcome"},
	)

	// FrozenAmount mirrors FreezeLedger.TotalFrozen
	FrozenAmount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "purity_frozen_amount",
			Help: "Total amount ever frozen",
		},
	)

	// RedistributedAmount mirrors FreezeLedger.TotalRedistributed
	RedistributedAmount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "purity_redistributed_amount",
			Help: "Total frozen amount moved to target pools",
		},
	)

	// FreezesTotal counts freezes by redistribution target
	FreezesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purity_freezes_total",
			Help: "Total number of account freezes",
		},
		[]string{"target"},
	)

	// RedistributionRetries counts retried ledger writes
	RedistributionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purity_redistribution_retries_total",
			Help: "Total number of redistribution retries",
		},
	)

	// RedistributionAlerts counts redistributions that exhausted retries
	RedistributionAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purity_redistribution_alerts_total",
			Help: "Total number of redistributions that exhausted retries",
		},
	)

	// ExposureWindowEdges tracks the size of the exposure graph
	ExposureWindowEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "purity_exposure_window_edges",
			Help: "Number of edges in the exposure window",
		},
	)

	// AuditEmitErrors counts failed audit emissions per sink
	AuditEmitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purity_audit_emit_errors_total",
			Help: "Total number of audit events that failed to emit",
		},
		[]string{"sink"},
	)

	// FeedRecords counts records consumed from the transaction feed
	FeedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purity_feed_records_total",
			Help: "Total number of feed records by status",
		},
		[]string{"status"},
	)

	// DBConnectionPoolUsage tracks the percentage of used database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "purity_db_connection_pool_usage_percent",
			Help: "Percentage of database connections in use",
		},
	)
)
