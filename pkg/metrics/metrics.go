package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cake_orders_sync_runs_total",
		Help: "Fetch-and-reconcile passes, by result.",
	},
		[]string{"result"},
	)

	SubmissionsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cake_orders_submissions_written_total",
		Help: "Submission documents written by reconciliation, by outcome (inserted, updated, failed).",
	},
		[]string{"outcome"},
	)

	SubmissionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cake_orders_submissions_rejected_total",
		Help: "Fetched submissions rejected because they could not be decoded.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cake_orders_transitions_total",
		Help: "Workflow transitions, by operation and result (applied, noop, error).",
	},
		[]string{"operation", "result"},
	)

	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cake_orders_webhook_requests_total",
		Help: "Webhook deliveries, by HTTP status code.",
	},
		[]string{"status"},
	)
)
