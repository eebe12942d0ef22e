// Package metrics exposes the Prometheus instrumentation for the
// ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncRuns counts finished sync runs by outcome status.
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxdesk_sync_runs_total",
		Help: "Completed mailbox sync runs by status.",
	}, []string{"status"})

	// EmailsFetched counts messages successfully converted to tickets.
	EmailsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inboxdesk_emails_fetched_total",
		Help: "Messages successfully converted to tickets.",
	})

	// MessageFailures counts messages that failed conversion and were
	// skipped by per-message isolation.
	MessageFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inboxdesk_message_failures_total",
		Help: "Messages that failed conversion and were skipped.",
	})

	// AttachmentsStored counts attachment payloads written to storage.
	AttachmentsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inboxdesk_attachments_stored_total",
		Help: "Attachment payloads written to storage.",
	})

	// AttachmentsRejected counts attachment payloads discarded by the
	// size cap or other extraction rules.
	AttachmentsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inboxdesk_attachments_rejected_total",
		Help: "Attachment payloads rejected during extraction.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
