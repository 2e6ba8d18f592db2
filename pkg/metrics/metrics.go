// Package metrics exposes the bridge's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesRelayed counts messages accepted by moderation and written
	// to the local log, labeled by origin platform.
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amerlink_messages_relayed_total",
		Help: "Messages accepted and written to the message log.",
	}, []string{"platform"})

	// MessagesRejected counts messages dropped by moderation, labeled by
	// rejection reason.
	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amerlink_messages_rejected_total",
		Help: "Messages dropped by the moderation pipeline.",
	}, []string{"reason"})

	// DeliveryFailures counts per-peer transport failures during fanout.
	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amerlink_delivery_failures_total",
		Help: "Per-peer delivery failures during fanout.",
	}, []string{"platform"})

	// BansIssued counts bans applied by the moderation ledger.
	BansIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amerlink_bans_issued_total",
		Help: "Bans applied by the moderation ledger.",
	})

	// MessagesRedacted counts messages delivered with masked content.
	MessagesRedacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amerlink_messages_redacted_total",
		Help: "Messages delivered with blocked words masked.",
	})
)
