package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesDispatched counts outbound dispatch outcomes ("sent"/"failed").
	MessagesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_messages_dispatched_total",
			Help: "Outbound messages dispatched by outcome",
		},
		[]string{"outcome"},
	)

	// ProviderRetries counts retried provider send attempts.
	ProviderRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "console_provider_retries_total",
			Help: "Retried provider send attempts",
		},
	)

	// WebhookEvents counts processed webhook payload entries by kind
	// ("message", "status", "unknown_channel", "unknown_message").
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_webhook_events_total",
			Help: "Webhook events processed by kind",
		},
		[]string{"kind"},
	)
)
