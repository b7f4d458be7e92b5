package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sami_messages_sent_total",
			Help: "Number of messages committed.",
		},
	)

	ConversationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sami_conversations_created_total",
			Help: "Number of conversations created by the resolver.",
		},
	)

	PushDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sami_push_deliveries_total",
			Help: "Push notification attempts by result.",
		},
		[]string{"result"},
	)

	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sami_active_subscriptions",
			Help: "Number of open real-time subscriptions.",
		},
	)

	DroppedSubscriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sami_dropped_subscriptions_total",
			Help: "Subscriptions closed by the broker, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(ConversationsCreated)
	prometheus.MustRegister(PushDeliveries)
	prometheus.MustRegister(ActiveSubscriptions)
	prometheus.MustRegister(DroppedSubscriptions)
}
