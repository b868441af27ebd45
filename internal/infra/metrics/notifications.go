package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		notificationsTotal,
		remindersSentTotal,
		broadcastMessagesTotal,
	)
}

var (
	// Telegram DMs grouped by kind and delivery status.
	// kind: payment|referral|promo|trial|reminder
	// status: sent|error
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "User notifications by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)

	remindersSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Expiry reminders delivered, labeled by reminder slot.",
		},
		[]string{"slot"},
	)

	broadcastMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Broadcast deliveries by audience and status.",
		},
		[]string{"audience", "status"},
	)
)

func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncReminderSent(slot string) {
	remindersSentTotal.WithLabelValues(norm(slot)).Inc()
}

func IncBroadcastMessage(audience, status string) {
	broadcastMessagesTotal.WithLabelValues(norm(audience), norm(status)).Inc()
}
