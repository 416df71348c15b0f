package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicn_messages_total",
			Help: "Queue message lifecycle counter by stage and lane",
		},
		[]string{"stage", "lane"}, // enqueued|handled|failed|dead_lettered|poison , subscriptions|notifications
	)

	EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicn_emails_total",
			Help: "Notification emails by result",
		},
		[]string{"result"}, // sent|failed|skipped
	)

	OutboxRelayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topicn_outbox_relayed_total",
			Help: "Outbox rows written to Kafka",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			MessagesTotal,
			EmailsTotal,
			OutboxRelayedTotal,
		)
	})
}
