package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/config"
	"github.com/jmehdipour/topic-notifier/internal/metrics"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/util"
	"github.com/jmoiron/sqlx"
)

// Service is the dispatch queue's write side: it seals messages into
// envelopes and parks them in the outbox for the relay to publish.
type Service struct {
	outbox repository.OutboxRepository
	topics config.KafkaTopics
	now    func() time.Time
}

// New constructs the queue service.
func New(outboxRepo repository.OutboxRepository, topics config.KafkaTopics) *Service {
	return &Service{outbox: outboxRepo, topics: topics, now: time.Now}
}

// Enqueue seals msg with a fresh ULID and writes it to the outbox.
// With a non-nil tx the message becomes visible only when the caller commits,
// so it is never delivered for a rolled-back change. Returns the envelope ID.
func (s *Service) Enqueue(ctx context.Context, tx *sqlx.Tx, msg model.Message) (string, error) {
	if !msg.Kind().Valid() {
		return "", fmt.Errorf("enqueue: unsupported kind %q", msg.Kind())
	}

	now := s.now().UTC()
	env, err := model.Seal(util.NewID(), msg, now)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	lane := msg.Kind().Lane()
	ev := model.OutboxEvent{
		Aggregate:   aggregateOf(msg.Kind()),
		AggregateID: env.ID,
		Topic:       s.topicFor(lane),
		Key:         msg.PartitionKey(),
		Payload:     payload,
		CreatedAt:   now,
	}
	if err := s.outbox.Insert(ctx, tx, ev); err != nil {
		return "", fmt.Errorf("insert outbox: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues("enqueued", lane.String()).Inc()
	return env.ID, nil
}

func (s *Service) topicFor(l model.Lane) string {
	if l == model.LaneNotifications {
		return s.topics.Notifications
	}
	return s.topics.Subscriptions
}

func aggregateOf(k model.Kind) string {
	if k == model.KindPublish {
		return "article"
	}
	return "subscription"
}
