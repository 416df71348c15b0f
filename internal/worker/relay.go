package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/kafka"
	"github.com/jmehdipour/topic-notifier/internal/metrics"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"go.uber.org/zap"
)

// Publisher writes records to Kafka.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay moves committed outbox rows to Kafka in id order and marks them
// published. A crash between publish and mark republishes the rows.
type Relay struct {
	Outbox    repository.OutboxRepository
	Publisher Publisher
	Interval  time.Duration
	BatchSize int
	Log       *zap.Logger
}

func NewRelay(outbox repository.OutboxRepository, pub Publisher, interval time.Duration, batchSize int, log *zap.Logger) *Relay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{Outbox: outbox, Publisher: pub, Interval: interval, BatchSize: batchSize, Log: log}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	tick := time.NewTicker(r.Interval)
	defer tick.Stop()

	r.Log.Info("outbox relay started", zap.Duration("interval", r.Interval), zap.Int("batch_size", r.BatchSize))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.Log.Warn("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// Drain relays batches until the outbox has no pending rows. Returns the number relayed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.relayBatch(ctx)
		total += n
		if err != nil || n < r.BatchSize {
			return total, err
		}
	}
}

func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	rows, err := r.Outbox.FetchPending(ctx, r.BatchSize)
	if err != nil || len(rows) == 0 {
		return 0, err
	}

	msgs := make([]kafka.Message, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, ev := range rows {
		msgs = append(msgs, kafka.Message{
			Topic: ev.Topic,
			Key:   []byte(ev.Key),
			Value: ev.Payload,
			Time:  ev.CreatedAt,
		})
		ids = append(ids, ev.ID)
	}

	if err := r.Publisher.Publish(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.Outbox.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return 0, err
	}

	metrics.OutboxRelayedTotal.Add(float64(len(rows)))
	return len(rows), nil
}
