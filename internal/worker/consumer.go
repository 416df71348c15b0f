package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/handler"
	"github.com/jmehdipour/topic-notifier/internal/kafka"
	"github.com/jmehdipour/topic-notifier/internal/metrics"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Fetcher is the read side of a consumer group.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// DeadLetterer parks a record that exhausted its retries.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, topic string, m kafka.Message, reason error) error
}

type RetryPolicy struct {
	MaxAttempts int           // total tries, including the first
	BaseDelay   time.Duration // first backoff, doubled per retry
	MaxDelay    time.Duration // cap per backoff; 0 = uncapped
}

// Consumer:
// - fetches envelopes from one lane,
// - hands each decoded message to the handler on one of Workers goroutines,
// - retries failures with exponential backoff, then dead-letters them,
// - commits the offset once the record is handled, parked or found undecodable.
//
// A partition is always owned by one worker, so its records are handled and
// committed in offset order. A commit moves the group offset past every
// earlier record of the partition, so once a record has to stay uncommitted
// the worker stops handling that partition until the consumer restarts.
type Consumer struct {
	Fetcher         Fetcher
	DeadLetter      DeadLetterer
	DeadLetterTopic string
	Handler         handler.Handler
	Lane            model.Lane
	Workers         int
	Retry           RetryPolicy
	Log             *zap.Logger
}

func NewConsumer(f Fetcher, dl DeadLetterer, dlTopic string, h handler.Handler, lane model.Lane, log *zap.Logger) *Consumer {
	return &Consumer{
		Fetcher:         f,
		DeadLetter:      dl,
		DeadLetterTopic: dlTopic,
		Handler:         h,
		Lane:            lane,
		Workers:         8,
		Retry:           RetryPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second},
		Log:             log,
	}
}

// Run blocks until ctx is cancelled and every goroutine it started has returned.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.Lane.Valid() {
		return fmt.Errorf("consumer: invalid lane %q", c.Lane)
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 100 * time.Millisecond
	}

	shards := make([]chan kafka.Message, c.Workers)
	for i := range shards {
		shards[i] = make(chan kafka.Message, 2)
	}
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		c.fetchLoop(ctx, shards)
	}()

	for _, ch := range shards {
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			c.processLoop(ctx, in)
		}(ch)
	}

	c.Log.Info("consumer started", zap.String("lane", c.Lane.String()), zap.Int("workers", c.Workers))
	wg.Wait()
	c.Log.Info("consumer stopped", zap.String("lane", c.Lane.String()))
	return nil
}

func (c *Consumer) fetchLoop(ctx context.Context, shards []chan kafka.Message) {
	for {
		m, err := c.Fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		select {
		case shards[shardOf(m, len(shards))] <- m:
		case <-ctx.Done():
			return
		}
	}
}

func shardOf(m kafka.Message, n int) int {
	p := m.Partition % n
	if p < 0 {
		p += n
	}
	return p
}

func (c *Consumer) processLoop(ctx context.Context, in <-chan kafka.Message) {
	halted := map[int]bool{}
	for m := range in {
		if ctx.Err() != nil || halted[m.Partition] {
			continue // uncommitted records are redelivered
		}
		if !c.processOne(ctx, m) && ctx.Err() == nil {
			halted[m.Partition] = true
			metrics.MessagesTotal.WithLabelValues("halted", c.Lane.String()).Inc()
			c.Log.Error("partition halted until restart",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

// processOne reports whether m was committed.
func (c *Consumer) processOne(ctx context.Context, m kafka.Message) bool {
	env, msg, err := decode(m.Value)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("poison", c.Lane.String()).Inc()
		c.Log.Error("dropping undecodable record",
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return c.commit(ctx, m)
	}

	hctx := handler.WithEnvelopeID(ctx, env.ID)
	err = retry.Do(hctx, c.backoff(), func(ctx context.Context) error {
		if err := c.Handler.Handle(ctx, msg); err != nil {
			metrics.MessagesTotal.WithLabelValues("failed", c.Lane.String()).Inc()
			c.Log.Warn("handler failed", zap.String("envelope_id", env.ID), zap.String("kind", env.Kind.String()), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})

	if err == nil {
		metrics.MessagesTotal.WithLabelValues("handled", c.Lane.String()).Inc()
		return c.commit(ctx, m)
	}
	if ctx.Err() != nil {
		// shutting down mid-retry; leave uncommitted
		return false
	}

	if err := c.DeadLetter.DeadLetter(ctx, c.DeadLetterTopic, m, err); err != nil {
		c.Log.Error("dead-letter failed; record left uncommitted",
			zap.String("envelope_id", env.ID),
			zap.Error(err),
		)
		return false
	}
	metrics.MessagesTotal.WithLabelValues("dead_lettered", c.Lane.String()).Inc()
	c.Log.Error("record dead-lettered",
		zap.String("envelope_id", env.ID),
		zap.String("kind", env.Kind.String()),
		zap.Int("attempts", c.Retry.MaxAttempts),
		zap.Error(err),
	)
	return c.commit(ctx, m)
}

func (c *Consumer) backoff() retry.Backoff {
	b := retry.NewExponential(c.Retry.BaseDelay)
	if c.Retry.MaxDelay > 0 {
		b = retry.WithCappedDuration(c.Retry.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(c.Retry.MaxAttempts-1), b)
}

// commit failures are logged only; the next commit on the partition covers m.
func (c *Consumer) commit(ctx context.Context, m kafka.Message) bool {
	if err := c.Fetcher.Commit(ctx, m); err != nil {
		c.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
	return true
}

var errNoID = errors.New("envelope missing id")

func decode(b []byte) (model.Envelope, model.Message, error) {
	var env model.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, nil, fmt.Errorf("bad envelope json: %w", err)
	}
	if env.ID == "" {
		return env, nil, errNoID
	}
	msg, err := env.Open()
	return env, msg, err
}
