package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/handler"
	"github.com/jmehdipour/topic-notifier/internal/kafka"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher commits the way a Kafka consumer group does: committing m sets
// the partition's group offset to m.Offset+1, which also covers every earlier
// record of that partition.
type fakeFetcher struct {
	msgs chan kafka.Message

	mu      sync.Mutex
	calls   int
	offsets map[int]int64   // partition -> next offset to read
	history map[int][]int64 // partition -> group offset after each commit
}

func newFakeFetcher(msgs ...kafka.Message) *fakeFetcher {
	f := &fakeFetcher{
		msgs:    make(chan kafka.Message, len(msgs)),
		offsets: map[int]int64{},
		history: map[int][]int64{},
	}
	for _, m := range msgs {
		f.msgs <- m
	}
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeFetcher) Commit(_ context.Context, m kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.offsets[m.Partition] = m.Offset + 1
	f.history[m.Partition] = append(f.history[m.Partition], m.Offset+1)
	return nil
}

func (f *fakeFetcher) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// groupOffset returns the committed offset of partition, 0 if none.
func (f *fakeFetcher) groupOffset(partition int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offsets[partition]
}

func (f *fakeFetcher) commitHistory(partition int) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.history[partition]...)
}

type fakeDLQ struct {
	mu      sync.Mutex
	parked  []kafka.Message
	reasons []error
	err     error
}

func (d *fakeDLQ) DeadLetter(_ context.Context, _ string, m kafka.Message, reason error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.parked = append(d.parked, m)
	d.reasons = append(d.reasons, reason)
	return nil
}

func record(t *testing.T, offset int64, msg model.Message) kafka.Message {
	t.Helper()
	return recordOn(t, 0, offset, msg)
}

func recordOn(t *testing.T, partition int, offset int64, msg model.Message) kafka.Message {
	t.Helper()

	env, err := model.Seal("env-"+msg.PartitionKey(), msg, time.Now())
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Topic: "lane", Partition: partition, Offset: offset, Key: []byte(msg.PartitionKey()), Value: b}
}

// runConsumer starts c and returns a stop func that cancels and waits for Run.
func runConsumer(t *testing.T, c *Consumer) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("consumer did not stop")
		}
	}
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	f := newFakeFetcher(
		record(t, 1, model.NewSubscribeToTopic(1, "a")),
		record(t, 2, model.NewSubscribeToTopic(2, "b")),
		record(t, 3, model.NewUnsubscribeFromTopic(3, "c")),
	)

	var handled atomic.Int32
	var sawEnvelope atomic.Bool
	h := handler.HandlerFunc(func(ctx context.Context, _ model.Message) error {
		handled.Add(1)
		if handler.EnvelopeID(ctx) != "" {
			sawEnvelope.Store(true)
		}
		return nil
	})

	c := NewConsumer(f, &fakeDLQ{}, "dlq", h, model.LaneSubscriptions, zap.NewNop())
	c.Workers = 2
	stop := runConsumer(t, c)

	assert.Eventually(t, func() bool { return f.commits() == 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.EqualValues(t, 3, handled.Load())
	assert.True(t, sawEnvelope.Load())
}

func TestConsumer_PoisonIsCommittedAndSkipped(t *testing.T) {
	unknown, _ := json.Marshal(model.Envelope{ID: "x", Kind: "bogus", Payload: json.RawMessage(`{}`)})
	f := newFakeFetcher(
		kafka.Message{Offset: 1, Value: []byte("not json")},
		kafka.Message{Offset: 2, Value: unknown},
		kafka.Message{Offset: 3, Value: []byte(`{"kind":"publish_topic"}`)},
	)

	var handled atomic.Int32
	h := handler.HandlerFunc(func(context.Context, model.Message) error {
		handled.Add(1)
		return nil
	})
	dlq := &fakeDLQ{}

	c := NewConsumer(f, dlq, "dlq", h, model.LaneNotifications, zap.NewNop())
	stop := runConsumer(t, c)

	assert.Eventually(t, func() bool { return f.commits() == 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Zero(t, handled.Load())
	assert.Empty(t, dlq.parked)
}

func TestConsumer_RetriesTransientFailures(t *testing.T) {
	f := newFakeFetcher(record(t, 7, model.NewPublishTopic("go", "s", "b")))

	var calls atomic.Int32
	h := handler.HandlerFunc(func(context.Context, model.Message) error {
		if calls.Add(1) < 3 {
			return errors.New("smtp timeout")
		}
		return nil
	})
	dlq := &fakeDLQ{}

	c := NewConsumer(f, dlq, "dlq", h, model.LaneNotifications, zap.NewNop())
	c.Retry = fastRetry(3)
	stop := runConsumer(t, c)

	assert.Eventually(t, func() bool { return f.commits() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.EqualValues(t, 3, calls.Load())
	assert.Empty(t, dlq.parked)
}

func TestConsumer_DeadLettersAfterMaxAttempts(t *testing.T) {
	f := newFakeFetcher(record(t, 9, model.NewPublishTopic("go", "s", "b")))

	boom := errors.New("smtp down")
	var calls atomic.Int32
	h := handler.HandlerFunc(func(context.Context, model.Message) error {
		calls.Add(1)
		return boom
	})
	dlq := &fakeDLQ{}

	c := NewConsumer(f, dlq, "dlq", h, model.LaneNotifications, zap.NewNop())
	c.Retry = fastRetry(2)
	stop := runConsumer(t, c)

	assert.Eventually(t, func() bool { return f.commits() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.EqualValues(t, 2, calls.Load())
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	require.Len(t, dlq.parked, 1)
	assert.EqualValues(t, 9, dlq.parked[0].Offset)
	assert.ErrorIs(t, dlq.reasons[0], boom)
}

func TestConsumer_CommitsPartitionInOffsetOrder(t *testing.T) {
	f := newFakeFetcher(
		record(t, 1, model.NewSubscribeToTopic(1, "slow")),
		record(t, 2, model.NewSubscribeToTopic(2, "fast")),
	)

	release := make(chan struct{})
	h := handler.HandlerFunc(func(_ context.Context, m model.Message) error {
		if m.(model.SubscribeToTopic).Topic == "slow" {
			<-release
		}
		return nil
	})

	c := NewConsumer(f, &fakeDLQ{}, "dlq", h, model.LaneSubscriptions, zap.NewNop())
	c.Workers = 4
	stop := runConsumer(t, c)

	// offset 2 must not move the group offset past the unfinished offset 1
	assert.Never(t, func() bool { return f.commits() > 0 }, 100*time.Millisecond, 5*time.Millisecond)
	close(release)

	assert.Eventually(t, func() bool { return f.groupOffset(0) == 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []int64{2, 3}, f.commitHistory(0))
}

func TestConsumer_DeadLetterFailureHaltsPartition(t *testing.T) {
	f := newFakeFetcher(
		recordOn(t, 0, 1, model.NewPublishTopic("go", "s", "b")),
		recordOn(t, 0, 2, model.NewSubscribeToTopic(1, "go")),
		recordOn(t, 1, 1, model.NewSubscribeToTopic(2, "rust")),
	)

	var subscribed sync.Map
	h := handler.HandlerFunc(func(_ context.Context, m model.Message) error {
		if s, ok := m.(model.SubscribeToTopic); ok {
			subscribed.Store(s.Topic, true)
			return nil
		}
		return errors.New("smtp down")
	})
	dlq := &fakeDLQ{err: errors.New("broker unavailable")}

	c := NewConsumer(f, dlq, "dlq", h, model.LaneNotifications, zap.NewNop())
	c.Workers = 2
	c.Retry = fastRetry(2)
	stop := runConsumer(t, c)

	assert.Eventually(t, func() bool { return f.groupOffset(1) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		_, ok := subscribed.Load("go")
		return ok
	}, 100*time.Millisecond, 5*time.Millisecond)
	stop()

	assert.Empty(t, f.commitHistory(0), "failed record and its successors stay uncommitted")
	assert.Empty(t, dlq.parked)
}

func TestConsumer_ShutdownMidRetryLeavesRecordUncommitted(t *testing.T) {
	f := newFakeFetcher(record(t, 4, model.NewPublishTopic("go", "s", "b")))

	var calls atomic.Int32
	h := handler.HandlerFunc(func(context.Context, model.Message) error {
		calls.Add(1)
		return errors.New("smtp down")
	})
	dlq := &fakeDLQ{}

	c := NewConsumer(f, dlq, "dlq", h, model.LaneNotifications, zap.NewNop())
	c.Retry = RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
	stop := runConsumer(t, c)

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Zero(t, f.commits())
	assert.Empty(t, dlq.parked)
}

func TestConsumer_RejectsInvalidLane(t *testing.T) {
	c := NewConsumer(newFakeFetcher(), &fakeDLQ{}, "dlq", handler.NewRouter(), "bogus", zap.NewNop())
	assert.Error(t, c.Run(context.Background()))
}
