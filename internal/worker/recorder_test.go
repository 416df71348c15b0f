package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]model.Delivery
}

func (w *fakeWriter) InsertBatch(_ context.Context, rows []model.Delivery) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, append([]model.Delivery(nil), rows...))
	return nil
}

func (w *fakeWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func TestRecorder_FlushesOnSizeAndShutdown(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, 2, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Record(model.Delivery{ID: "1", Status: model.DeliverySent})
	r.Record(model.Delivery{ID: "2", Status: model.DeliverySent})
	assert.Eventually(t, func() bool { return w.total() == 2 }, time.Second, 5*time.Millisecond)

	r.Record(model.Delivery{ID: "3", Status: model.DeliveryFailed})
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, w.total())

	// After shutdown Record must not block.
	r.Record(model.Delivery{ID: "4"})
}

func TestRecorder_FlushesOnTick(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, 100, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Record(model.Delivery{ID: "1"})
	assert.Eventually(t, func() bool { return w.total() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
