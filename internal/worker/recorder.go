package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"go.uber.org/zap"
)

// DeliveryWriter persists a batch of delivery records.
type DeliveryWriter interface {
	InsertBatch(ctx context.Context, rows []model.Delivery) error
}

// Recorder buffers delivery records from handlers and flushes them in
// batches when BatchSize is reached or every BatchWait.
type Recorder struct {
	w         DeliveryWriter
	in        chan model.Delivery
	done      chan struct{}
	closeOnce sync.Once
	batchSize int
	batchWait time.Duration
	log       *zap.Logger
}

func NewRecorder(w DeliveryWriter, batchSize int, batchWait time.Duration, log *zap.Logger) *Recorder {
	if batchSize <= 0 {
		batchSize = 200
	}
	if batchWait <= 0 {
		batchWait = 300 * time.Millisecond
	}
	return &Recorder{
		w:         w,
		in:        make(chan model.Delivery, batchSize*2),
		done:      make(chan struct{}),
		batchSize: batchSize,
		batchWait: batchWait,
		log:       log,
	}
}

// Record queues d. After Run has returned, records are dropped.
func (r *Recorder) Record(d model.Delivery) {
	select {
	case r.in <- d:
	case <-r.done:
	}
}

// Run flushes until ctx is cancelled, then writes whatever is still buffered.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.closeOnce.Do(func() { close(r.done) })

	tick := time.NewTicker(r.batchWait)
	defer tick.Stop()

	buf := make([]model.Delivery, 0, r.batchSize)
	flush := func(ctx context.Context) {
		if len(buf) == 0 {
			return
		}
		if err := r.w.InsertBatch(ctx, buf); err != nil {
			r.log.Error("delivery batch insert failed", zap.Int("rows", len(buf)), zap.Error(err))
		} else {
			r.log.Debug("deliveries flushed", zap.Int("rows", len(buf)))
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case d := <-r.in:
					buf = append(buf, d)
				default:
					break drain
				}
			}
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(fctx)
			cancel()
			return nil

		case d := <-r.in:
			buf = append(buf, d)
			if len(buf) >= r.batchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}
