package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // 0 = commit synchronously per message
	MaxWait        time.Duration // default 50ms
}

// Consumer wraps a kafka-go group Reader. Offsets only advance on Commit.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumer(c ConsumerConfig) *Consumer {
	minBytes := c.MinBytes
	if minBytes <= 0 {
		minBytes = 1 << 10
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	maxWait := c.MaxWait
	if maxWait <= 0 {
		maxWait = 50 * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: c.CommitInterval,
		MaxWait:        maxWait,
	})

	return &Consumer{r: r}
}

type Message = kafka.Message

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }
