package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	WriteTimeout time.Duration // default 10s
}

// Producer writes keyed messages to any topic. Messages with the same key land
// on the same partition.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(c ProducerConfig) *Producer {
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           wt,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{w: w}
}

// Publish writes msgs synchronously; each must carry its Topic.
func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return p.w.WriteMessages(ctx, msgs...)
}

// DeadLetter copies m to topic, keeping key and value and noting why it was parked.
func (p *Producer) DeadLetter(ctx context.Context, topic string, m Message, reason error) error {
	why := "unknown"
	if reason != nil {
		why = reason.Error()
	}
	headers := append([]kafka.Header{}, m.Headers...)
	headers = append(headers,
		kafka.Header{Key: "x-original-topic", Value: []byte(m.Topic)},
		kafka.Header{Key: "x-error", Value: []byte(why)},
	)
	return p.Publish(ctx, Message{Topic: topic, Key: m.Key, Value: m.Value, Headers: headers})
}

func (p *Producer) Close() error { return p.w.Close() }
