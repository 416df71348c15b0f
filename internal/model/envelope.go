package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the payload relayed from the outbox to Kafka.
type Envelope struct {
	ID        string          `json:"id"` // ULID
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Seal wraps msg into an envelope with the given id.
func Seal(id string, msg Message, now time.Time) (Envelope, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", msg.Kind(), err)
	}
	return Envelope{ID: id, Kind: msg.Kind(), Payload: b, CreatedAt: now.UTC()}, nil
}

// Open decodes the payload into the concrete message type for its kind.
func (e Envelope) Open() (Message, error) {
	var (
		msg Message
		err error
	)
	switch e.Kind {
	case KindSubscribe:
		var m SubscribeToTopic
		err = json.Unmarshal(e.Payload, &m)
		msg = m
	case KindUnsubscribe:
		var m UnsubscribeFromTopic
		err = json.Unmarshal(e.Payload, &m)
		msg = m
	case KindPublish:
		var m PublishTopic
		err = json.Unmarshal(e.Payload, &m)
		msg = m
	default:
		return nil, fmt.Errorf("unknown message kind %q", e.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return msg, nil
}
