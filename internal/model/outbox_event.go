package model

import "time"

type OutboxEvent struct {
	ID          int64      `db:"id"`
	Aggregate   string     `db:"aggregate"`    // e.g. "subscription", "article"
	AggregateID string     `db:"aggregate_id"` // envelope ULID
	Topic       string     `db:"topic"`        // kafka topic
	Key         string     `db:"msg_key"`      // kafka partition key
	Payload     []byte     `db:"payload"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"` // nil until relayed
}
