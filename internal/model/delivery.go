package model

import "time"

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string {
	return string(s)
}

func (s DeliveryStatus) Valid() bool {
	return s == DeliverySent || s == DeliveryFailed
}

// Delivery is one attempted notification email, kept in the ClickHouse delivery log.
type Delivery struct {
	ID         string         `db:"id"`
	EnvelopeID string         `db:"envelope_id"`
	Topic      string         `db:"topic"`
	UserID     int64          `db:"user_id"`
	Email      string         `db:"email"`
	Status     DeliveryStatus `db:"status"`
	Error      string         `db:"error"`
	CreatedAt  time.Time      `db:"created_at"`
}
