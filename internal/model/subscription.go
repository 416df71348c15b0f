package model

import "time"

// Subscription says "this user wants notifications for this topic".
// (user_id, topic) is not unique at the data layer.
type Subscription struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Topic     string    `db:"topic"`
	CreatedAt time.Time `db:"created_at"`
}
