package model

import "time"

type User struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"` // may be empty; such users are skipped on fan-out
	Name      string    `db:"name"`
	APIKey    string    `db:"api_key"`
	CreatedAt time.Time `db:"created_at"`
}
