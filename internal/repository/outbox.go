package repository

import (
	"context"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmoiron/sqlx"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Insert writes a single outbox event. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, ev model.OutboxEvent) error
	// FetchPending returns up to limit unrelayed events, oldest first.
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// Insert adds an event row to outbox; the relay picks it up and publishes it
// to Kafka based on the `topic` column.
func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, ev model.OutboxEvent) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, msg_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, ev.Aggregate, ev.AggregateID, ev.Topic, ev.Key, ev.Payload, ev.CreatedAt)

		return err
	})
}

func (r *OutboxRepositoryImpl) FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []model.OutboxEvent
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, aggregate, aggregate_id, topic, msg_key, payload, created_at, published_at
		  FROM outbox
		 WHERE published_at IS NULL
		 ORDER BY id
		 LIMIT ?
	`, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkPublished stamps many rows using a single statement.
func (r *OutboxRepositoryImpl) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const base = `UPDATE outbox SET published_at = ? WHERE id IN (?)`
	query, args, err := sqlx.In(base, at, ids)
	if err != nil {
		return err
	}
	query = r.db.Rebind(query)

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
