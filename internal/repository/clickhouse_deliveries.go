package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmoiron/sqlx"
)

// DeliveryFilter narrows a delivery-log listing. Zero values mean "any".
type DeliveryFilter struct {
	Topic  string
	Status model.DeliveryStatus
	UserID int64
	Limit  int
	Offset int
}

// DeliveriesRepository appends to and reads from the ClickHouse delivery log.
type DeliveriesRepository interface {
	InsertBatch(ctx context.Context, rows []model.Delivery) error
	List(ctx context.Context, f DeliveryFilter) ([]model.Delivery, error)
}

type chDeliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewDeliveriesRepository(ch *sqlx.DB) DeliveriesRepository {
	return &chDeliveriesRepository{ch: ch}
}

// InsertBatch sends all rows as one ClickHouse block (prepared insert inside a tx).
func (r *chDeliveriesRepository) InsertBatch(ctx context.Context, rows []model.Delivery) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deliveries (id, envelope_id, topic, user_id, email, status, error, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, d := range rows {
		if _, err := stmt.ExecContext(ctx,
			d.ID, d.EnvelopeID, d.Topic, d.UserID, d.Email, d.Status.String(), d.Error, d.CreatedAt,
		); err != nil {
			return fmt.Errorf("append delivery %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

func (r *chDeliveriesRepository) List(ctx context.Context, f DeliveryFilter) ([]model.Delivery, error) {
	query, args, err := buildDeliveriesQuery(f)
	if err != nil {
		return nil, err
	}

	var rows []model.Delivery
	if err := r.ch.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func buildDeliveriesQuery(f DeliveryFilter) (string, []any, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := sq.Select("id", "envelope_id", "topic", "user_id", "email", "status", "error", "created_at").
		From("deliveries")
	if f.Topic != "" {
		q = q.Where(sq.Eq{"topic": f.Topic})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status.String()})
	}
	if f.UserID > 0 {
		q = q.Where(sq.Eq{"user_id": f.UserID})
	}
	q = q.OrderBy("created_at DESC").Limit(uint64(f.Limit)).Offset(uint64(f.Offset))

	query, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build deliveries query: %w", err)
	}
	return query, args, nil
}
