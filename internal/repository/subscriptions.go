package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmoiron/sqlx"
)

// SubscriptionsRepository persists (user, topic) subscriptions.
// Mutations take an optional tx: nil commits immediately, non-nil defers to the caller's commit.
// No uniqueness is enforced; callers check FindOne first when duplicates are undesired.
type SubscriptionsRepository interface {
	Add(ctx context.Context, tx *sqlx.Tx, s *model.Subscription) error
	Remove(ctx context.Context, tx *sqlx.Tx, s model.Subscription) error
	FindByTopic(ctx context.Context, topic string) ([]model.Subscription, error)
	FindOne(ctx context.Context, tx *sqlx.Tx, userID int64, topic string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID int64, topicPrefix string) ([]model.Subscription, error)
}

type SubscriptionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSubscriptionsRepository(db *sqlx.DB) *SubscriptionsRepositoryImpl {
	return &SubscriptionsRepositoryImpl{db: db}
}

var _ SubscriptionsRepository = (*SubscriptionsRepositoryImpl)(nil)

// Add inserts s and sets s.ID.
func (r *SubscriptionsRepositoryImpl) Add(ctx context.Context, tx *sqlx.Tx, s *model.Subscription) error {
	const q = `INSERT INTO subscriptions (user_id, topic, created_at) VALUES (?, ?, ?)`

	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, s.UserID, s.Topic, s.CreatedAt)
		if err != nil {
			return err
		}
		s.ID, err = res.LastInsertId()
		return err
	})
}

// Remove deletes exactly the given row.
func (r *SubscriptionsRepositoryImpl) Remove(ctx context.Context, tx *sqlx.Tx, s model.Subscription) error {
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, s.ID)
		return err
	})
}

func (r *SubscriptionsRepositoryImpl) FindByTopic(ctx context.Context, topic string) ([]model.Subscription, error) {
	var rows []model.Subscription
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, topic, created_at
		  FROM subscriptions
		 WHERE topic = ?
		 ORDER BY id
	`, topic); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns the oldest matching row, or nil when the user is not subscribed.
func (r *SubscriptionsRepositoryImpl) FindOne(ctx context.Context, tx *sqlx.Tx, userID int64, topic string) (*model.Subscription, error) {
	var s model.Subscription
	err := sqlx.GetContext(ctx, querier(r.db, tx), &s, `
		SELECT id, user_id, topic, created_at
		  FROM subscriptions
		 WHERE user_id = ? AND topic = ?
		 ORDER BY id
		 LIMIT 1
	`, userID, topic)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByUser lists a user's subscriptions, optionally narrowed to topics starting with topicPrefix.
func (r *SubscriptionsRepositoryImpl) ListByUser(ctx context.Context, userID int64, topicPrefix string) ([]model.Subscription, error) {
	q := sq.Select("id", "user_id", "topic", "created_at").
		From("subscriptions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("topic", "id")
	if topicPrefix != "" {
		q = q.Where(sq.Like{"topic": topicPrefix + "%"})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []model.Subscription
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
