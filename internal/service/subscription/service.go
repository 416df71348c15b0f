package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrUserRequired  = errors.New("user required")
	ErrTopicNotFound = errors.New("topic not found")
)

// Enqueuer writes a message to the dispatch queue inside tx.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *sqlx.Tx, msg model.Message) (string, error)
}

// Result describes what a toggle queued.
type Result struct {
	Topic      string `json:"topic"`
	Subscribed bool   `json:"subscribed"` // state the user ends up in once the message is handled
	MessageID  string `json:"message_id"`
}

// Service toggles a user's subscription to a course or degree topic.
type Service struct {
	db      *sqlx.DB
	subs    repository.SubscriptionsRepository
	courses repository.CoursesRepository
	queue   Enqueuer
	log     *zap.Logger
}

func New(
	db *sqlx.DB,
	subs repository.SubscriptionsRepository,
	courses repository.CoursesRepository,
	queue Enqueuer,
	log *zap.Logger,
) *Service {
	return &Service{db: db, subs: subs, courses: courses, queue: queue, log: log}
}

// ToggleCourse subscribes the user to the course slug, or unsubscribes if already subscribed.
func (s *Service) ToggleCourse(ctx context.Context, userID int64, slug string) (Result, error) {
	c, err := s.courses.CourseBySlug(ctx, slug)
	if err != nil {
		return Result{}, fmt.Errorf("lookup course: %w", err)
	}
	if c == nil {
		return Result{}, ErrTopicNotFound
	}
	return s.Toggle(ctx, userID, c.Slug)
}

// ToggleDegree is ToggleCourse for degree slugs.
func (s *Service) ToggleDegree(ctx context.Context, userID int64, slug string) (Result, error) {
	d, err := s.courses.DegreeBySlug(ctx, slug)
	if err != nil {
		return Result{}, fmt.Errorf("lookup degree: %w", err)
	}
	if d == nil {
		return Result{}, ErrTopicNotFound
	}
	return s.Toggle(ctx, userID, d.Slug)
}

// Toggle removes an existing subscription and queues UnsubscribeFromTopic, or
// queues SubscribeToTopic when none exists. The row is created later by the
// subscribe handler; removal happens here, in the same transaction as the enqueue.
func (s *Service) Toggle(ctx context.Context, userID int64, topic string) (Result, error) {
	if userID <= 0 {
		return Result{}, ErrUserRequired
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.subs.FindOne(ctx, tx, userID, topic)
	if err != nil {
		return Result{}, fmt.Errorf("find subscription: %w", err)
	}

	res := Result{Topic: topic}
	var msg model.Message
	if existing != nil {
		if err := s.subs.Remove(ctx, tx, *existing); err != nil {
			return Result{}, fmt.Errorf("remove subscription: %w", err)
		}
		msg = model.NewUnsubscribeFromTopic(userID, topic)
	} else {
		msg = model.NewSubscribeToTopic(userID, topic)
		res.Subscribed = true
	}

	if res.MessageID, err = s.queue.Enqueue(ctx, tx, msg); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}

	s.log.Info("subscription toggled",
		zap.Int64("user_id", userID),
		zap.String("topic", topic),
		zap.Bool("subscribed", res.Subscribed),
		zap.String("message_id", res.MessageID),
	)
	return res, nil
}
