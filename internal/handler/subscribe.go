package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"go.uber.org/zap"
)

// SubscribeHandler applies SubscribeToTopic: it records the subscription
// unless one already exists. Missing users are ignored.
type SubscribeHandler struct {
	users repository.UsersRepository
	subs  repository.SubscriptionsRepository
	log   *zap.Logger
}

func NewSubscribeHandler(users repository.UsersRepository, subs repository.SubscriptionsRepository, log *zap.Logger) *SubscribeHandler {
	return &SubscribeHandler{users: users, subs: subs, log: log}
}

func (h *SubscribeHandler) Handle(ctx context.Context, msg model.Message) error {
	m, ok := msg.(model.SubscribeToTopic)
	if !ok {
		return fmt.Errorf("subscribe handler: unexpected %T", msg)
	}

	user, err := h.users.GetByID(ctx, m.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", m.UserID, err)
	}
	if user == nil {
		h.log.Debug("subscribe: user not found", zap.Int64("user_id", m.UserID), zap.String("topic", m.Topic))
		return nil
	}

	existing, err := h.subs.FindOne(ctx, nil, m.UserID, m.Topic)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	if existing != nil {
		return nil
	}

	s := &model.Subscription{UserID: m.UserID, Topic: m.Topic, CreatedAt: time.Now().UTC()}
	if err := h.subs.Add(ctx, nil, s); err != nil {
		return fmt.Errorf("add subscription: %w", err)
	}

	h.log.Info("subscribed",
		zap.Int64("user_id", m.UserID),
		zap.String("topic", m.Topic),
		zap.String("envelope_id", EnvelopeID(ctx)),
	)
	return nil
}

// UnsubscribeHandler acknowledges UnsubscribeFromTopic. The row was already
// removed when the message was queued.
type UnsubscribeHandler struct {
	log *zap.Logger
}

func NewUnsubscribeHandler(log *zap.Logger) *UnsubscribeHandler {
	return &UnsubscribeHandler{log: log}
}

func (h *UnsubscribeHandler) Handle(ctx context.Context, msg model.Message) error {
	if m, ok := msg.(model.UnsubscribeFromTopic); ok {
		h.log.Debug("unsubscribe acknowledged", zap.Int64("user_id", m.UserID), zap.String("topic", m.Topic))
	}
	return nil
}
