package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/mailer"
	"github.com/jmehdipour/topic-notifier/internal/metrics"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/util"
	"go.uber.org/zap"
)

// Transport sends one email.
type Transport interface {
	Send(ctx context.Context, e model.Email) error
}

// Recorder receives one record per attempted email. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(d model.Delivery)
}

// PublishHandler fans a PublishTopic out to every subscriber of its topic,
// one email each, in subscription order. Subscribers that no longer exist or
// have no usable email address are skipped. The first transport error aborts
// the remaining sends and is returned.
type PublishHandler struct {
	users     repository.UsersRepository
	subs      repository.SubscriptionsRepository
	transport Transport
	recorder  Recorder
	from      string
	log       *zap.Logger
}

func NewPublishHandler(
	users repository.UsersRepository,
	subs repository.SubscriptionsRepository,
	transport Transport,
	from string,
	log *zap.Logger,
) *PublishHandler {
	return &PublishHandler{users: users, subs: subs, transport: transport, from: from, log: log}
}

// WithRecorder sets where delivery records go. nil disables recording.
func (h *PublishHandler) WithRecorder(r Recorder) *PublishHandler {
	h.recorder = r
	return h
}

func (h *PublishHandler) Handle(ctx context.Context, msg model.Message) error {
	m, ok := msg.(model.PublishTopic)
	if !ok {
		return fmt.Errorf("publish handler: unexpected %T", msg)
	}

	subs, err := h.subs.FindByTopic(ctx, m.Topic)
	if err != nil {
		return fmt.Errorf("subscribers of %q: %w", m.Topic, err)
	}

	sent := 0
	for _, s := range subs {
		user, err := h.users.GetByID(ctx, s.UserID)
		if err != nil {
			return fmt.Errorf("load user %d: %w", s.UserID, err)
		}
		if user == nil || user.Email == "" {
			metrics.EmailsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		email := model.Email{From: h.from, To: user.Email, Subject: m.Subject, HTML: m.Body}
		if err := h.transport.Send(ctx, email); err != nil {
			if errors.Is(err, mailer.ErrInvalidAddress) {
				metrics.EmailsTotal.WithLabelValues("skipped").Inc()
				h.record(ctx, m.Topic, user, model.DeliveryFailed, err)
				h.log.Warn("skipping subscriber with invalid address",
					zap.String("topic", m.Topic),
					zap.Int64("user_id", user.ID),
					zap.Error(err),
				)
				continue
			}
			metrics.EmailsTotal.WithLabelValues("failed").Inc()
			h.record(ctx, m.Topic, user, model.DeliveryFailed, err)
			h.log.Warn("notification send failed",
				zap.String("topic", m.Topic),
				zap.Int64("user_id", user.ID),
				zap.Int("sent", sent),
				zap.Error(err),
			)
			return fmt.Errorf("send to user %d: %w", user.ID, err)
		}

		sent++
		metrics.EmailsTotal.WithLabelValues("sent").Inc()
		h.record(ctx, m.Topic, user, model.DeliverySent, nil)
	}

	h.log.Info("topic published",
		zap.String("topic", m.Topic),
		zap.Int("subscribers", len(subs)),
		zap.Int("sent", sent),
		zap.String("envelope_id", EnvelopeID(ctx)),
	)
	return nil
}

func (h *PublishHandler) record(ctx context.Context, topic string, u *model.User, status model.DeliveryStatus, err error) {
	if h.recorder == nil {
		return
	}

	d := model.Delivery{
		ID:         util.NewID(),
		EnvelopeID: EnvelopeID(ctx),
		Topic:      topic,
		UserID:     u.ID,
		Email:      u.Email,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		d.Error = err.Error()
	}
	h.recorder.Record(d)
}
