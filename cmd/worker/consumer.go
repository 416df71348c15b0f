package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/config"
	"github.com/jmehdipour/topic-notifier/internal/db"
	"github.com/jmehdipour/topic-notifier/internal/handler"
	"github.com/jmehdipour/topic-notifier/internal/kafka"
	"github.com/jmehdipour/topic-notifier/internal/mailer"
	"github.com/jmehdipour/topic-notifier/internal/metrics"
	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/worker"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConsumerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consumer",
		Short: "Consume one queue lane (subscriptions | notifications)",
	}
	for _, lane := range []model.Lane{model.LaneSubscriptions, model.LaneNotifications} {
		cmd.AddCommand(&cobra.Command{
			Use:   lane.String(),
			Short: "Run the " + lane.String() + " consumer",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConsumer(cmd, lane)
			},
		})
	}
	return cmd
}

func runConsumer(cmd *cobra.Command, lane model.Lane) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.MySQLFromConfig(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := repository.NewUsersRepository(dbx)
	subs := repository.NewSubscriptionsRepository(dbx)
	router := handler.NewRouter()

	switch lane {
	case model.LaneSubscriptions:
		router.
			Register(model.KindSubscribe, handler.NewSubscribeHandler(users, subs, log)).
			Register(model.KindUnsubscribe, handler.NewUnsubscribeHandler(log))
	case model.LaneNotifications:
		transport, err := mailer.FromConfig(cfg.Mail)
		if err != nil {
			return fmt.Errorf("mail providers: %w", err)
		}
		publish := handler.NewPublishHandler(users, subs, transport, cfg.Mail.From, log)

		chDB, err := db.ClickHouseFromConfig(cfg.ClickHouse)
		if err != nil {
			log.Warn("clickhouse unavailable; delivery log disabled", zap.Error(err))
		} else {
			defer chDB.Close()
			rec, stopRecorder := startRecorder(chDB, cfg.Worker, log)
			defer stopRecorder()
			publish.WithRecorder(rec)
		}
		router.Register(model.KindPublish, publish)
	}

	topic := cfg.Kafka.TopicFor(lane.String())
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "topicn"
	}
	groupID = groupID + "-" + lane.String()

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, WriteTimeout: cfg.Kafka.WriteTimeout})
	defer func() { _ = producer.Close() }()

	w := worker.NewConsumer(consumer, producer, cfg.Kafka.Topics.DeadLetter, router, lane, log)
	if cfg.Worker.WorkerCount > 0 {
		w.Workers = cfg.Worker.WorkerCount
	}
	if r := cfg.Worker.Retry; r.MaxAttempts > 0 {
		w.Retry = worker.RetryPolicy{MaxAttempts: r.MaxAttempts, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay}
	}

	log.Info("consumer starting",
		zap.String("lane", lane.String()),
		zap.String("topic", topic),
		zap.String("group", groupID),
		zap.Int("workers", w.Workers),
	)
	return w.Run(ctx)
}

// startRecorder runs the delivery recorder in the background. The returned
// stop func must be called after the consumer has returned; it flushes and waits.
func startRecorder(ch *sqlx.DB, wc config.WorkerConfig, log *zap.Logger) (*worker.Recorder, func()) {
	rec := worker.NewRecorder(repository.NewDeliveriesRepository(ch), wc.BatchSize, wc.BatchWait, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()

	return rec, func() {
		cancel()
		<-done
	}
}
