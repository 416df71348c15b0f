package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/topic-notifier/internal/db"
	"github.com/jmehdipour/topic-notifier/internal/kafka"
	"github.com/jmehdipour/topic-notifier/internal/metrics"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay committed outbox rows to Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, WriteTimeout: cfg.Kafka.WriteTimeout})
		defer func() { _ = producer.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		relay := worker.NewRelay(repository.NewOutboxRepository(dbx), producer, cfg.Relay.Interval, cfg.Relay.BatchSize, log)
		return relay.Run(ctx)
	},
}
