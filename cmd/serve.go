package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/db"
	httpSrv "github.com/jmehdipour/topic-notifier/internal/http"
	"github.com/jmehdipour/topic-notifier/internal/kafka"
	"github.com/jmehdipour/topic-notifier/internal/repository"
	"github.com/jmehdipour/topic-notifier/internal/service/article"
	"github.com/jmehdipour/topic-notifier/internal/service/queue"
	"github.com/jmehdipour/topic-notifier/internal/service/subscription"
	"github.com/jmehdipour/topic-notifier/internal/worker"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server (and the outbox relay when relay.embedded is set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		mysqlDB, err := db.MySQLFromConfig(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.RedisFromConfig(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.ClickHouseFromConfig(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()

		users := repository.NewUsersRepository(mysqlDB)
		subs := repository.NewSubscriptionsRepository(mysqlDB)
		courses := repository.NewCoursesRepository(mysqlDB)
		outbox := repository.NewOutboxRepository(mysqlDB)
		q := queue.New(outbox, cfg.Kafka.Topics)

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Users:         users,
			Subscriptions: subs,
			Toggler:       subscription.New(mysqlDB, subs, courses, q, log),
			Articles:      article.New(mysqlDB, courses, repository.NewArticlesRepository(), q, log),
			Deliveries:    repository.NewDeliveriesRepository(chDB),
			Redis:         redisClient,
		}, log)

		var g run.Group
		g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
		g.Add(func() error {
			if err := server.Start(cfg.HTTP.Addr); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		})

		if cfg.Relay.Embedded {
			producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, WriteTimeout: cfg.Kafka.WriteTimeout})
			defer func() { _ = producer.Close() }()

			relay := worker.NewRelay(outbox, producer, cfg.Relay.Interval, cfg.Relay.BatchSize, log)
			ctx, cancel := context.WithCancel(context.Background())
			g.Add(func() error { return relay.Run(ctx) }, func(error) { cancel() })
		}

		err = g.Run()
		var sig run.SignalError
		if errors.As(err, &sig) {
			log.Info("shutting down", zap.String("signal", sig.Signal.String()))
			return nil
		}
		return err
	},
}
