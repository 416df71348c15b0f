package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/topic-notifier/cmd/worker"
	"github.com/jmehdipour/topic-notifier/internal/config"
	"github.com/jmehdipour/topic-notifier/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "topic-notifier",
		Short: "Topic subscriptions and notification fan-out",
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (merged over built-in defaults)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}

func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
