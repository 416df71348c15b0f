package worker

import (
	"fmt"

	"github.com/jmehdipour/topic-notifier/internal/config"
	"github.com/jmehdipour/topic-notifier/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	cmd.AddCommand(newConsumerCmd())
	cmd.AddCommand(relayCmd)

	return cmd
}

func bootstrap(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
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
