package cmd

import (
	"fmt"

	"github.com/jmehdipour/topic-notifier/internal/db"
	"github.com/jmehdipour/topic-notifier/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users, degrees and courses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		sqlDB, err := db.MySQLFromConfig(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		res, err := seed.Run(cmd.Context(), sqlDB, seed.Demo)
		if err != nil {
			return err
		}

		log.Info("seed completed",
			zap.Int("users", res.Users),
			zap.Int("degrees", res.Degrees),
			zap.Int("courses", res.Courses),
		)
		return nil
	},
}
