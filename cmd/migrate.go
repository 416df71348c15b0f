package cmd

import (
	"fmt"

	"github.com/jmehdipour/topic-notifier/internal/db"
	"github.com/jmehdipour/topic-notifier/internal/migrations"
	"github.com/spf13/cobra"
)

var skipClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply MySQL migrations and the ClickHouse delivery-log schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		sqlDB, err := db.MySQLFromConfig(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		if err := migrations.UpMySQL(sqlDB); err != nil {
			return err
		}
		log.Info("mysql migrations applied")

		if skipClickHouse {
			return nil
		}

		chDB, err := db.ClickHouseFromConfig(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		if err := migrations.UpClickHouse(cmd.Context(), chDB); err != nil {
			return err
		}
		log.Info("clickhouse schema applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&skipClickHouse, "skip-clickhouse", false, "only migrate MySQL")
}
