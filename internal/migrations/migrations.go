package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed mysql/*.sql
var mysqlFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// UpMySQL applies all pending relational migrations.
func UpMySQL(dbx *sqlx.DB) error {
	src, err := iofs.New(mysqlFS, "mysql")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	drv, err := mysql.WithInstance(dbx.DB, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("mysql migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", drv)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// UpClickHouse executes the delivery-log DDL files in name order. Every statement is IF NOT EXISTS.
func UpClickHouse(ctx context.Context, ch *sqlx.DB) error {
	names, err := fs.Glob(clickhouseFS, "clickhouse/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := clickhouseFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := ch.ExecContext(ctx, strings.TrimSpace(string(b))); err != nil {
			return fmt.Errorf("exec %s: %w", name, err)
		}
	}
	return nil
}
