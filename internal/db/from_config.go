package db

import (
	"github.com/jmehdipour/topic-notifier/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

func MySQLFromConfig(c config.DatabaseConfig) (*sqlx.DB, error) {
	return NewMySQLConnection(c.DSN, MySQLOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	})
}

func ClickHouseFromConfig(c config.DatabaseConfig) (*sqlx.DB, error) {
	return NewClickHouseConnection(ClickHouseOpts{
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	})
}

func RedisFromConfig(c config.RedisConfig) (*redis.Client, error) {
	return NewRedisClient(RedisOpts{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	})
}
