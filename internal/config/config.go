package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Worker     WorkerConfig    `mapstructure:"worker"`
	Relay      RelayConfig     `mapstructure:"relay"`
	Mail       MailConfig      `mapstructure:"mail"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	Topics         KafkaTopics   `mapstructure:"topics"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval int           `mapstructure:"commit_interval_ms"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type KafkaTopics struct {
	Subscriptions string `mapstructure:"subscriptions"`
	Notifications string `mapstructure:"notifications"`
	DeadLetter    string `mapstructure:"dead_letter"`
}

type WorkerConfig struct {
	WorkerCount int           `mapstructure:"worker_count"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchWait   time.Duration `mapstructure:"batch_wait"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type RelayConfig struct {
	Embedded  bool          `mapstructure:"embedded"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type MailConfig struct {
	From      string           `mapstructure:"from"`
	Attempts  int              `mapstructure:"attempts"`
	Providers []ProviderConfig `mapstructure:"providers"`
	SMTP      SMTPConfig       `mapstructure:"smtp"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// ProviderConfig describes an HTTP mail-relay API.
type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Path      string        `mapstructure:"path"`
	APIKey    string        `mapstructure:"api_key"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type SMTPConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	TLS       bool          `mapstructure:"tls"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// TopicFor returns the kafka topic configured for a lane name.
func (k KafkaConfig) TopicFor(lane string) string {
	if lane == "notifications" {
		return k.Topics.Notifications
	}
	return k.Topics.Subscriptions
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (TOPICN_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (TOPICN_MYSQL_DSN, TOPICN_MAIL_FROM, ...)
	v.SetEnvPrefix("TOPICN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
