package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "noreply@example.com", cfg.Mail.From)
	assert.Equal(t, "topicn.subscriptions", cfg.Kafka.Topics.Subscriptions)
	assert.Equal(t, "topicn.notifications", cfg.Kafka.TopicFor("notifications"))
	assert.Equal(t, "topicn.subscriptions", cfg.Kafka.TopicFor("subscriptions"))
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.Retry.BaseDelay)
	assert.True(t, cfg.Relay.Embedded)
	require.Len(t, cfg.Mail.Providers, 1)
	assert.Equal(t, 3, cfg.Mail.Providers[0].Breaker.FailThreshold)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\nworker:\n  worker_count: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 2, cfg.Worker.WorkerCount)
	assert.Equal(t, 200, cfg.Worker.BatchSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TOPICN_MAIL_FROM", "club@example.org")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "club@example.org", cfg.Mail.From)
}
