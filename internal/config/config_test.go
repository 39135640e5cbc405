package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 10000, cfg.Feedback.QueueCapacity)
	assert.Equal(t, 10, cfg.Feedback.BatchSize)
	assert.Equal(t, time.Second, cfg.Feedback.IdleInterval)
	assert.Equal(t, 5*time.Second, cfg.Feedback.ErrorBackoff)
	assert.Equal(t, 5, cfg.Feedback.MinTrainingSamples)
	assert.Equal(t, 5*time.Second, cfg.Services.AdaptTimeout)
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("FEEDBACK_TEST_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
database:
  driver: mysql
  host: db
  port: 3306
  user: app
  password: ${FEEDBACK_TEST_DB_PASSWORD}
  dbname: feedback
feedback:
  idle_interval: 250ms
services:
  recommendation_engine: http://rec:8002
  adapt_timeout: 7s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 250*time.Millisecond, cfg.Feedback.IdleInterval)
	assert.Equal(t, 7*time.Second, cfg.Services.AdaptTimeout)
	assert.Equal(t, "http://rec:8002", cfg.Services.RecommendationEngine)
	assert.Equal(t, "app:s3cret@tcp(db:3306)/feedback?charset=utf8mb4&parseTime=True&loc=Local", cfg.Database.DSN())
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		path := writeConfig(t, "database:\n  driver: oracle\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("negative capacity", func(t *testing.T) {
		path := writeConfig(t, "feedback:\n  queue_capacity: -1\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":memory:", cfg.Database.DSN())
	assert.Equal(t, int64(42), cfg.Feedback.Seed)
}

func TestLoadConfig_NormalizesDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: MySQL\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN(), "@tcp(")

	_, err = LoadConfig(writeConfig(t, "database:\n  driver: Postgres\n"))
	assert.Error(t, err)
}
