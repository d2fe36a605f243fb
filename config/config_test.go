package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub020/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hendelse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")

	require.NoError(t, err)
	require.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	require.Equal(t, "HENDELSE", cfg.NATS.Stream)
	require.Equal(t, 100, cfg.Consumer.BatchSize)
	require.Equal(t, 5*time.Second, cfg.Consumer.Interval)
	require.Equal(t, time.Minute, cfg.Consumer.MaxElapsedTime)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	// GIVEN
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: /var/lib/hendelse/hendelse.db
consumer:
  id: journalforing
  event_types: [SOKNAD_MOTTATT, SOKNAD_LUKKET]
  interval: 250ms
  by_owner: true
logging:
  format: text
`)
	t.Setenv("HENDELSE_CONSUMER_BATCH_SIZE", "25")
	t.Setenv("HENDELSE_LOGGING_LEVEL", "debug")

	// WHEN
	cfg, err := config.Load(path)

	// THEN
	require.NoError(t, err)
	require.Equal(t, config.DatabaseConfig{Driver: "sqlite", DSN: "/var/lib/hendelse/hendelse.db"}, cfg.Database)
	require.Equal(t, "journalforing", cfg.Consumer.ID)
	require.Equal(t, []string{"SOKNAD_MOTTATT", "SOKNAD_LUKKET"}, cfg.Consumer.EventTypes)
	require.Equal(t, 250*time.Millisecond, cfg.Consumer.Interval)
	require.True(t, cfg.Consumer.ByOwner)
	require.Equal(t, 25, cfg.Consumer.BatchSize)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
  dsn: ""
consumer:
  batch_size: 0
`)

	_, err := config.Load(path)

	require.ErrorContains(t, err, "database.driver")
	require.ErrorContains(t, err, "database.dsn")
	require.ErrorContains(t, err, "consumer.batch_size")
}
