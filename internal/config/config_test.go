package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
database:
  driver: postgres
  host: db
  port: "5433"
  user: bounty
  password: "p@ss word"
  name: bounty
  sslmode: disable
server:
  host: 127.0.0.1
  port: "9000"
logger:
  level: debug
  format: console
auth:
  secret: from-file
  token_ttl: 2h
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadFrom_File(t *testing.T) {
	dir := writeConfig(t, sampleConfig)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "5433", cfg.Database.Port)
	assert.True(t, cfg.Database.Migrate, "default applies when key is absent")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.GetAddress())
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "from-file", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, "bug-bounty", cfg.Auth.Issuer)
	assert.Equal(t, "host=db port=5433 user=bounty password=p@ss word dbname=bounty sslmode=disable", cfg.Database.GetDSN())
	assert.Equal(t, "postgres://bounty:p%40ss%20word@db:5433/bounty?sslmode=disable", cfg.Database.GetURL())
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, sampleConfig)
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SERVER_PORT", "8181")
	t.Setenv("AUTH_SECRET", "from-env")
	t.Setenv("AUTH_TOKEN_TTL", "15m")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL", "72h")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 72*time.Hour, cfg.Auth.RefreshTokenTTL)
}

func TestLoadFrom_NoFile(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetAddress())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.EqualError(t, err, "auth.secret is required")

	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "mongo")
	_, err = LoadFrom(t.TempDir())
	assert.EqualError(t, err, `unknown database driver "mongo"`)
}
