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
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "strict", cfg.Numbering.Strategy)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9000
database:
  dsn: postgres://file
worker:
  expiry_interval: 30s
kafka:
  brokers: ["k1:9092"]
`), 0o600))
	t.Setenv("STOCKLEDGER_DATABASE_DSN", "postgres://env")
	t.Setenv("STOCKLEDGER_JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Worker.ExpiryInterval)
	assert.Equal(t, []string{"k1:9092"}, cfg.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{HTTP: HTTPConfig{Port: 0}, Numbering: NumberingConfig{Strategy: "random"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "database.dsn")
	assert.ErrorContains(t, err, "jwt.secret")
	assert.ErrorContains(t, err, "http.port")
	assert.ErrorContains(t, err, "numbering.strategy")
}

func TestValidateStorage_IgnoresHTTPSettings(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{DSN: "postgres://localhost/stock"},
		Numbering: NumberingConfig{Strategy: "cached"},
	}
	assert.NoError(t, cfg.ValidateStorage())
	assert.ErrorContains(t, cfg.Validate(), "jwt.secret")
}
