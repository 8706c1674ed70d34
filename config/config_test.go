package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "https://paynecta.co.ke", cfg.Gateway.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Gateway.InitiateTimeout)
	assert.Equal(t, 10*time.Second, cfg.Gateway.StatusTimeout)
	assert.Equal(t, 15*time.Second, cfg.Reconcile.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Reconcile.PollMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Reconcile.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Reconcile.ReleaseDelay)
	assert.Equal(t, "50000", cfg.Loan.DefaultAmount)
	assert.Equal(t, StoreFile, cfg.Store.Driver)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PAYNECTA_BASE_URL", "http://gateway.local/")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Reconcile.PollInterval)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "http://gateway.local", cfg.Gateway.BaseURL)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "STORE_DRIVER", "mongo"},
		{"zero poll interval", "POLL_INTERVAL", "0s"},
		{"negative release delay", "RELEASE_DELAY", "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.DSN())
}
