package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "1323", cfg.Port)
	assert.Equal(t, "9000", cfg.GRPCPort)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.SeedTaxonomy)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "host=0.0.0.0 user=user password=password dbname=db port=5432 sslmode=disable", cfg.DSN())
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("ANIMALSHARE_PORT", "8080")
	t.Setenv("ANIMALSHARE_DB_DRIVER", DriverSQLite)
	t.Setenv("ANIMALSHARE_DB_PATH", "/tmp/feed.db")
	t.Setenv("ANIMALSHARE_SESSION_TTL", "2h")
	t.Setenv("ANIMALSHARE_METRICS_ENABLED", "false")
	t.Setenv("ANIMALSHARE_APP_ENV", EnvProduction)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.MetricsEnabled)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "/tmp/feed.db?_foreign_keys=on", cfg.DSN())
}

func TestNewConfigValidation(t *testing.T) {
	cases := map[string][2]string{
		"ssl mode":    {"ANIMALSHARE_DB_SSL_MODE", "verify-full-please"},
		"driver":      {"ANIMALSHARE_DB_DRIVER", "mysql"},
		"env":         {"ANIMALSHARE_APP_ENV", "staging"},
		"session ttl": {"ANIMALSHARE_SESSION_TTL", "-1h"},
		"frontend":    {"ANIMALSHARE_FRONTEND_URL", "not a url"},
		"pool size":   {"ANIMALSHARE_DB_MAX_OPEN_CONNS", "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
