package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, time.Minute, cfg.Cache.RefreshInterval)
	assert.False(t, cfg.Cache.CoalesceRefresh)
	assert.True(t, cfg.Cache.Backfill)
	assert.Equal(t, "./data/entitycache.db", cfg.Bolt.Path)
	assert.Equal(t, "postgres://entitycache:pw@localhost:5432/entitycache?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_DEFAULT_TTL", "90s")
	t.Setenv("CACHE_REFRESH_INTERVAL", "15")
	t.Setenv("CACHE_COALESCE_REFRESH", "true")
	t.Setenv("CACHE_BACKFILL", "false")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, 15*time.Second, cfg.Cache.RefreshInterval)
	assert.True(t, cfg.Cache.CoalesceRefresh)
	assert.False(t, cfg.Cache.Backfill)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "0.0.0.0:9090", cfg.Address())
}

func TestLoad_RequiredJWTNeedsSecret(t *testing.T) {
	t.Setenv("JWT_REQUIRED", "true")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
