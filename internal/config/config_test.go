package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFrom(t *testing.T) {
	t.Run("Should apply defaults for sqlite", func(t *testing.T) {
		cfg, err := LoadFrom(mapLookup(map[string]string{
			"APP_ENV":   "dev",
			"APP_PORT":  "8080",
			"DB_DRIVER": "sqlite",
		}))
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.DBDriver)
		assert.Equal(t, "decisions.db", cfg.SQLitePath)
		assert.Equal(t, "session", cfg.SessionCookie)
		assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
		assert.Equal(t, 12, cfg.BcryptCost)
		assert.False(t, cfg.AuditEnabled)
		assert.False(t, cfg.SecureCookies())
	})
	t.Run("Should require the MySQL connection settings", func(t *testing.T) {
		_, err := LoadFrom(mapLookup(map[string]string{
			"APP_ENV":  "dev",
			"APP_PORT": "8080",
			"DB_USER":  "app",
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_HOST")
		assert.Contains(t, err.Error(), "DB_PORT")
		assert.Contains(t, err.Error(), "DB_NAME")
		assert.NotContains(t, err.Error(), "DB_USER")
		assert.NotContains(t, err.Error(), "DB_PASS")
	})
	t.Run("Should report every invalid value at once", func(t *testing.T) {
		_, err := LoadFrom(mapLookup(map[string]string{
			"DB_DRIVER":        "sqlite",
			"BCRYPT_COST":      "high",
			"AUDIT_ENABLED":    "maybe",
			"SESSION_TTL_DAYS": "0",
		}))
		require.Error(t, err)
		for _, want := range []string{"APP_ENV", "APP_PORT", "BCRYPT_COST", "AUDIT_ENABLED", "SESSION_TTL_DAYS"} {
			assert.Contains(t, err.Error(), want)
		}
	})
	t.Run("Should reject unknown drivers", func(t *testing.T) {
		_, err := LoadFrom(mapLookup(map[string]string{
			"APP_ENV": "dev", "APP_PORT": "8080", "DB_DRIVER": "oracle",
		}))
		assert.ErrorContains(t, err, "unsupported DB_DRIVER")
	})
	t.Run("Should mark cookies secure in production", func(t *testing.T) {
		cfg, err := LoadFrom(mapLookup(map[string]string{
			"APP_ENV": "prod", "APP_PORT": "80", "DB_DRIVER": "sqlite",
		}))
		require.NoError(t, err)
		assert.True(t, cfg.SecureCookies())
	})
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Run("Should clamp values and stretch the TTL", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_CAPACITY", "0")
		t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
		t.Setenv("RATE_LIMIT_TTL", "1s")
		cfg := LoadRateLimitConfig()
		assert.Equal(t, 1, cfg.Capacity)
		assert.Equal(t, time.Minute, cfg.RefillInterval)
		assert.Equal(t, 5*time.Minute, cfg.TTL)
	})
	t.Run("Should key the login bucket by ip and route", func(t *testing.T) {
		cfg := LoadLoginRateLimitConfig()
		assert.Equal(t, "ip_route", cfg.KeyStrategy)
		assert.Equal(t, 10, cfg.Capacity)
	})
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}
