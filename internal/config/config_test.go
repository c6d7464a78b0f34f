package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Storage.Provider)
	assert.Equal(t, 10*time.Second, cfg.Inspection.UpstreamTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"database": {"driver": "sqlite3", "db_name": "portal.db"},
		"storage": {"provider": "s3", "bucket": "forms"}
	}`), 0o600))

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "portal.db", cfg.Database.GetDatabaseURL())
	assert.Equal(t, "forms", cfg.Storage.Bucket)
	assert.Equal(t, 3*time.Second, cfg.Inspection.UpstreamTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("port", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "eighty")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "SERVER_PORT")
	})

	t.Run("timeout", func(t *testing.T) {
		t.Setenv("UPSTREAM_TIMEOUT", "soon")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "UPSTREAM_TIMEOUT")
	})

	t.Run("driver", func(t *testing.T) {
		t.Setenv("DATABASE_DRIVER", "oracle")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "oracle")
	})

	t.Run("production secret", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "jwt secret")
	})
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{
		Driver:   "postgres",
		Host:     "db",
		Port:     5432,
		User:     "portal",
		Password: "secret",
		DBName:   "maintenance_portal",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://portal:secret@db:5432/maintenance_portal?sslmode=disable", db.GetDatabaseURL())
}
