package main

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

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "ecomhubDB", cfg.Namespace)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "data/ecomhub.json", cfg.Storage.Path)
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen_addr: ":9090"
namespace: shopDB
storage:
  driver: memory
jwt_ttl: 15m
stripe:
  currency: eur
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("ECOMHUB_NAMESPACE", "envDB")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "envDB", cfg.Namespace)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
	assert.Equal(t, "data/ecomhub.json", cfg.Storage.Path)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read config")
	})
	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("listen_addr: [unclosed"), 0o600))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "parse config")
	})
	t.Run("bad bcrypt cost", func(t *testing.T) {
		t.Setenv("BCRYPT_COST", "high")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "BCRYPT_COST")
	})
}

func TestConfigOpenMedium(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Driver: "memory"}}
	m, err := cfg.OpenMedium()
	require.NoError(t, err)
	assert.IsType(t, &MemoryMedium{}, m)

	cfg.Storage = StorageConfig{Driver: "file", Path: filepath.Join(t.TempDir(), "db.json")}
	m, err = cfg.OpenMedium()
	require.NoError(t, err)
	require.IsType(t, &FileMedium{}, m)
	require.NoError(t, m.(*FileMedium).Close())

	cfg.Storage = StorageConfig{Driver: "etcd"}
	_, err = cfg.OpenMedium()
	assert.ErrorContains(t, err, "unknown storage driver")
}
