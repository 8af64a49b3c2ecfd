package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/dualstore/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DriverSQLite, cfg.Primary.Datasource.Driver)
	assert.Equal(t, "database.sqlite", cfg.Primary.Datasource.Path)
	assert.Equal(t, config.DriverPostgres, cfg.Secondary.Datasource.Driver)
	assert.True(t, cfg.Secondary.Datasource.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Router.AdapterTimeout)
	assert.True(t, cfg.Router.ConcurrentWrites)
	assert.Equal(t, config.FlagsStatic, cfg.Flags.Backend)
	assert.Equal(t, "dualstore:flags", cfg.Flags.Redis.Prefix)
	assert.Zero(t, cfg.Sync.Interval)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dualstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
secondary:
  datasource:
    driver: sqlite
    path: /tmp/secondary.sqlite
router:
  adapter_timeout: 750ms
flags:
  backend: redis
  redis:
    addr: redis:6379
  values:
    use-secondary: true
sync:
  interval: 1m
server:
  port: 9000
`), 0o600))

	t.Setenv("DUALSTORE_SERVER_PORT", "9100")
	t.Setenv("DUALSTORE_ROUTER_CONCURRENT_WRITES", "false")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DriverSQLite, cfg.Secondary.Datasource.Driver)
	assert.Equal(t, "/tmp/secondary.sqlite", cfg.Secondary.Datasource.Path)
	assert.Equal(t, 750*time.Millisecond, cfg.Router.AdapterTimeout)
	assert.False(t, cfg.Router.ConcurrentWrites)
	assert.Equal(t, config.FlagsRedis, cfg.Flags.Backend)
	assert.Equal(t, "redis:6379", cfg.Flags.Redis.Addr)
	assert.Equal(t, true, cfg.Flags.Values["use-secondary"])
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return *cfg
	}

	tests := map[string]func(*config.Config){
		"unknown secondary driver": func(c *config.Config) { c.Secondary.Datasource.Driver = "oracle" },
		"postgres without dsn":     func(c *config.Config) { c.Secondary.Datasource.DSN = "" },
		"sqlite without path":      func(c *config.Config) { c.Primary.Datasource.Path = "" },
		"unknown flags backend":    func(c *config.Config) { c.Flags.Backend = "consul" },
		"negative timeout":         func(c *config.Config) { c.Router.AdapterTimeout = -time.Second },
		"port out of range":        func(c *config.Config) { c.Server.Port = 70000 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("disabled secondary skips its checks", func(t *testing.T) {
		cfg := valid()
		cfg.Secondary.Datasource.Enabled = false
		cfg.Secondary.Datasource.Driver = "oracle"
		assert.NoError(t, cfg.Validate())
	})
}
