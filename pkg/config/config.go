// Package config loads dualstore settings from defaults, an optional YAML,
// TOML or JSON file and DUALSTORE_* environment variables, in increasing
// order of precedence. Nested keys map to variables with dots replaced by
// underscores: router.adapter_timeout is DUALSTORE_ROUTER_ADAPTER_TIMEOUT.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DUALSTORE"

// Secondary store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Flag backends.
const (
	FlagsStatic = "static"
	FlagsRedis  = "redis"
)

type Config struct {
	Primary   StoreConfig  `mapstructure:"primary"`
	Secondary StoreConfig  `mapstructure:"secondary"`
	Router    RouterConfig `mapstructure:"router"`
	Flags     FlagsConfig  `mapstructure:"flags"`
	Sync      SyncConfig   `mapstructure:"sync"`
	Server    ServerConfig `mapstructure:"server"`
	Log       LogConfig    `mapstructure:"log"`
	// ReadOnly starts the application in maintenance mode.
	ReadOnly bool `mapstructure:"read_only"`
}

type StoreConfig struct {
	Datasource Datasource `mapstructure:"datasource"`
}

type Datasource struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Enabled         bool          `mapstructure:"enabled"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RouterConfig struct {
	AdapterTimeout   time.Duration `mapstructure:"adapter_timeout"`
	ConcurrentWrites bool          `mapstructure:"concurrent_writes"`
}

type FlagsConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
	// Values seeds the static backend, keyed by flag name.
	Values map[string]any `mapstructure:"values"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SyncConfig struct {
	// Interval between background bidirectional syncs; zero disables them.
	Interval time.Duration `mapstructure:"interval"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("primary.datasource.driver", DriverSQLite)
	v.SetDefault("primary.datasource.path", "database.sqlite")
	v.SetDefault("primary.datasource.dsn", "")
	v.SetDefault("primary.datasource.enabled", true)
	v.SetDefault("primary.datasource.max_open_conns", 0)
	v.SetDefault("primary.datasource.max_idle_conns", 0)
	v.SetDefault("primary.datasource.conn_max_lifetime", time.Duration(0))

	v.SetDefault("secondary.datasource.driver", DriverPostgres)
	v.SetDefault("secondary.datasource.path", "")
	v.SetDefault("secondary.datasource.dsn", "host=localhost user=postgres password=postgres dbname=dualstore port=5432 sslmode=disable")
	v.SetDefault("secondary.datasource.enabled", true)
	v.SetDefault("secondary.datasource.max_open_conns", 20)
	v.SetDefault("secondary.datasource.max_idle_conns", 5)
	v.SetDefault("secondary.datasource.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("router.adapter_timeout", 5*time.Second)
	v.SetDefault("router.concurrent_writes", true)

	v.SetDefault("flags.backend", FlagsStatic)
	v.SetDefault("flags.redis.addr", "localhost:6379")
	v.SetDefault("flags.redis.password", "")
	v.SetDefault("flags.redis.db", 0)
	v.SetDefault("flags.redis.prefix", "dualstore:flags")

	v.SetDefault("sync.interval", time.Duration(0))
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("read_only", false)
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Primary.Datasource.Driver {
	case DriverSQLite:
		if c.Primary.Datasource.Path == "" {
			return fmt.Errorf("primary.datasource.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Primary.Datasource.DSN == "" {
			return fmt.Errorf("primary.datasource.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown primary driver %q", c.Primary.Datasource.Driver)
	}

	if c.Secondary.Datasource.Enabled {
		switch c.Secondary.Datasource.Driver {
		case DriverPostgres:
			if c.Secondary.Datasource.DSN == "" {
				return fmt.Errorf("secondary.datasource.dsn is required for the postgres driver")
			}
		case DriverSQLite:
			if c.Secondary.Datasource.Path == "" {
				return fmt.Errorf("secondary.datasource.path is required for the sqlite driver")
			}
		case DriverMemory:
		default:
			return fmt.Errorf("unknown secondary driver %q", c.Secondary.Datasource.Driver)
		}
	}

	switch c.Flags.Backend {
	case FlagsStatic:
	case FlagsRedis:
		if c.Flags.Redis.Addr == "" {
			return fmt.Errorf("flags.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown flags backend %q", c.Flags.Backend)
	}

	if c.Router.AdapterTimeout < 0 {
		return fmt.Errorf("router.adapter_timeout must not be negative")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
