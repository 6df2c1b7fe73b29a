package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes environment overrides, e.g. DYNRES_CACHE_BACKEND
const EnvPrefix = "DYNRES"

// Cache backends. The shared cache only pays off across processes, so the
// CLI offers Redis or nothing.
const (
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config represents the dynres configuration
type Config struct {
	Metadata MetadataConfig `mapstructure:"metadata"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	AWS      AWSConfig      `mapstructure:"aws"`
}

// MetadataConfig selects where service documents come from
type MetadataConfig struct {
	// Dirs are searched in order before the SQL source and bundled documents
	Dirs    []string          `mapstructure:"dirs"`
	Bundled bool              `mapstructure:"bundled"`
	Pinned  map[string]string `mapstructure:"pinned"`
	Watch   bool              `mapstructure:"watch"`
	SQL     SQLConfig         `mapstructure:"sql"`
}

// SQLConfig points at a table of stored documents
type SQLConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// Enabled reports whether a SQL source is configured
func (c SQLConfig) Enabled() bool {
	return c.DSN != ""
}

// CacheConfig represents the shared document cache
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the redis cache connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// AWSConfig represents the settings used to build AWS clients
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metadata.dirs", []string{})
	v.SetDefault("metadata.bundled", true)
	v.SetDefault("metadata.pinned", map[string]string{})
	v.SetDefault("metadata.watch", false)
	v.SetDefault("metadata.sql.driver", "sqlite3")
	v.SetDefault("metadata.sql.dsn", "")
	v.SetDefault("metadata.sql.table", "metadata_documents")

	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl", 15*time.Minute)
	v.SetDefault("cache.prefix", "dynres:")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "console")

	v.SetDefault("aws.region", "")
	v.SetDefault("aws.endpoint", "")
}

// Load reads configuration from file, or from dynres.yaml in the current
// directory or the user config directory when file is empty. Environment
// variables prefixed with DYNRES override file values.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("dynres")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "dynres"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Cache.Backend {
	case CacheRedis, CacheNone:
	default:
		return fmt.Errorf("cache.backend must be one of redis, none, got: %s", cfg.Cache.Backend)
	}

	if cfg.Cache.Backend == CacheRedis && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}

	if cfg.Metadata.SQL.Enabled() {
		switch cfg.Metadata.SQL.Driver {
		case "sqlite3", "pgx":
		default:
			return fmt.Errorf("metadata.sql.driver must be sqlite3 or pgx, got: %s", cfg.Metadata.SQL.Driver)
		}
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch cfg.Log.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("log.encoding must be console or json, got: %s", cfg.Log.Encoding)
	}

	return nil
}
