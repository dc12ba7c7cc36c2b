// Package config loads dittocache configuration from file, environment and
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittocache/internal/bytesize"
	"github.com/marmos91/dittocache/internal/logger"
)

// Config represents the dittocache configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOCACHE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Cache configures the disk cache instance
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Server configures the HTTP surface exposed by `dittocache serve`
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CacheConfig configures the disk cache instance.
type CacheConfig struct {
	// Name identifies the cache; the backing directory is <root>/<prefix>.<name>.
	// Default: "default"
	Name string `mapstructure:"name" yaml:"name"`

	// Root is the parent directory for cache directories.
	// Default: the user cache directory, falling back to the system temp dir.
	Root string `mapstructure:"root" yaml:"root"`

	// ByteLimit bounds the total payload bytes. Accepts human-readable sizes
	// like "50Mi" or "1Gi"; 0 means unlimited.
	// Default: 50Mi
	ByteLimit bytesize.ByteSize `mapstructure:"byte_limit" yaml:"byte_limit"`

	// AgeLimit bounds entry age, e.g. "720h"; 0 disables expiry.
	// Default: 720h (30 days)
	AgeLimit time.Duration `mapstructure:"age_limit" yaml:"age_limit"`

	// TTL makes reads honor the age limit and stops reads from refreshing
	// entry dates.
	TTL bool `mapstructure:"ttl" yaml:"ttl"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Port is the HTTP listen port.
	// Default: 8420
	Port int `mapstructure:"port" yaml:"port"`

	// ReadTimeout bounds request reads. Default: 30s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds response writes. Default: 60s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// MetricsConfig controls Prometheus metrics collection.
// When Enabled is false no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Logging: logger.Config{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Cache: CacheConfig{
			Name:      "default",
			Root:      defaultCacheRoot(),
			ByteLimit: 50 * bytesize.MiB,
			AgeLimit:  720 * time.Hour,
		},
		Server: ServerConfig{
			Port:            8420,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load loads configuration from file, environment, and defaults. An empty
// configPath reads $XDG_CONFIG_HOME/dittocache/config.yaml when present.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// AutomaticEnv only consults the environment for keys viper already
	// knows; bind every key so overrides apply without a config file too.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"cache.name", "cache.root", "cache.byte_limit", "cache.age_limit", "cache.ttl",
		"server.port", "server.read_timeout", "server.write_timeout", "server.shutdown_timeout",
		"metrics.enabled",
	} {
		_ = v.BindEnv(key)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration invariants not expressible in types.
func Validate(cfg *Config) error {
	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid logging level %q", cfg.Logging.Level)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", cfg.Logging.Format)
	}

	if cfg.Cache.Name == "" {
		return fmt.Errorf("cache name is required")
	}
	if cfg.Cache.AgeLimit < 0 {
		return fmt.Errorf("cache age limit must not be negative")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}

	return nil
}

// Save writes the configuration to path in YAML format.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variables and config file search paths.
// Environment variables use the DITTOCACHE_ prefix with underscores, e.g.
// DITTOCACHE_CACHE_BYTE_LIMIT=1Gi.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DITTOCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// decodeHooks converts human-readable config values into typed fields.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can say "1Gi", "500Mi" or plain byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, so config files can
// say "30s", "5m" or "720h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// configDir returns the directory searched for config.yaml: XDG_CONFIG_HOME
// if set, otherwise ~/.config, falling back to the current directory.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dittocache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittocache")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultCacheRoot returns the parent directory for cache directories.
func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
