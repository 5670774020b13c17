// Package config provides configuration management for template-tally using
// Viper for loading from files, environment variables, and command-line flags.
//
// The configuration supports YAML files (.tally.yml), environment variable
// overrides with the TALLY_ prefix, defaults, and validation. It covers the
// tracker (root, key prefix, TTL, template extensions, exclusions), the render
// key store, the HTTP server and logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/frewsxcv/template-tally/internal/errors"
	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/types"
)

const (
	DefaultKeyPrefix = "template-tally:"
	DefaultTTL       = 14 * 24 * time.Hour

	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// DefaultExtensions are the template extensions discovered when none are configured.
var DefaultExtensions = []string{"haml", "erb", "mustache", "builder"}

// DefaultExclude holds the path markers excluded from discovery by default.
// Mailer templates render outside the request path and would always read as unrendered.
var DefaultExclude = []string{"mailer"}

type Config struct {
	Tally   TallyConfig   `mapstructure:"tally" yaml:"tally"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

type TallyConfig struct {
	Root       string        `mapstructure:"root" yaml:"root"`
	KeyPrefix  string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions"`
	Exclude    []string      `mapstructure:"exclude" yaml:"exclude"`
	Categories []string      `mapstructure:"categories" yaml:"categories"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver" yaml:"driver"`
	Redis  RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig selects a single node, a sentinel group (MasterName set) or a
// cluster (several comma-separated addresses).
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	MasterName   string        `mapstructure:"master_name" yaml:"master_name"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"-"`
	DB           int           `mapstructure:"db" yaml:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	ViewsDir       string   `mapstructure:"views_dir" yaml:"views_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads the configuration from the global viper instance, applies
// defaults and validates the result.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError("failed to decode configuration", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError("invalid configuration", err)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.Tally.Root == "" {
		config.Tally.Root = "."
	}
	if config.Tally.KeyPrefix == "" {
		config.Tally.KeyPrefix = DefaultKeyPrefix
	}
	if config.Tally.TTL == 0 {
		config.Tally.TTL = DefaultTTL
	}
	if len(config.Tally.Extensions) == 0 {
		config.Tally.Extensions = append([]string(nil), DefaultExtensions...)
	}
	// An explicitly empty exclude list disables exclusion.
	if !viper.IsSet("tally.exclude") && len(config.Tally.Exclude) == 0 {
		config.Tally.Exclude = append([]string(nil), DefaultExclude...)
	}
	if len(config.Tally.Categories) == 0 {
		for _, c := range types.DefaultCategories() {
			config.Tally.Categories = append(config.Tally.Categories, string(c))
		}
	}

	if config.Store.Driver == "" {
		config.Store.Driver = DriverRedis
	}
	if config.Store.Redis.Addr == "" {
		config.Store.Redis.Addr = "localhost:6379"
	}
	if config.Store.Redis.DialTimeout == 0 {
		config.Store.Redis.DialTimeout = time.Second
	}
	if config.Store.Redis.ReadTimeout == 0 {
		config.Store.Redis.ReadTimeout = 500 * time.Millisecond
	}
	if config.Store.Redis.WriteTimeout == 0 {
		config.Store.Redis.WriteTimeout = 500 * time.Millisecond
	}

	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !viper.IsSet("server.port") && config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.ViewsDir == "" {
		config.Server.ViewsDir = "app/views"
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

// ParsedCategories returns the configured event categories as typed values.
func (c *TallyConfig) ParsedCategories() ([]types.EventCategory, error) {
	categories := make([]types.EventCategory, 0, len(c.Categories))
	for _, name := range c.Categories {
		category, err := types.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateTallyConfig(&config.Tally); err != nil {
		return fmt.Errorf("tally config: %w", err)
	}
	if err := validateStoreConfig(&config.Store); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func validateTallyConfig(config *TallyConfig) error {
	if config.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", config.TTL)
	}
	if config.TTL%time.Second != 0 {
		return fmt.Errorf("ttl must be a whole number of seconds, got %s", config.TTL)
	}
	if strings.TrimSpace(config.KeyPrefix) == "" {
		return fmt.Errorf("key_prefix cannot be empty")
	}

	for _, ext := range config.Extensions {
		trimmed := strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if trimmed == "" {
			return fmt.Errorf("empty template extension")
		}
		if strings.ContainsAny(trimmed, `/\{},*?[]`) {
			return fmt.Errorf("template extension %q contains a path or glob character", ext)
		}
	}

	for _, marker := range config.Exclude {
		if strings.TrimSpace(marker) == "" {
			return fmt.Errorf("exclude markers cannot be empty")
		}
	}

	if _, err := config.ParsedCategories(); err != nil {
		return err
	}

	return nil
}

func validateStoreConfig(config *StoreConfig) error {
	switch config.Driver {
	case DriverRedis:
		if strings.TrimSpace(config.Redis.Addr) == "" {
			return fmt.Errorf("redis addr cannot be empty")
		}
		if config.Redis.DB < 0 {
			return fmt.Errorf("redis db must not be negative, got %d", config.Redis.DB)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q (supported: %s, %s)", config.Driver, DriverRedis, DriverMemory)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		for _, char := range []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "} {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %q", char)
			}
		}
	}

	cleanPath := filepath.Clean(config.ViewsDir)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("views_dir contains path traversal: %s", config.ViewsDir)
	}
	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("views_dir should be relative to the root: %s", config.ViewsDir)
	}

	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	switch config.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (supported: text, json)", config.Format)
	}
}
