// Package config loads Flowra settings from a YAML file and FLOWRA_*
// environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FLOWRA_REDIS_ADDR.
const EnvPrefix = "FLOWRA_"

type Config struct {
	Log       LogConfig           `yaml:"log"`
	Cache     CacheConfig         `yaml:"cache"`
	Store     StoreConfig         `yaml:"store"`
	Deferred  DeferredConfig      `yaml:"deferred"`
	Redis     RedisConfig         `yaml:"redis"`
	Postgres  PostgresConfig      `yaml:"postgres"`
	HTTP      HTTPConfig          `yaml:"http"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Workflows []string            `yaml:"workflows"`
	Entities  map[string][]string `yaml:"entities"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// Redact lists regexes; matching metadata keys are masked before storage.
	Redact []string `yaml:"redact"`
	// EncryptionKey is a base64 AES-256 key sealing comments and metadata.
	EncryptionKey string `yaml:"encryption_key"`
}

type DeferredConfig struct {
	Driver  string `yaml:"driver"`
	Workers int    `yaml:"workers"`
	Buffer  int    `yaml:"buffer"`
	Queue   string `yaml:"queue"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Defaults returns an in-memory configuration.
func Defaults() *Config {
	return &Config{
		Log:      LogConfig{Level: "info"},
		Cache:    CacheConfig{Enabled: true, Driver: "memory"},
		Store:    StoreConfig{Driver: "memory"},
		Deferred: DeferredConfig{Driver: "memory", Workers: 4, Buffer: 64, Queue: "default"},
		Redis:    RedisConfig{Addr: "localhost:6379", Prefix: "flowra:"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Metrics:  MetricsConfig{Enabled: true, Namespace: "flowra"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result. Relative workflow paths are resolved against the
// directory of path.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		dir := filepath.Dir(path)
		for i, w := range cfg.Workflows {
			if !filepath.IsAbs(w) {
				cfg.Workflows[i] = filepath.Join(dir, w)
			}
		}
	}

	if err := ApplyEnv(cfg, os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return cfg, nil
}

// sections are the nested blocks addressable as FLOWRA_<SECTION>_<KEY>.
var sections = []string{"log", "cache", "store", "deferred", "redis", "postgres", "http", "metrics"}

// ApplyEnv overlays FLOWRA_* entries of environ onto cfg. Lists are comma
// separated. Entities cannot be set from the environment.
func ApplyEnv(cfg *Config, environ []string) error {
	overrides := map[string]any{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		section, field, nested := strings.Cut(key, "_")
		if nested && slices.Contains(sections, section) {
			block, _ := overrides[section].(map[string]any)
			if block == nil {
				block = map[string]any{}
				overrides[section] = block
			}
			block[field] = value
			continue
		}
		if key == "workflows" {
			overrides[key] = value
		}
	}
	if len(overrides) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate rejects unknown drivers and missing connection settings.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, "|"), value))
		}
	}
	oneOf("cache.driver", c.Cache.Driver, "memory", "redis", "none")
	oneOf("store.driver", c.Store.Driver, "memory", "redis", "postgres")
	oneOf("deferred.driver", c.Deferred.Driver, "memory", "redis", "none")

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.uses("redis") && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by the redis drivers"))
	}
	if c.Store.Driver == "postgres" && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required by the postgres store"))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := c.EncryptionKey(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) uses(driver string) bool {
	return c.Cache.Driver == driver || c.Store.Driver == driver || c.Deferred.Driver == driver
}

// EncryptionKey decodes store.encryption_key. It returns nil when unset.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Store.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
