package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverBolt   = "bolt"
	DriverBadger = "badger"
	DriverRedis  = "redis"
)

// Config is the full runtime configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" json:"store"`
	Commit     CommitConfig     `yaml:"commit" json:"commit"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Encryption EncryptionConfig `yaml:"encryption" json:"encryption"`
	PII        PIIConfig        `yaml:"pii" json:"pii"`
	HTTP       HTTPConfig       `yaml:"http" json:"http"`
}

// StoreConfig selects and parameterizes the anchor store.
type StoreConfig struct {
	Driver string      `yaml:"driver" json:"driver"`
	Path   string      `yaml:"path" json:"path"`
	Redis  RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the redis store and lock.
type RedisConfig struct {
	Addr     string   `yaml:"addr" json:"addr"`
	Password string   `yaml:"password" json:"password"`
	DB       int      `yaml:"db" json:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl"`
}

// CommitConfig tunes commit retries and per-root locking.
type CommitConfig struct {
	Tries         uint     `yaml:"tries" json:"tries"`
	RetryInterval Duration `yaml:"retry_interval" json:"retry_interval"`
	LockTTL       Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// EncryptionConfig enables at-rest encryption of architype fields.
// Keys are hex encoded 32-byte AES keys. An empty Key disables encryption.
type EncryptionConfig struct {
	Key          string   `yaml:"key" json:"key"`
	FallbackKeys []string `yaml:"fallback_keys" json:"fallback_keys"`
}

// PIIConfig lists field name patterns masked before storage.
type PIIConfig struct {
	Fields []string `yaml:"fields" json:"fields"`
}

// HTTPConfig configures the serving adapter.
type HTTPConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	MetricsPath string `yaml:"metrics_path" json:"metrics_path"`
}

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   ".arbor/anchors",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "arbor:"},
		},
		Commit: CommitConfig{
			Tries:         3,
			RetryInterval: Duration(50 * time.Millisecond),
			LockTTL:       Duration(30 * time.Second),
		},
		Log:  LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{Addr: ":8080", MetricsPath: "/metrics"},
	}
}

// Load reads path over the defaults. JSON is used for .json files, YAML
// otherwise. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverBolt, DriverBadger, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Driver == DriverBolt && c.Store.Path == "" {
		errs = append(errs, errors.New("bolt store needs a path"))
	}
	if c.Commit.Tries == 0 {
		errs = append(errs, errors.New("commit tries must be at least 1"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.Encryption.Keys(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// Enabled reports whether encryption is configured.
func (e EncryptionConfig) Enabled() bool {
	return e.Key != ""
}

// Keys decodes the active and fallback keys.
func (e EncryptionConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if !e.Enabled() {
		return nil, nil, nil
	}
	if active, err = decodeKey(e.Key); err != nil {
		return nil, nil, err
	}
	for _, k := range e.FallbackKeys {
		b, err := decodeKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, b)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(b))
	}
	return b, nil
}
