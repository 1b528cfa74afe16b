// Package config loads the organizer configuration from defaults, an
// optional YAML file and environment variables, in that order of priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"kanso.yaml",
	"kanso.yml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Local    LocalConfig    `koanf:"local"`
	Remote   RemoteConfig   `koanf:"remote"`
	Sync     SyncConfig     `koanf:"sync"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port            string        `koanf:"port"`
	JWTSecret       string        `koanf:"jwt_secret"`
	JWTIssuer       string        `koanf:"jwt_issuer"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	RateLimit       int           `koanf:"rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type LocalConfig struct {
	// Driver is sqlite or badger.
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

type RemoteConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
	Key   string `koanf:"key"`
}

type SyncConfig struct {
	MaxRetries         int           `koanf:"max_retries"`
	RetryDelay         time.Duration `koanf:"retry_delay"`
	PollInterval       time.Duration `koanf:"poll_interval"`
	HiddenPollInterval time.Duration `koanf:"hidden_poll_interval"`
	MaxPollInterval    time.Duration `koanf:"max_poll_interval"`
	FailureThreshold   int           `koanf:"failure_threshold"`
	PushReconnectDelay time.Duration `koanf:"push_reconnect_delay"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			JWTIssuer:       "kanso-organizer",
			TokenTTL:        90 * 24 * time.Hour,
			RateLimit:       100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "pgx",
			Host:   "localhost",
			Port:   "5432",
			User:   "kanso_user",
			Name:   "kanso_db",
		},
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    "6379",
		},
		Local: LocalConfig{
			Driver: "sqlite",
		},
		Remote: RemoteConfig{
			Key: "organizer_data",
		},
		Sync: SyncConfig{
			MaxRetries:         3,
			RetryDelay:         time.Second,
			PollInterval:       30 * time.Second,
			HiddenPollInterval: 5 * time.Minute,
			MaxPollInterval:    10 * time.Minute,
			FailureThreshold:   3,
			PushReconnectDelay: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (if present), the config file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValueFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Local.Path == "" {
		path, err := DefaultLocalPath(cfg.Local.Driver)
		if err != nil {
			return nil, err
		}
		cfg.Local.Path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Local.Driver {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("local.driver must be sqlite or badger, got %q", c.Local.Driver)
	}
	switch c.Database.Driver {
	case "pgx", "postgres":
	default:
		return fmt.Errorf("database.driver must be pgx or postgres, got %q", c.Database.Driver)
	}
	if c.Sync.MaxRetries < 1 {
		return errors.New("sync.max_retries must be at least 1")
	}
	if c.Sync.PollInterval <= 0 || c.Sync.HiddenPollInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.Sync.MaxPollInterval < c.Sync.PollInterval {
		return errors.New("sync.max_poll_interval cannot be lower than sync.poll_interval")
	}
	if c.Sync.FailureThreshold < 1 {
		return errors.New("sync.failure_threshold must be at least 1")
	}
	return nil
}

// PostgresDSN builds the connection string of the sync server database.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

// DefaultLocalPath returns ~/.kanso/organizer.db (sqlite) or ~/.kanso/badger.
func DefaultLocalPath(driver string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	if driver == "badger" {
		return filepath.Join(home, ".kanso", "badger"), nil
	}
	return filepath.Join(home, ".kanso", "organizer.db"), nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envValueFunc skips empty variables so that FOO= leaves the default or the
// config file value in place.
func envValueFunc(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	return envTransformFunc(key), value
}

// envTransformFunc maps the supported environment variables to config keys.
// Unknown variables are skipped.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"port":              "server.port",
		"jwt_secret":        "server.jwt_secret",
		"jwt_issuer":        "server.jwt_issuer",
		"token_ttl":         "server.token_ttl",
		"rate_limit":        "server.rate_limit",
		"rate_limit_window": "server.rate_limit_window",

		"db_driver":   "database.driver",
		"db_host":     "database.host",
		"db_port":     "database.port",
		"db_user":     "database.user",
		"db_password": "database.password",
		"db_name":     "database.name",

		"redis_enabled":  "redis.enabled",
		"redis_host":     "redis.host",
		"redis_port":     "redis.port",
		"redis_password": "redis.password",
		"redis_db":       "redis.db",

		"local_driver": "local.driver",
		"local_path":   "local.path",

		"remote_url":   "remote.url",
		"remote_token": "remote.token",
		"remote_key":   "remote.key",

		"sync_max_retries":          "sync.max_retries",
		"sync_retry_delay":          "sync.retry_delay",
		"sync_poll_interval":        "sync.poll_interval",
		"sync_hidden_poll_interval": "sync.hidden_poll_interval",
		"sync_max_poll_interval":    "sync.max_poll_interval",
		"sync_failure_threshold":    "sync.failure_threshold",
		"sync_push_reconnect_delay": "sync.push_reconnect_delay",

		"log_level":  "log.level",
		"log_format": "log.format",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
