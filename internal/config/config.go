// Package config loads runtime configuration from defaults, an optional config
// file, a .env file and LETSDONATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. LETSDONATE_SERVER_URL.
const EnvPrefix = "LETSDONATE"

// Config holds the sync core configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Sync    SyncConfig
	Network NetworkConfig
	Log     LogConfig
	Serve   ServeConfig
}

// ServerConfig describes the backend REST service.
type ServerConfig struct {
	URL            string
	RequestTimeout time.Duration
}

// DBConfig locates the local store.
type DBConfig struct {
	Dir string
}

// SyncConfig tunes the sync engine and scheduler.
type SyncConfig struct {
	PollInterval     time.Duration
	MaxRetries       int
	PreserveUnsynced bool
}

// NetworkConfig tunes the connectivity probe.
type NetworkConfig struct {
	ProbeURL     string
	ProbeTimeout time.Duration
}

// LogConfig selects log level and optional rotated file.
type LogConfig struct {
	Level string
	File  string
}

// ServeConfig is the status server listen address and allowed origins.
type ServeConfig struct {
	Addr           string
	AllowedOrigins []string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "http://10.0.2.2:3000")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("db.dir", defaultDataDir())
	v.SetDefault("sync.poll_interval", 10*time.Second)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.preserve_unsynced", false)
	v.SetDefault("network.probe_url", "")
	v.SetDefault("network.probe_timeout", 3*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("serve.addr", "localhost:8090")
	v.SetDefault("serve.allowed_origins", []string{"http://localhost:8081", "http://localhost:19006"})
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "letsdonate")
	}
	return "./data"
}

// Load reads configuration. configFile may be empty, in which case
// letsdonate.{yaml,toml,json} is looked up in the working directory and
// missing files are ignored.
func Load(configFile string) (*Config, error) {
	// .env is optional, same as the backend
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("letsdonate")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			URL:            strings.TrimRight(v.GetString("server.url"), "/"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		DB: DBConfig{
			Dir: v.GetString("db.dir"),
		},
		Sync: SyncConfig{
			PollInterval:     v.GetDuration("sync.poll_interval"),
			MaxRetries:       v.GetInt("sync.max_retries"),
			PreserveUnsynced: v.GetBool("sync.preserve_unsynced"),
		},
		Network: NetworkConfig{
			ProbeURL:     v.GetString("network.probe_url"),
			ProbeTimeout: v.GetDuration("network.probe_timeout"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		Serve: ServeConfig{
			Addr:           v.GetString("serve.addr"),
			AllowedOrigins: v.GetStringSlice("serve.allowed_origins"),
		},
	}
	if cfg.Network.ProbeURL == "" {
		cfg.Network.ProbeURL = cfg.Server.URL
	}
	return cfg, cfg.Validate()
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return fmt.Errorf("server.url must be an http(s) URL, got %q", c.Server.URL)
	}
	if c.DB.Dir == "" {
		return fmt.Errorf("db.dir is required")
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive")
	}
	if c.Sync.MaxRetries <= 0 {
		return fmt.Errorf("sync.max_retries must be positive")
	}
	return nil
}
