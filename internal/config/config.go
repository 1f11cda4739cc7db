// Package config loads the timewarden TOML configuration through viper.
// Every key can be overridden from the environment as TIMEWARDEN_<SECTION>_<KEY>.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/loykin/timewarden/internal/logger"
	"github.com/loykin/timewarden/internal/usage"
)

const (
	appDir     = "timewarden"
	configFile = "config.toml"
	dbFile     = "timewarden.db"
	envPrefix  = "TIMEWARDEN"
)

// Config represents the top-level TOML structure.
type Config struct {
	Client    ClientConfig    `toml:"client" mapstructure:"client"`
	Poller    PollerConfig    `toml:"poller" mapstructure:"poller"`
	Schedules SchedulesConfig `toml:"schedules" mapstructure:"schedules"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
}

type ClientConfig struct {
	URL        string        `toml:"url" mapstructure:"url"`
	Timeout    time.Duration `toml:"timeout" mapstructure:"timeout"`
	Insecure   bool          `toml:"insecure" mapstructure:"insecure"`
	CACert     string        `toml:"ca_cert" mapstructure:"ca_cert"`
	ServerName string        `toml:"server_name" mapstructure:"server_name"`
}

type PollerConfig struct {
	Interval      time.Duration `toml:"interval" mapstructure:"interval"`
	IdleThreshold time.Duration `toml:"idle_threshold" mapstructure:"idle_threshold"`
}

// SchedulesConfig configures the client-side schedule store.
type SchedulesConfig struct {
	// ToggleRollback restores a schedule's enabled flag when the backend
	// rejects an optimistic toggle.
	ToggleRollback bool `toml:"toggle_rollback" mapstructure:"toggle_rollback"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
	DSN      string `toml:"dsn" mapstructure:"dsn"`
	TLSCert  string `toml:"tls_cert" mapstructure:"tls_cert"`
	TLSKey   string `toml:"tls_key" mapstructure:"tls_key"`
	// TLSDir holds tls.crt/tls.key; with TLSAutoGenerate a self-signed pair
	// is created there when missing. Ignored when TLSCert is set.
	TLSDir          string `toml:"tls_dir" mapstructure:"tls_dir"`
	TLSAutoGenerate bool   `toml:"tls_auto_generate" mapstructure:"tls_auto_generate"`
	TLSMinVersion   string `toml:"tls_min_version" mapstructure:"tls_min_version"`
	// ManualProbe lets /debug/probe set the reported current app and idle time.
	ManualProbe bool `toml:"manual_probe" mapstructure:"manual_probe"`
}

// Logger converts the section to logger.Config.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:  l.Level,
		Format: l.Format,
		Color:  l.Color,
		File: logger.FileConfig{
			Path:       l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
			MaxAgeDays: l.MaxAgeDays,
			Compress:   l.Compress,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.url", "http://127.0.0.1:7878/api")
	v.SetDefault("client.timeout", 5*time.Second)
	v.SetDefault("client.insecure", false)
	v.SetDefault("client.ca_cert", "")
	v.SetDefault("client.server_name", "")

	v.SetDefault("poller.interval", time.Second)
	v.SetDefault("poller.idle_threshold", usage.DefaultIdleThreshold)

	v.SetDefault("schedules.toggle_rollback", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("server.listen", "127.0.0.1:7878")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.dsn", "")
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("server.tls_dir", "")
	v.SetDefault("server.tls_auto_generate", false)
	v.SetDefault("server.tls_min_version", "1.2")
	v.SetDefault("server.manual_probe", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Default returns the built-in configuration with environment overrides.
func Default() Config {
	var c Config
	_ = newViper().Unmarshal(&c)
	return c
}

// DefaultPath is $XDG_CONFIG_HOME/timewarden/config.toml.
func DefaultPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appDir, configFile))
}

// DefaultDSN is a sqlite database under $XDG_DATA_HOME/timewarden.
func DefaultDSN() (string, error) {
	p, err := xdg.DataFile(filepath.Join(appDir, dbFile))
	if err != nil {
		return "", err
	}
	return "sqlite://" + p, nil
}

// Load reads path, or the default location when path is empty. A missing
// file at the default location is not an error; a missing explicit file is.
func Load(path string) (Config, error) {
	v := newViper()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.Client.Timeout <= 0 {
		errs = append(errs, errors.New("client.timeout must be positive"))
	}
	if c.Poller.Interval <= 0 {
		errs = append(errs, errors.New("poller.interval must be positive"))
	}
	if c.Poller.IdleThreshold < 0 {
		errs = append(errs, errors.New("poller.idle_threshold must not be negative"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.Server.TLSAutoGenerate && c.Server.TLSDir == "" && c.Server.TLSCert == "" {
		errs = append(errs, errors.New("server.tls_auto_generate needs server.tls_dir"))
	}
	return errors.Join(errs...)
}
