// Package config loads settings from a YAML file, a .env file and MVPD_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mvpdauth/internal/credentials"
	"mvpdauth/internal/httputil"
	"mvpdauth/internal/mso"
	"mvpdauth/internal/persist"
)

type Cache struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	Dir        string `yaml:"dir"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	Key        string `yaml:"key"`
	Passphrase string `yaml:"passphrase"`
}

type Config struct {
	MSO               string                             `yaml:"mso"`
	Username          string                             `yaml:"username"`
	Password          string                             `yaml:"password"`
	Credentials       map[string]credentials.Credentials `yaml:"credentials"`
	SoftwareStatement string                             `yaml:"software_statement"`
	Cache             Cache                              `yaml:"cache"`
	BrokerURL         string                             `yaml:"broker_url"`
	ListenAddr        string                             `yaml:"listen_addr"`
	LogLevel          string                             `yaml:"log_level"`
	// GeoHeaders are sent on every broker and provider request.
	GeoHeaders map[string]string `yaml:"geo_headers"`
	// RateLimit caps outgoing requests per second; 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
}

// LoadDotEnv loads variables from the given .env files without overriding
// the environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads path (skipped when empty) and applies environment overrides
// and defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	c.MSO = envOr("MVPD_MSO", c.MSO)
	c.Username = envOr("MVPD_USERNAME", c.Username)
	c.Password = envOr("MVPD_PASSWORD", c.Password)
	c.SoftwareStatement = envOr("MVPD_SOFTWARE_STATEMENT", c.SoftwareStatement)
	c.Cache.Driver = envOr("MVPD_CACHE_DRIVER", c.Cache.Driver)
	c.Cache.Path = envOr("MVPD_CACHE_PATH", c.Cache.Path)
	c.Cache.Dir = envOr("MVPD_CACHE_DIR", c.Cache.Dir)
	c.Cache.RedisAddr = envOr("MVPD_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.Key = envOr("MVPD_CACHE_KEY", c.Cache.Key)
	c.Cache.Passphrase = envOr("MVPD_CACHE_PASSPHRASE", c.Cache.Passphrase)
	c.BrokerURL = envOr("MVPD_BROKER_URL", c.BrokerURL)
	c.ListenAddr = envOr("MVPD_LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = envOr("LOG_LEVEL", envOr("MVPD_LOG_LEVEL", c.LogLevel))
	if v := os.Getenv("MVPD_RATE_LIMIT"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("MVPD_RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = persist.DriverSQLite
	}
	if c.BrokerURL == "" {
		c.BrokerURL = "https://sp.auth.adobe.com"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:7878"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return &c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if !slices.Contains(persist.Drivers, c.Cache.Driver) {
		return fmt.Errorf("unknown cache driver %q (want one of %s)", c.Cache.Driver, strings.Join(persist.Drivers, ", "))
	}
	if c.Cache.Driver == persist.DriverRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache driver redis requires cache.redis_addr")
	}
	if c.MSO != "" {
		if _, err := mso.Lookup(c.MSO); err != nil {
			return err
		}
	}
	if err := httputil.ValidateBaseURL(c.BrokerURL); err != nil {
		return fmt.Errorf("broker_url: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// CredentialSource serves the configured accounts.
func (c *Config) CredentialSource() credentials.Static {
	return credentials.Static{
		Default:     credentials.Credentials{Username: c.Username, Password: c.Password},
		PerProvider: c.Credentials,
	}
}

func (c *Config) PersistOptions() persist.Options {
	return persist.Options{
		Driver:     c.Cache.Driver,
		Path:       c.Cache.Path,
		Dir:        c.Cache.Dir,
		RedisAddr:  c.Cache.RedisAddr,
		RedisDB:    c.Cache.RedisDB,
		Key:        c.Cache.Key,
		Passphrase: c.Cache.Passphrase,
	}
}

// SessionOptions configures the outgoing HTTP session.
func (c *Config) SessionOptions() []httputil.Option {
	opts := []httputil.Option{httputil.WithRateLimit(c.RateLimit, 1)}
	for k, v := range c.GeoHeaders {
		opts = append(opts, httputil.WithHeader(k, v))
	}
	return opts
}

func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
