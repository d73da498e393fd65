// Package config loads cfddns settings from a YAML file, the environment and a credentials key file.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"github.com/Travis-Britz/cfddns"
)

// Config holds all configuration
type Config struct {
	Cloudflare            Cloudflare `yaml:"cloudflare"`
	KeyFile               string     `yaml:"key_file"`
	UpdateIntervalSeconds int        `yaml:"update_interval_seconds"`
	LimitToDomain         string     `yaml:"limit_to_domain"`
	IPProviders           []string   `yaml:"ip_providers"`
	IP                    string     `yaml:"ip"`
	Interfaces            []string   `yaml:"interfaces"`
	Log                   Log        `yaml:"log"`
}

// Cloudflare holds API credentials. APIToken wins over Email and APIKey.
type Cloudflare struct {
	APIToken string `yaml:"api_token"`
	Email    string `yaml:"email"`
	APIKey   string `yaml:"api_key"`
}

// Valid reports whether c holds a usable credential.
func (c Cloudflare) Valid() bool {
	return c.APIToken != "" || (c.Email != "" && c.APIKey != "")
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		KeyFile:               filepath.Join(os.Getenv("HOME"), ".cloudflare"),
		UpdateIntervalSeconds: int(cfddns.DefaultInterval / time.Second),
		IPProviders:           append([]string(nil), cfddns.DefaultServices...),
		Log:                   Log{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if path is not empty),
// a .env file in the working directory (if present) and finally the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = SplitList(v)
		}
	}

	str("CLOUDFLARE_API_TOKEN", &c.Cloudflare.APIToken)
	str("CLOUDFLARE_EMAIL", &c.Cloudflare.Email)
	str("CLOUDFLARE_API_KEY", &c.Cloudflare.APIKey)
	str("DDNS_KEY_FILE", &c.KeyFile)
	str("DDNS_LIMIT_TO_DOMAIN", &c.LimitToDomain)
	str("DDNS_IP", &c.IP)
	str("DDNS_LOG_LEVEL", &c.Log.Level)
	str("DDNS_LOG_FORMAT", &c.Log.Format)
	list("DDNS_IP_PROVIDERS", &c.IPProviders)
	list("DDNS_INTERFACES", &c.Interfaces)

	if v, ok := lookup("DDNS_UPDATE_INTERVAL_SECONDS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DDNS_UPDATE_INTERVAL_SECONDS: %w", err)
		}
		c.UpdateIntervalSeconds = n
	}
	return nil
}

// SplitList splits a comma separated list, dropping blank entries.
func SplitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
}

// Interval returns the update interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// Validate checks everything except credentials, which may still come from the key file.
func (c *Config) Validate() error {
	var errs []error
	if c.UpdateIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("update interval must be positive; got %d", c.UpdateIntervalSeconds))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log format must be \"text\" or \"json\"; got %q", c.Log.Format))
	}
	if c.IP != "" {
		if _, err := netip.ParseAddr(c.IP); err != nil {
			errs = append(errs, fmt.Errorf("ip: %w", err))
		}
	}
	if c.IP == "" && len(c.Interfaces) == 0 && len(c.IPProviders) == 0 {
		errs = append(errs, errors.New("at least one IP provider is required"))
	}
	for _, p := range c.IPProviders {
		u, err := url.Parse(p)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid IP provider URL %q", p))
		}
	}
	return errors.Join(errs...)
}
