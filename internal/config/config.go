// Package config loads the feed-proxy configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level feed-proxy configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	API     APIConfig     `yaml:"api"`
	Warmer  WarmerConfig  `yaml:"warmer"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the proxy's own HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig configures the shared Redis instance used for caching,
// rate limit state, and unread pub/sub.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// APIConfig configures the upstream marketplace API.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	Token     string `yaml:"token,omitempty"`
}

// WarmerConfig configures the scheduled cache warmer.
type WarmerConfig struct {
	// Enabled toggles the warmer job.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression (e.g. "*/15 * * * *").
	Schedule string `yaml:"schedule,omitempty"`

	// Endpoints lists the popular list endpoints to pre-fetch.
	Endpoints []WarmEndpoint `yaml:"endpoints,omitempty"`
}

// WarmEndpoint is a single endpoint the warmer pre-fetches.
type WarmEndpoint struct {
	Path string `yaml:"path"`

	// Pages is the number of leading pages to warm. Zero means 1.
	Pages int `yaml:"pages,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// Defaults applied when the file or environment leaves fields unset.
const (
	DefaultServerAddr     = ":8080"
	DefaultRedisAddr      = "localhost:6379"
	DefaultWarmerSchedule = "*/15 * * * *"
	DefaultLogLevel       = "info"
)

// Load reads the config file at path (if it exists), applies defaults
// and environment overrides, and validates the result. An empty path
// skips the file and uses environment and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays FEEDPROXY_* environment variables.
func (c *Config) applyEnv() {
	c.Server.Addr = envString("FEEDPROXY_ADDR", c.Server.Addr)
	c.Redis.Addr = envString("FEEDPROXY_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envString("FEEDPROXY_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envInt("FEEDPROXY_REDIS_DB", c.Redis.DB)
	c.API.BaseURL = envString("FEEDPROXY_API_BASE_URL", c.API.BaseURL)
	c.API.UserAgent = envString("FEEDPROXY_API_USER_AGENT", c.API.UserAgent)
	c.API.Token = envString("FEEDPROXY_API_TOKEN", c.API.Token)
	c.Warmer.Enabled = envBool("FEEDPROXY_WARMER_ENABLED", c.Warmer.Enabled)
	c.Warmer.Schedule = envString("FEEDPROXY_WARMER_SCHEDULE", c.Warmer.Schedule)
	c.Logging.Level = envString("FEEDPROXY_LOG_LEVEL", c.Logging.Level)
	c.Logging.Pretty = envBool("FEEDPROXY_LOG_PRETTY", c.Logging.Pretty)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Warmer.Schedule == "" {
		c.Warmer.Schedule = DefaultWarmerSchedule
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	for i := range c.Warmer.Endpoints {
		if c.Warmer.Endpoints[i].Pages <= 0 {
			c.Warmer.Endpoints[i].Pages = 1
		}
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.UserAgent == "" {
		return fmt.Errorf("api.user_agent is required")
	}
	if c.Warmer.Enabled {
		for i, ep := range c.Warmer.Endpoints {
			if ep.Path == "" {
				return fmt.Errorf("warmer.endpoints[%d].path is required", i)
			}
		}
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}
