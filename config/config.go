// Package config loads gateway settings from a YAML file.
//
//	redis:
//	  host: cache.internal
//	  port: 6379
//	  db: 0
//	  dial_timeout: 5s
//	  read_timeout: 5s
//	  write_timeout: 5s
//	  pool_size: 10
//	gateway:
//	  open_timeout: 5s
//	  reconnect:
//	    disabled: false
//	    initial_interval: 100ms
//	    max_interval: 10s
//	    max_attempts: 10
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/bucketcache"
	"github.com/unkn0wn-root/bucketcache/conn"
	"github.com/unkn0wn-root/bucketcache/conn/redis"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 6379
)

type Config struct {
	Redis struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		DB           int           `yaml:"db"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		PoolSize     int           `yaml:"pool_size"`
	} `yaml:"redis"`

	Gateway struct {
		OpenTimeout time.Duration `yaml:"open_timeout"`
		Reconnect   struct {
			Disabled        bool          `yaml:"disabled"`
			InitialInterval time.Duration `yaml:"initial_interval"`
			MaxInterval     time.Duration `yaml:"max_interval"`
			MaxAttempts     int           `yaml:"max_attempts"`
		} `yaml:"reconnect"`
	} `yaml:"gateway"`
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Redis.Host == "" {
		c.Redis.Host = DefaultHost
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = DefaultPort
	}
	if c.Redis.Port < 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis.port %d out of range", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db %d is negative", c.Redis.DB)
	}
	if c.Gateway.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("gateway.reconnect.max_attempts %d is negative", c.Gateway.Reconnect.MaxAttempts)
	}
	return nil
}

func (c *Config) Target() conn.Target {
	return conn.Target{Host: c.Redis.Host, Port: c.Redis.Port}
}

func (c *Config) RedisOptions() redis.Options {
	return redis.Options{
		DB:           c.Redis.DB,
		DialTimeout:  c.Redis.DialTimeout,
		ReadTimeout:  c.Redis.ReadTimeout,
		WriteTimeout: c.Redis.WriteTimeout,
		PoolSize:     c.Redis.PoolSize,
	}
}

// GatewayOptions maps the file onto gateway options. Zero durations fall back
// to the gateway defaults. Resolve is a static target; use FileResolver to
// follow later edits of the file.
func (c *Config) GatewayOptions() bucketcache.GatewayOptions {
	rc := c.Gateway.Reconnect
	return bucketcache.GatewayOptions{
		Resolve:     bucketcache.StaticTarget(c.Redis.Host, c.Redis.Port),
		Dial:        redis.NewDialer(c.RedisOptions()),
		OpenTimeout: c.Gateway.OpenTimeout,
		Reconnect: bucketcache.ReconnectPolicy{
			Disabled:        rc.Disabled,
			InitialInterval: rc.InitialInterval,
			MaxInterval:     rc.MaxInterval,
			MaxAttempts:     rc.MaxAttempts,
		},
	}
}

// FileResolver re-reads path on every (re)connection so the target can be
// moved without a restart. If the file cannot be loaded, fallback is used;
// a zero fallback turns the load error into a connection failure.
func FileResolver(path string, fallback conn.Target) bucketcache.TargetFunc {
	return func(context.Context) (conn.Target, error) {
		cfg, err := Load(path)
		if err != nil {
			if fallback == (conn.Target{}) {
				return conn.Target{}, err
			}
			return fallback, nil
		}
		return cfg.Target(), nil
	}
}

// NewGateway builds a redis gateway from the file at path. Dial options are
// read once; the target is re-read on every connection.
func NewGateway(path string, log bucketcache.Logger, hooks bucketcache.Hooks) (*bucketcache.Gateway, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	opts := cfg.GatewayOptions()
	opts.Resolve = FileResolver(path, cfg.Target())
	opts.Logger = log
	opts.Hooks = hooks
	return bucketcache.NewGateway(opts)
}
