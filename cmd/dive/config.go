package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/dariaag/dive-go/pkg/client"
	"github.com/dariaag/dive-go/pkg/logging"
)

type archiveConfig struct {
	URL              string  `mapstructure:"url"`
	MaxConcurrency   int     `mapstructure:"max_concurrency"`
	RateLimit        float64 `mapstructure:"rate_limit"`
	RateBurst        int     `mapstructure:"rate_burst"`
	AdaptiveThrottle bool    `mapstructure:"adaptive_throttle"`
	MaxRetries       int     `mapstructure:"max_retries"`
	RouteGranularity uint64  `mapstructure:"route_granularity"`
	RedisAddr        string  `mapstructure:"redis_addr"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type cliConfig struct {
	Archive archiveConfig `mapstructure:"archive"`
	Log     logConfig     `mapstructure:"log"`
}

// loadConfig merges defaults, an optional YAML file and DIVE_* environment
// variables, in ascending order of precedence. Flags are applied on top by
// the individual commands.
func loadConfig(path string) (cliConfig, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv can bind it.
	v.SetDefault("archive.url", "")
	v.SetDefault("archive.max_concurrency", 5)
	v.SetDefault("archive.rate_limit", 0.0)
	v.SetDefault("archive.rate_burst", 1)
	v.SetDefault("archive.adaptive_throttle", false)
	v.SetDefault("archive.max_retries", 4)
	v.SetDefault("archive.route_granularity", 0)
	v.SetDefault("archive.redis_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetEnvPrefix("DIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cliConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cliConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg logConfig) zerolog.Logger {
	return logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Level),
		Pretty: cfg.Pretty,
		Output: os.Stderr,
	})
}

func newDatasource(cfg cliConfig, logger zerolog.Logger) (*client.Datasource, error) {
	if cfg.Archive.URL == "" {
		return nil, fmt.Errorf("archive URL is required (-url, archive.url or DIVE_ARCHIVE_URL)")
	}

	c := client.DefaultConfig(cfg.Archive.URL)
	if cfg.Archive.MaxConcurrency > 0 {
		c.MaxConcurrency = cfg.Archive.MaxConcurrency
	}
	c.RateLimit = cfg.Archive.RateLimit
	if cfg.Archive.RateBurst > 0 {
		c.RateBurst = cfg.Archive.RateBurst
	}
	c.AdaptiveThrottle = cfg.Archive.AdaptiveThrottle
	if cfg.Archive.MaxRetries > 0 {
		c.MaxRetries = cfg.Archive.MaxRetries
	}
	if cfg.Archive.RouteGranularity > 0 {
		c.RouteGranularity = cfg.Archive.RouteGranularity
	}
	if cfg.Archive.RedisAddr != "" {
		c.Redis = redis.NewClient(&redis.Options{Addr: cfg.Archive.RedisAddr})
	}
	c.Logger = &logger

	return client.New(c)
}
