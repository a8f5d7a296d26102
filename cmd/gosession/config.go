package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cliConfig is the command configuration. Environment keys carry the
// GOSESSION_ prefix, e.g. GOSESSION_API_URL.
type cliConfig struct {
	APIURL        string `mapstructure:"API_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	Prefix        string `mapstructure:"PREFIX"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	Timeout       string `mapstructure:"TIMEOUT"`
	// Ephemeral runs against an in-process Redis that is discarded on exit.
	Ephemeral     bool   `mapstructure:"EPHEMERAL"`
}

var flagKeys = map[string]string{
	"api-url":    "API_URL",
	"redis-addr": "REDIS_ADDR",
	"redis-db":   "REDIS_DB",
	"prefix":     "PREFIX",
	"log-level":  "LOG_LEVEL",
	"timeout":    "TIMEOUT",
	"ephemeral":  "EPHEMERAL",
}

// loadConfig reads .env (if present), then the environment, then any flag
// explicitly set on the command line.
func loadConfig(flags *pflag.FlagSet) (*cliConfig, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.SetEnvPrefix("GOSESSION")
	v.AutomaticEnv()

	v.SetDefault("API_URL", "http://localhost:5000/api")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PREFIX", "gs")
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("TIMEOUT", "30s")
	v.SetDefault("EPHEMERAL", false)

	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, err
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	if cfg.APIURL == "" {
		return nil, errors.New("config: GOSESSION_API_URL must be set")
	}
	if !cfg.Ephemeral && cfg.RedisAddr == "" {
		return nil, errors.New("config: GOSESSION_REDIS_ADDR must be set unless --ephemeral")
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		return nil, errors.New("config: GOSESSION_PREFIX must not be empty")
	}
	return &cfg, nil
}

// RequestTimeout parses Timeout. Returns 30s if unset or invalid.
func (c *cliConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
