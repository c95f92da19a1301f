// Package config loads server configuration from environment variables,
// with an optional YAML overlay for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved configuration for cmd/judge-server.
type Config struct {
	Token   string        `yaml:"token"`
	Port    int           `yaml:"port"`
	Host    string        `yaml:"host"`
	Threads int           `yaml:"threads"`
	LogLevel string       `yaml:"logLevel"`
	LogFormat string      `yaml:"logFormat"`
	CacheRoot string      `yaml:"cacheRoot"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	ScratchRoot string    `yaml:"scratchRoot"`
	TaskRetention int     `yaml:"taskRetention"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

func defaults() Config {
	return Config{
		Port:           3235,
		Host:           "0.0.0.0",
		Threads:        1,
		LogLevel:       "info",
		LogFormat:      "console",
		CacheRoot:      "/tmp/evaljudge/cache",
		CacheTTL:       5 * time.Minute,
		ScratchRoot:    "/tmp/evaljudge/scratch",
		TaskRetention:  1000,
		MaxUploadBytes: 100 << 20,
	}
}

// Load builds a Config from an optional YAML overlay file, then applies the
// JUDGE_*/LOG_* environment variables from CORE SPEC §6 on top. Env vars
// always win over the overlay; the overlay only seeds local-dev defaults.
func Load(overlayPath string) (Config, error) {
	cfg := defaults()

	if overlayPath != "" {
		data, err := os.ReadFile(overlayPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config overlay: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config overlay: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Token == "" {
		return cfg, fmt.Errorf("JUDGE_TOKEN is required")
	}
	if cfg.Threads <= 0 {
		return cfg, fmt.Errorf("JUDGE_THREADS must be positive, got %d", cfg.Threads)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("JUDGE_TOKEN"); ok {
		cfg.Token = v
	}
	if v, ok := os.LookupEnv("JUDGE_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v, ok := os.LookupEnv("JUDGE_HOST"); ok {
		cfg.Host = v
	}
	if v, ok := os.LookupEnv("JUDGE_THREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Threads = n
		}
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

// Addr returns the host:port pair the HTTP server should bind to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
