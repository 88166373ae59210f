// Package config loads server settings from an optional YAML file plus
// environment overrides. Env always wins over file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tripnav/internal/plan"
)

// Config is the full server configuration.
type Config struct {
	Port        string      `yaml:"port"`
	DatabaseURL string      `yaml:"databaseUrl"`
	RedisURL    string      `yaml:"redisUrl"`
	RateLimit   RateLimit   `yaml:"rateLimit"`
	Planner     plan.Config `yaml:"planner"`
}

// RateLimit bounds request throughput per client IP.
type RateLimit struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

// Default returns the configuration used when no file or env is present.
func Default() Config {
	return Config{
		Port:      "8080",
		RateLimit: RateLimit{PerSecond: 50, Burst: 100},
		Planner:   plan.DefaultConfig(),
	}
}

// Load reads CONFIG_FILE if set, then applies env overrides. A missing
// CONFIG_FILE path is an error; an unset CONFIG_FILE is not.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	return cfg, nil
}
