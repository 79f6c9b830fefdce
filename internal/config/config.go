package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	API struct {
		BaseURL   string `yaml:"baseURL" validate:"required,url"`
		Token     string `yaml:"token"`
		TokenFile string `yaml:"tokenFile" validate:"omitempty,file"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"api"`
	Session struct {
		Window          string `yaml:"window"`
		AutoFinalize    *bool  `yaml:"autoFinalize"`
		FinalizeTimeout string `yaml:"finalizeTimeout"`
		Keying          string `yaml:"keying" validate:"omitempty,oneof=position question questionId"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" validate:"omitempty,url"`
	} `yaml:"postgres"`
	Test struct {
		TTL string `yaml:"ttl"`
	} `yaml:"test"`
}

var validate = validator.New()

// Load reads YAML config from path and validates it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required fields and that every duration parses.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, raw := range map[string]string{
		"api.timeout":             c.API.Timeout,
		"session.window":          c.Session.Window,
		"session.finalizeTimeout": c.Session.FinalizeTimeout,
		"redis.ttl":               c.Redis.TTL,
		"test.ttl":                c.Test.TTL,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	return nil
}

// AutoFinalizeEnabled defaults to true when unset.
func (c Config) AutoFinalizeEnabled() bool {
	return c.Session.AutoFinalize == nil || *c.Session.AutoFinalize
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
