// Package config loads process configuration: server address, model
// selection, loop limits and the tool provider inventory. Scalar settings
// come from environment variables; the provider inventory is a YAML file
// mapping provider names to endpoint definitions.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// ProviderSpec describes how to reach one tool provider. Type selects the
// transport: "stdio" (default) spawns Command with Args/Env, "sse" and
// "http" connect to URL.
type ProviderSpec struct {
	Type    string   `yaml:"type"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	URL     string   `yaml:"url"`
}

// Config holds all settings read once at startup.
type Config struct {
	Host          string        `env:"HOST" envDefault:"0.0.0.0"`
	Port          int           `env:"PORT" envDefault:"8000"`
	ModelAPI      string        `env:"MODEL_API" envDefault:"openai"`
	ModelName     string        `env:"MODEL_NAME"`
	StepLimit     int           `env:"STEP_LIMIT" envDefault:"8"`
	CallTimeout   time.Duration `env:"CALL_TIMEOUT" envDefault:"30s"`
	EventBuffer   int           `env:"EVENT_BUFFER" envDefault:"64"`
	ProvidersFile string        `env:"PROVIDERS_FILE" envDefault:"providers.yml"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"json"`
	LogDebug      bool          `env:"LOG_DEBUG"`

	Providers map[string]ProviderSpec `env:"-"`
}

// Load reads environment variables and the providers file. A missing
// providers file yields an empty inventory rather than an error so the
// server can run tool-less.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	providers, err := loadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	cfg.Providers = providers
	return &cfg, nil
}

type providersFile struct {
	Providers map[string]ProviderSpec `yaml:"providers"`
}

func loadProviders(path string) (map[string]ProviderSpec, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]ProviderSpec{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}
	if f.Providers == nil {
		f.Providers = map[string]ProviderSpec{}
	}
	return f.Providers, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }
