package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config defines client configuration.
type Config struct {
	API APIConfig `yaml:"api"`
	Log LogConfig `yaml:"log"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment
// variables.
func Load() (Config, error) {
	cfg := Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("CREWDECK_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if url := os.Getenv("CREWDECK_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}
	if token := os.Getenv("CREWDECK_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if level := os.Getenv("CREWDECK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
