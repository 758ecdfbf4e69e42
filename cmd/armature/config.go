package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the CLI's engine configuration file.
type Config struct {
	LogLevel    string   `yaml:"log_level"`
	PluginRoots []string `yaml:"plugin_roots"`
	OrderDB     string   `yaml:"order_db"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LogLevel:    "INFO",
		PluginRoots: []string{"./plugins"},
		OrderDB:     "./armature.db",
	}
}

// LoadConfig reads the YAML config at path, applying defaults for
// missing fields. A missing file is not an error; defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if len(cfg.PluginRoots) == 0 {
		cfg.PluginRoots = []string{"./plugins"}
	}
	if cfg.OrderDB == "" {
		cfg.OrderDB = "./armature.db"
	}
	return cfg, nil
}
