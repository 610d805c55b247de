package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PlannerConfig holds the settings for the external planning service.
type PlannerConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Shell   string        `yaml:"shell"`
	Token   string        `yaml:"token"`
	Planner PlannerConfig `yaml:"planner"`

	ConfigPath string `yaml:"-"`
	PrintToken bool   `yaml:"-"`
}

// Load builds the configuration from defaults, the YAML config file, flags
// and the OPENAI_API_KEY environment variable, in that order. A missing
// config file is not an error. An empty token is generated and written back.
func Load() (*Config, error) {
	cfg := &Config{
		Host:  "0.0.0.0",
		Port:  8765,
		Shell: "/bin/bash",
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	cfg.ConfigPath = filepath.Join(homeDir, ".config", "shellpilot", "config.yaml")

	if err := cfg.LoadFromFile(cfg.ConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	flag.StringVar(&cfg.Host, "host", cfg.Host, "listen address")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port (1-65535)")
	flag.StringVar(&cfg.Shell, "shell", cfg.Shell, "default shell for new sessions")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "authentication token (auto-generated if empty)")
	flag.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	flag.Parse()

	if cfg.Planner.APIKey == "" {
		cfg.Planner.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.Port)
	}
	if cfg.Shell == "" {
		return nil, fmt.Errorf("shell must not be empty")
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.SaveToFile(cfg.ConfigPath); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

// LoadFromFile merges settings from a YAML file into the config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

// SaveToFile writes the config as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
