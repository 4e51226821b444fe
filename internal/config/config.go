// Package config loads tool configuration from a YAML file with environment
// variable overrides for credentials, so CI systems never need a config file
// on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds credentials and defaults shared by every command.
type Config struct {
	// PantheonToken is the platform machine token, exchanged for a session.
	PantheonToken string `yaml:"pantheon_token" validate:"required"`

	// Provider selects the git hosting service.
	Provider string `yaml:"provider" validate:"omitempty,oneof=github gitlab bitbucket"`

	GitHubToken          string `yaml:"github_token"`
	GitLabToken          string `yaml:"gitlab_token"`
	BitbucketUser        string `yaml:"bitbucket_user"`
	BitbucketAppPassword string `yaml:"bitbucket_app_password"`

	// CircleToken authorizes CI project setup; optional for commands that
	// never touch CI.
	CircleToken string `yaml:"circle_token"`
}

// envOverrides maps environment variables onto config fields. Environment
// always wins over the file.
var envOverrides = map[string]func(*Config, string){
	"PANTHEON_TOKEN":  func(c *Config, v string) { c.PantheonToken = v },
	"GITHUB_TOKEN":    func(c *Config, v string) { c.GitHubToken = v },
	"GITLAB_TOKEN":    func(c *Config, v string) { c.GitLabToken = v },
	"BITBUCKET_USER":  func(c *Config, v string) { c.BitbucketUser = v },
	"BITBUCKET_PASS":  func(c *Config, v string) { c.BitbucketAppPassword = v },
	"CIRCLE_TOKEN":    func(c *Config, v string) { c.CircleToken = v },
	"BUILD_PROVIDER":  func(c *Config, v string) { c.Provider = v },
}

// DefaultPath returns the config file location used when --config is not
// given. The file is optional.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".buildflow.yml"
	}
	return filepath.Join(home, ".buildflow.yml")
}

// Load reads the YAML file at path (missing files are fine), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Credentials can come entirely from the environment.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	for name, apply := range envOverrides {
		if v := os.Getenv(name); v != "" {
			apply(&cfg, v)
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
