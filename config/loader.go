package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// Load reads the YAML configuration file, applies environment overrides and
// validates the result. Fields absent from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "config.Load: read %s", configPath)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config.Load: parse %s", configPath)
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config.Load: validation failed")
	}
	return cfg, nil
}

// applyEnvironmentOverrides lets deployment-specific values come from the
// environment, taking precedence over the file.
func applyEnvironmentOverrides(cfg *Config) {
	if region := os.Getenv("CHURNFLOW_REGION"); region != "" {
		cfg.Region = region
	}
	if role := os.Getenv("CHURNFLOW_ROLE_ARN"); role != "" {
		cfg.RoleARN = role
	}
	if bucket := os.Getenv("CHURNFLOW_BUCKET"); bucket != "" {
		cfg.Bucket = bucket
	}
	if prefix := os.Getenv("CHURNFLOW_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	if level := os.Getenv("CHURNFLOW_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}
