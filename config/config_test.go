package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnflow/training"
)

const validYAML = `
region: us-west-2
role_arn: arn:aws:iam::123456789012:role/service-role/churnflow
bucket: churn-data
prefix: churn/xgboost
data:
  label_column: "Churn?"
  positive_label: "True."
  drop_columns: ["Phone"]
  train_fraction: 0.7
  validation_fraction: 0.2
  seed: 42
training:
  mode: builtin
  instance_type: ml.m5.xlarge
  instance_count: 1
  hyperparameters:
    max_depth: 6
    eta: 0.1
    gamma: 4
    min_child_weight: 6
    subsample: 0.8
    objective: binary:logistic
    num_round: 150
inference:
  delay: 250ms
  threshold: 0.6
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churnflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "churn-data", cfg.Bucket)
	assert.Equal(t, int64(42), cfg.Data.Seed)
	assert.Equal(t, 6, cfg.Training.Hyperparameters.MaxDepth)
	assert.Equal(t, 150, cfg.Training.Hyperparameters.NumRound)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Inference.Delay)
	assert.Equal(t, 0.6, cfg.Inference.Threshold)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, int32(5), cfg.Training.VolumeSizeGB)
	assert.Equal(t, Duration(30*time.Second), cfg.Hosting.PollInterval)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHURNFLOW_REGION", "eu-west-1")
	t.Setenv("CHURNFLOW_BUCKET", "churn-data-eu")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "churn-data-eu", cfg.Bucket)
	assert.Equal(t, "arn:aws:iam::123456789012:role/service-role/churnflow", cfg.RoleARN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "region: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.RoleARN = "arn:aws:iam::123456789012:role/churnflow"
		cfg.Bucket = "churn-data"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing region", func(c *Config) { c.Region = "" }},
		{"missing role", func(c *Config) { c.RoleARN = "" }},
		{"missing bucket", func(c *Config) { c.Bucket = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"missing label column", func(c *Config) { c.Data.LabelColumn = "" }},
		{"fractions above one", func(c *Config) { c.Data.TrainFraction = 0.9 }},
		{"bad mode", func(c *Config) { c.Training.Mode = "script" }},
		{"framework without entry point", func(c *Config) { c.Training.Mode = "framework" }},
		{"zero training instances", func(c *Config) { c.Training.InstanceCount = 0 }},
		{"zero hosting instances", func(c *Config) { c.Hosting.InstanceCount = 0 }},
		{"threshold above one", func(c *Config) { c.Inference.Threshold = 1.5 }},
		{"negative delay", func(c *Config) { c.Inference.Delay = Duration(-time.Second) }},
		{"bad hyperparameters", func(c *Config) { c.Training.Hyperparameters.Eta = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultMode(t *testing.T) {
	mode, err := training.ParseMode(Default().Training.Mode)
	require.NoError(t, err)
	assert.Equal(t, training.ModeBuiltin, mode)
}
