// Package config loads the workflow configuration from a YAML file with
// environment-variable overrides for deployment-specific values.
package config

import (
	"time"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
	"github.com/YuminosukeSato/churnflow/training"
)

// Config is the full workflow configuration.
type Config struct {
	Region   string `yaml:"region"`
	RoleARN  string `yaml:"role_arn"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	LogLevel string `yaml:"log_level"`

	Data      DataConfig      `yaml:"data"`
	Training  TrainingConfig  `yaml:"training"`
	Hosting   HostingConfig   `yaml:"hosting"`
	Inference InferenceConfig `yaml:"inference"`
}

// DataConfig controls dataset preparation and splitting.
type DataConfig struct {
	LabelColumn   string   `yaml:"label_column"`
	PositiveLabel string   `yaml:"positive_label"`
	DropColumns   []string `yaml:"drop_columns"`
	TrainFraction float64  `yaml:"train_fraction"`
	ValFraction   float64  `yaml:"validation_fraction"`
	Seed          int64    `yaml:"seed"`
}

// TrainingConfig controls training job submission.
type TrainingConfig struct {
	Mode             string                   `yaml:"mode"`
	InstanceType     string                   `yaml:"instance_type"`
	InstanceCount    int32                    `yaml:"instance_count"`
	VolumeSizeGB     int32                    `yaml:"volume_size_gb"`
	MaxRuntime       Duration                 `yaml:"max_runtime"`
	PollInterval     Duration                 `yaml:"poll_interval"`
	WaitTimeout      Duration                 `yaml:"wait_timeout"`
	EntryPoint       string                   `yaml:"entry_point"`
	FrameworkVersion string                   `yaml:"framework_version"`
	Hyperparameters  training.Hyperparameters `yaml:"hyperparameters"`
}

// HostingConfig controls endpoint deployment.
type HostingConfig struct {
	InstanceType  string   `yaml:"instance_type"`
	InstanceCount int32    `yaml:"instance_count"`
	PollInterval  Duration `yaml:"poll_interval"`
	WaitTimeout   Duration `yaml:"wait_timeout"`
}

// InferenceConfig controls the request loop against the endpoint.
type InferenceConfig struct {
	// Delay is the fixed pause between successive requests.
	Delay     Duration `yaml:"delay"`
	Threshold float64  `yaml:"threshold"`
}

// Default returns the configuration used when a field is absent from the
// file. Hyperparameter defaults match the churn tutorial settings.
func Default() *Config {
	return &Config{
		Region:   "us-east-1",
		Prefix:   "churn/xgboost",
		LogLevel: "info",
		Data: DataConfig{
			LabelColumn:   "Churn?",
			PositiveLabel: "True.",
			DropColumns:   []string{"Phone"},
			TrainFraction: 0.7,
			ValFraction:   0.2,
			Seed:          1729,
		},
		Training: TrainingConfig{
			Mode:             string(training.ModeBuiltin),
			InstanceType:     "ml.m5.xlarge",
			InstanceCount:    1,
			VolumeSizeGB:     5,
			MaxRuntime:       Duration(time.Hour),
			PollInterval:     Duration(30 * time.Second),
			WaitTimeout:      Duration(2 * time.Hour),
			FrameworkVersion: "1.7-1",
			Hyperparameters:  training.DefaultHyperparameters(),
		},
		Hosting: HostingConfig{
			InstanceType:  "ml.m5.large",
			InstanceCount: 1,
			PollInterval:  Duration(30 * time.Second),
			WaitTimeout:   Duration(30 * time.Minute),
		},
		Inference: InferenceConfig{
			Delay:     Duration(500 * time.Millisecond),
			Threshold: 0.5,
		},
	}
}

// Validate checks the configuration before any platform call.
func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.NewValidationError("region", "must not be empty", c.Region)
	}
	if c.RoleARN == "" {
		return errors.NewValidationError("role_arn", "must not be empty", c.RoleARN)
	}
	if c.Bucket == "" {
		return errors.NewValidationError("bucket", "must not be empty", c.Bucket)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError("log_level", "must be debug, info, warn or error", c.LogLevel)
	}
	if c.Data.LabelColumn == "" {
		return errors.NewValidationError("data.label_column", "must not be empty", c.Data.LabelColumn)
	}
	if c.Data.TrainFraction <= 0 || c.Data.TrainFraction+c.Data.ValFraction >= 1 {
		return errors.NewValidationError("data.train_fraction", "fractions must satisfy 0 < train, train+validation < 1",
			[2]float64{c.Data.TrainFraction, c.Data.ValFraction})
	}
	if _, err := training.ParseMode(c.Training.Mode); err != nil {
		return err
	}
	if c.Training.Mode == string(training.ModeFramework) && c.Training.EntryPoint == "" {
		return errors.NewValidationError("training.entry_point", "required in framework mode", c.Training.EntryPoint)
	}
	if c.Training.InstanceCount <= 0 {
		return errors.NewValidationError("training.instance_count", "must be positive", c.Training.InstanceCount)
	}
	if c.Hosting.InstanceCount <= 0 {
		return errors.NewValidationError("hosting.instance_count", "must be positive", c.Hosting.InstanceCount)
	}
	if c.Inference.Threshold < 0 || c.Inference.Threshold > 1 {
		return errors.NewValidationError("inference.threshold", "must be in [0, 1]", c.Inference.Threshold)
	}
	if c.Inference.Delay < 0 {
		return errors.NewValidationError("inference.delay", "must not be negative", c.Inference.Delay)
	}
	return c.Training.Hyperparameters.Validate()
}
