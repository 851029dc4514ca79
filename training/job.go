// Package training submits gradient-boosted-tree training jobs to the
// managed platform and waits for them to finish. Two submission modes are
// supported: the built-in algorithm image, and framework ("script") mode
// where a custom entry point runs inside the open-source framework
// container. All tree construction happens inside the platform; this
// package only assembles the job description and polls its status.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
	"github.com/YuminosukeSato/churnflow/pkg/log"
)

// Mode selects how the training job is submitted.
type Mode string

const (
	// ModeBuiltin trains with the platform's built-in algorithm image.
	ModeBuiltin Mode = "builtin"
	// ModeFramework trains with a custom entry-point script inside the
	// open-source framework container.
	ModeFramework Mode = "framework"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeBuiltin:
		return ModeBuiltin, nil
	case ModeFramework:
		return ModeFramework, nil
	default:
		return "", errors.NewValidationError("training.mode", "must be 'builtin' or 'framework'", s)
	}
}

// JobSpec describes one training job submission.
type JobSpec struct {
	Name    string
	Mode    Mode
	Image   string
	RoleARN string

	// Data channels; both are headerless CSV prefixes in S3.
	TrainURI      string
	ValidationURI string
	OutputURI     string

	InstanceType  string
	InstanceCount int32
	VolumeSizeGB  int32
	MaxRuntime    time.Duration

	Hyperparameters Hyperparameters

	// Framework mode only: entry-point script name and the S3 URI of the
	// uploaded source bundle.
	EntryPoint string
	SourceURI  string
}

func (s JobSpec) validate() error {
	if s.Name == "" {
		return errors.NewValidationError("job.name", "must not be empty", s.Name)
	}
	if s.RoleARN == "" {
		return errors.NewValidationError("role_arn", "must not be empty", s.RoleARN)
	}
	if s.TrainURI == "" || s.ValidationURI == "" {
		return errors.NewValidationError("data_channels", "train and validation URIs are required", [2]string{s.TrainURI, s.ValidationURI})
	}
	if s.OutputURI == "" {
		return errors.NewValidationError("output_uri", "must not be empty", s.OutputURI)
	}
	if s.Mode == ModeFramework && (s.EntryPoint == "" || s.SourceURI == "") {
		return errors.NewValidationError("framework_source", "framework mode requires an entry point and a source bundle URI", s.EntryPoint)
	}
	return s.Hyperparameters.Validate()
}

// Result carries the outcome of a completed training job.
type Result struct {
	JobName      string
	Status       string
	ModelDataURL string
	Elapsed      time.Duration
}

// SageMakerAPI is the subset of the platform client used for training.
type SageMakerAPI interface {
	CreateTrainingJob(ctx context.Context, params *sagemaker.CreateTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateTrainingJobOutput, error)
	DescribeTrainingJob(ctx context.Context, params *sagemaker.DescribeTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeTrainingJobOutput, error)
}

// Trainer submits training jobs and polls their status.
type Trainer struct {
	client SageMakerAPI
	logger *slog.Logger
}

// NewTrainer creates a Trainer using the given platform client.
func NewTrainer(client SageMakerAPI) *Trainer {
	return &Trainer{
		client: client,
		logger: slog.Default().With(log.ComponentKey, "training"),
	}
}

// Submit sends the training job to the platform. In framework mode the
// entry point and source bundle location travel as reserved hyperparameters
// alongside the model hyperparameters.
func (t *Trainer) Submit(ctx context.Context, spec JobSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}

	hyperparams := spec.Hyperparameters.ToMap()
	if spec.Mode == ModeFramework {
		hyperparams["sagemaker_program"] = spec.EntryPoint
		hyperparams["sagemaker_submit_directory"] = spec.SourceURI
	}

	input := &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(spec.Name),
		RoleArn:         aws.String(spec.RoleARN),
		AlgorithmSpecification: &smtypes.AlgorithmSpecification{
			TrainingImage:     aws.String(spec.Image),
			TrainingInputMode: smtypes.TrainingInputModeFile,
		},
		HyperParameters: hyperparams,
		InputDataConfig: []smtypes.Channel{
			csvChannel("train", spec.TrainURI),
			csvChannel("validation", spec.ValidationURI),
		},
		OutputDataConfig: &smtypes.OutputDataConfig{
			S3OutputPath: aws.String(spec.OutputURI),
		},
		ResourceConfig: &smtypes.ResourceConfig{
			InstanceType:   smtypes.TrainingInstanceType(spec.InstanceType),
			InstanceCount:  aws.Int32(spec.InstanceCount),
			VolumeSizeInGB: aws.Int32(spec.VolumeSizeGB),
		},
		StoppingCondition: &smtypes.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(int32(spec.MaxRuntime / time.Second)),
		},
	}

	if _, err := t.client.CreateTrainingJob(ctx, input); err != nil {
		return errors.Wrapf(err, "training.Submit: job %s", spec.Name)
	}

	t.logger.Info("training job submitted",
		log.OperationKey, "CreateTrainingJob",
		log.JobNameKey, spec.Name,
		log.TrainingModeKey, string(spec.Mode),
		log.TrainingImageKey, spec.Image,
		log.HyperParamsKey, hyperparams,
	)
	return nil
}

// Wait polls the job status until it reaches a terminal state or the
// timeout elapses. A Failed or Stopped job surfaces as a JobFailedError
// carrying the platform's failure reason.
func (t *Trainer) Wait(ctx context.Context, jobName string, interval, timeout time.Duration) (*Result, error) {
	start := time.Now()
	deadline := start.Add(timeout)
	lastStatus := ""

	for attempt := 1; ; attempt++ {
		out, err := t.client.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{
			TrainingJobName: aws.String(jobName),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "training.Wait: describe job %s", jobName)
		}

		lastStatus = string(out.TrainingJobStatus)
		t.logger.Info("training job status",
			log.JobNameKey, jobName,
			log.JobStatusKey, lastStatus,
			log.AttemptKey, attempt,
		)

		switch out.TrainingJobStatus {
		case smtypes.TrainingJobStatusCompleted:
			result := &Result{
				JobName: jobName,
				Status:  lastStatus,
				Elapsed: time.Since(start),
			}
			if out.ModelArtifacts != nil {
				result.ModelDataURL = aws.ToString(out.ModelArtifacts.S3ModelArtifacts)
			}
			t.logger.Info("training job completed",
				log.JobNameKey, jobName,
				log.ModelDataKey, result.ModelDataURL,
				log.DurationSecondsKey, result.Elapsed.Seconds(),
			)
			return result, nil
		case smtypes.TrainingJobStatusFailed, smtypes.TrainingJobStatusStopped:
			return nil, errors.NewJobFailedError(jobName, lastStatus, aws.ToString(out.FailureReason))
		}

		if time.Now().After(deadline) {
			return nil, errors.NewWaitTimeoutError("training job "+jobName, lastStatus)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "training.Wait")
		case <-time.After(interval):
		}
	}
}

func csvChannel(name, uri string) smtypes.Channel {
	return smtypes.Channel{
		ChannelName: aws.String(name),
		ContentType: aws.String("text/csv"),
		DataSource: &smtypes.DataSource{
			S3DataSource: &smtypes.S3DataSource{
				S3DataType:             smtypes.S3DataTypeS3Prefix,
				S3Uri:                  aws.String(uri),
				S3DataDistributionType: smtypes.S3DataDistributionFullyReplicated,
			},
		},
	}
}

// TimestampedName builds a unique, time-stamped resource name. The platform
// requires training job and endpoint names to be unique per account, so a
// short random suffix guards against collisions within one second.
func TimestampedName(base string) string {
	stamp := time.Now().UTC().Format("2006-01-02-15-04-05")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%s-%s", base, stamp, suffix)
}
