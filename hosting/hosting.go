// Package hosting deploys trained model artifacts to hosted inference
// endpoints and tears them down. Deployment is three platform calls: model
// registration, endpoint configuration, endpoint creation. The endpoint name
// is time-stamped so repeated runs never collide.
package hosting

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
	"github.com/YuminosukeSato/churnflow/pkg/log"
)

// SageMakerAPI is the subset of the platform client used for hosting.
type SageMakerAPI interface {
	CreateModel(ctx context.Context, params *sagemaker.CreateModelInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateModelOutput, error)
	CreateEndpointConfig(ctx context.Context, params *sagemaker.CreateEndpointConfigInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointConfigOutput, error)
	CreateEndpoint(ctx context.Context, params *sagemaker.CreateEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointOutput, error)
	DescribeEndpoint(ctx context.Context, params *sagemaker.DescribeEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, params *sagemaker.DeleteEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DeleteEndpointOutput, error)
	DeleteEndpointConfig(ctx context.Context, params *sagemaker.DeleteEndpointConfigInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DeleteEndpointConfigOutput, error)
	DeleteModel(ctx context.Context, params *sagemaker.DeleteModelInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DeleteModelOutput, error)
}

// DeploySpec describes one endpoint deployment.
type DeploySpec struct {
	// EndpointName is the time-stamped name for the endpoint. Model and
	// endpoint config reuse it with suffixes.
	EndpointName string

	// Image is the inference container, normally the training image.
	Image string

	// ModelDataURL is the S3 URI of the trained model artifact.
	ModelDataURL string

	RoleARN       string
	InstanceType  string
	InstanceCount int32
}

func (s DeploySpec) validate() error {
	if s.EndpointName == "" {
		return errors.NewValidationError("endpoint_name", "must not be empty", s.EndpointName)
	}
	if s.ModelDataURL == "" {
		return errors.NewValidationError("model_data_url", "must not be empty", s.ModelDataURL)
	}
	if s.Image == "" {
		return errors.NewValidationError("image", "must not be empty", s.Image)
	}
	if s.RoleARN == "" {
		return errors.NewValidationError("role_arn", "must not be empty", s.RoleARN)
	}
	if s.InstanceCount <= 0 {
		return errors.NewValidationError("instance_count", "must be positive", s.InstanceCount)
	}
	return nil
}

// Endpoint identifies the three resources created by one deployment.
type Endpoint struct {
	Name       string
	ConfigName string
	ModelName  string
}

// Host deploys and tears down hosted endpoints.
type Host struct {
	client SageMakerAPI
	logger *slog.Logger
}

// NewHost creates a Host using the given platform client.
func NewHost(client SageMakerAPI) *Host {
	return &Host{
		client: client,
		logger: slog.Default().With(log.ComponentKey, "hosting"),
	}
}

// Deploy registers the model artifact, creates an endpoint configuration
// with a single production variant and creates the endpoint. It returns as
// soon as creation is accepted; use WaitInService to block until the
// endpoint serves traffic.
func (h *Host) Deploy(ctx context.Context, spec DeploySpec) (*Endpoint, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	ep := &Endpoint{
		Name:       spec.EndpointName,
		ConfigName: spec.EndpointName + "-config",
		ModelName:  spec.EndpointName + "-model",
	}

	_, err := h.client.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(ep.ModelName),
		ExecutionRoleArn: aws.String(spec.RoleARN),
		PrimaryContainer: &smtypes.ContainerDefinition{
			Image:        aws.String(spec.Image),
			ModelDataUrl: aws.String(spec.ModelDataURL),
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "hosting.Deploy: create model %s", ep.ModelName)
	}

	_, err = h.client.CreateEndpointConfig(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(ep.ConfigName),
		ProductionVariants: []smtypes.ProductionVariant{
			{
				VariantName:          aws.String("AllTraffic"),
				ModelName:            aws.String(ep.ModelName),
				InstanceType:         smtypes.ProductionVariantInstanceType(spec.InstanceType),
				InitialInstanceCount: aws.Int32(spec.InstanceCount),
				InitialVariantWeight: aws.Float32(1),
			},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "hosting.Deploy: create endpoint config %s", ep.ConfigName)
	}

	_, err = h.client.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(ep.Name),
		EndpointConfigName: aws.String(ep.ConfigName),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "hosting.Deploy: create endpoint %s", ep.Name)
	}

	h.logger.Info("endpoint deployment started",
		log.OperationKey, "CreateEndpoint",
		log.EndpointKey, ep.Name,
		log.ModelDataKey, spec.ModelDataURL,
	)
	return ep, nil
}

// WaitInService polls the endpoint until it reaches InService. A Failed
// status or an elapsed timeout surfaces as an EndpointNotReadyError.
func (h *Host) WaitInService(ctx context.Context, endpointName string, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	lastStatus := ""

	for attempt := 1; ; attempt++ {
		out, err := h.client.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{
			EndpointName: aws.String(endpointName),
		})
		if err != nil {
			return errors.Wrapf(err, "hosting.WaitInService: describe endpoint %s", endpointName)
		}

		lastStatus = string(out.EndpointStatus)
		h.logger.Info("endpoint status",
			log.EndpointKey, endpointName,
			log.EndpointStatusKey, lastStatus,
			log.AttemptKey, attempt,
		)

		switch out.EndpointStatus {
		case smtypes.EndpointStatusInService:
			return nil
		case smtypes.EndpointStatusFailed:
			return errors.NewEndpointNotReadyError(endpointName, lastStatus, aws.ToString(out.FailureReason))
		}

		if time.Now().After(deadline) {
			return errors.NewEndpointNotReadyError(endpointName, lastStatus, "wait timed out")
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "hosting.WaitInService")
		case <-time.After(interval):
		}
	}
}

// Teardown deletes the endpoint, its configuration and the model. Deletion
// is best-effort: each resource is attempted even if a previous delete
// failed, and the failures are joined.
func (h *Host) Teardown(ctx context.Context, ep *Endpoint) error {
	if ep == nil {
		return errors.NewNotReadyError("endpoint", "Teardown")
	}

	var combined error
	if _, err := h.client.DeleteEndpoint(ctx, &sagemaker.DeleteEndpointInput{
		EndpointName: aws.String(ep.Name),
	}); err != nil {
		combined = errors.Combine(combined, errors.Wrapf(err, "delete endpoint %s", ep.Name))
	}
	if _, err := h.client.DeleteEndpointConfig(ctx, &sagemaker.DeleteEndpointConfigInput{
		EndpointConfigName: aws.String(ep.ConfigName),
	}); err != nil {
		combined = errors.Combine(combined, errors.Wrapf(err, "delete endpoint config %s", ep.ConfigName))
	}
	if _, err := h.client.DeleteModel(ctx, &sagemaker.DeleteModelInput{
		ModelName: aws.String(ep.ModelName),
	}); err != nil {
		combined = errors.Combine(combined, errors.Wrapf(err, "delete model %s", ep.ModelName))
	}

	if combined != nil {
		return errors.Wrap(combined, "hosting.Teardown")
	}

	h.logger.Info("endpoint torn down",
		log.PhaseKey, log.PhaseTeardown,
		log.EndpointKey, ep.Name,
	)
	return nil
}
