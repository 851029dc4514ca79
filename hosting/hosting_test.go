package hosting

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

type fakeSageMaker struct {
	modelInputs  []*sagemaker.CreateModelInput
	configInputs []*sagemaker.CreateEndpointConfigInput
	createInputs []*sagemaker.CreateEndpointInput

	createModelErr    error
	createConfigErr   error
	createEndpointErr error

	describes   []*sagemaker.DescribeEndpointOutput
	describeIdx int

	deletedEndpoints []string
	deletedConfigs   []string
	deletedModels    []string

	deleteEndpointErr error
	deleteConfigErr   error
	deleteModelErr    error
}

func (f *fakeSageMaker) CreateModel(_ context.Context, params *sagemaker.CreateModelInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateModelOutput, error) {
	f.modelInputs = append(f.modelInputs, params)
	if f.createModelErr != nil {
		return nil, f.createModelErr
	}
	return &sagemaker.CreateModelOutput{}, nil
}

func (f *fakeSageMaker) CreateEndpointConfig(_ context.Context, params *sagemaker.CreateEndpointConfigInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointConfigOutput, error) {
	f.configInputs = append(f.configInputs, params)
	if f.createConfigErr != nil {
		return nil, f.createConfigErr
	}
	return &sagemaker.CreateEndpointConfigOutput{}, nil
}

func (f *fakeSageMaker) CreateEndpoint(_ context.Context, params *sagemaker.CreateEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointOutput, error) {
	f.createInputs = append(f.createInputs, params)
	if f.createEndpointErr != nil {
		return nil, f.createEndpointErr
	}
	return &sagemaker.CreateEndpointOutput{}, nil
}

func (f *fakeSageMaker) DescribeEndpoint(_ context.Context, _ *sagemaker.DescribeEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error) {
	out := f.describes[f.describeIdx]
	if f.describeIdx < len(f.describes)-1 {
		f.describeIdx++
	}
	return out, nil
}

func (f *fakeSageMaker) DeleteEndpoint(_ context.Context, params *sagemaker.DeleteEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.DeleteEndpointOutput, error) {
	f.deletedEndpoints = append(f.deletedEndpoints, aws.ToString(params.EndpointName))
	if f.deleteEndpointErr != nil {
		return nil, f.deleteEndpointErr
	}
	return &sagemaker.DeleteEndpointOutput{}, nil
}

func (f *fakeSageMaker) DeleteEndpointConfig(_ context.Context, params *sagemaker.DeleteEndpointConfigInput, _ ...func(*sagemaker.Options)) (*sagemaker.DeleteEndpointConfigOutput, error) {
	f.deletedConfigs = append(f.deletedConfigs, aws.ToString(params.EndpointConfigName))
	if f.deleteConfigErr != nil {
		return nil, f.deleteConfigErr
	}
	return &sagemaker.DeleteEndpointConfigOutput{}, nil
}

func (f *fakeSageMaker) DeleteModel(_ context.Context, params *sagemaker.DeleteModelInput, _ ...func(*sagemaker.Options)) (*sagemaker.DeleteModelOutput, error) {
	f.deletedModels = append(f.deletedModels, aws.ToString(params.ModelName))
	if f.deleteModelErr != nil {
		return nil, f.deleteModelErr
	}
	return &sagemaker.DeleteModelOutput{}, nil
}

func validSpec() DeploySpec {
	return DeploySpec{
		EndpointName:  "churn-ep-2026-08-23-10-00-00-abcd1234",
		Image:         "811284229777.dkr.ecr.us-east-1.amazonaws.com/xgboost:1",
		ModelDataURL:  "s3://churn-data/churn/output/model.tar.gz",
		RoleARN:       "arn:aws:iam::123456789012:role/service-role/churnflow",
		InstanceType:  "ml.m5.large",
		InstanceCount: 1,
	}
}

func TestDeploy(t *testing.T) {
	client := &fakeSageMaker{}
	host := NewHost(client)

	ep, err := host.Deploy(context.Background(), validSpec())
	require.NoError(t, err)

	assert.Equal(t, "churn-ep-2026-08-23-10-00-00-abcd1234", ep.Name)
	assert.Equal(t, ep.Name+"-config", ep.ConfigName)
	assert.Equal(t, ep.Name+"-model", ep.ModelName)

	require.Len(t, client.modelInputs, 1)
	model := client.modelInputs[0]
	assert.Equal(t, ep.ModelName, aws.ToString(model.ModelName))
	assert.Equal(t, "s3://churn-data/churn/output/model.tar.gz", aws.ToString(model.PrimaryContainer.ModelDataUrl))

	require.Len(t, client.configInputs, 1)
	variants := client.configInputs[0].ProductionVariants
	require.Len(t, variants, 1)
	assert.Equal(t, "AllTraffic", aws.ToString(variants[0].VariantName))
	assert.Equal(t, smtypes.ProductionVariantInstanceType("ml.m5.large"), variants[0].InstanceType)
	assert.EqualValues(t, 1, aws.ToInt32(variants[0].InitialInstanceCount))

	require.Len(t, client.createInputs, 1)
	assert.Equal(t, ep.ConfigName, aws.ToString(client.createInputs[0].EndpointConfigName))
}

func TestDeployValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DeploySpec)
	}{
		{"missing endpoint name", func(s *DeploySpec) { s.EndpointName = "" }},
		{"missing model data", func(s *DeploySpec) { s.ModelDataURL = "" }},
		{"missing image", func(s *DeploySpec) { s.Image = "" }},
		{"missing role", func(s *DeploySpec) { s.RoleARN = "" }},
		{"zero instances", func(s *DeploySpec) { s.InstanceCount = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeSageMaker{}
			spec := validSpec()
			tt.mutate(&spec)

			_, err := NewHost(client).Deploy(context.Background(), spec)
			require.Error(t, err)
			assert.Empty(t, client.modelInputs)
		})
	}
}

func TestDeployCreateModelFails(t *testing.T) {
	client := &fakeSageMaker{createModelErr: errors.New("limit exceeded")}
	_, err := NewHost(client).Deploy(context.Background(), validSpec())
	require.Error(t, err)
	assert.Empty(t, client.createInputs, "endpoint creation must not run after model failure")
}

func describeStatus(status smtypes.EndpointStatus) *sagemaker.DescribeEndpointOutput {
	return &sagemaker.DescribeEndpointOutput{EndpointStatus: status}
}

func TestWaitInService(t *testing.T) {
	client := &fakeSageMaker{describes: []*sagemaker.DescribeEndpointOutput{
		describeStatus(smtypes.EndpointStatusCreating),
		describeStatus(smtypes.EndpointStatusCreating),
		describeStatus(smtypes.EndpointStatusInService),
	}}

	err := NewHost(client).WaitInService(context.Background(), "churn-ep", time.Millisecond, time.Second)
	require.NoError(t, err)
}

func TestWaitInServiceFailed(t *testing.T) {
	failed := describeStatus(smtypes.EndpointStatusFailed)
	failed.FailureReason = aws.String("insufficient capacity")
	client := &fakeSageMaker{describes: []*sagemaker.DescribeEndpointOutput{failed}}

	err := NewHost(client).WaitInService(context.Background(), "churn-ep", time.Millisecond, time.Second)
	require.Error(t, err)

	var epErr *errors.EndpointNotReadyError
	require.True(t, errors.As(err, &epErr))
	assert.Equal(t, "insufficient capacity", epErr.Reason)
}

func TestWaitInServiceTimeout(t *testing.T) {
	client := &fakeSageMaker{describes: []*sagemaker.DescribeEndpointOutput{
		describeStatus(smtypes.EndpointStatusCreating),
	}}

	err := NewHost(client).WaitInService(context.Background(), "churn-ep", time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)

	var epErr *errors.EndpointNotReadyError
	require.True(t, errors.As(err, &epErr))
	assert.Equal(t, "Creating", epErr.Status)
}

func TestTeardown(t *testing.T) {
	client := &fakeSageMaker{}
	ep := &Endpoint{Name: "churn-ep", ConfigName: "churn-ep-config", ModelName: "churn-ep-model"}

	require.NoError(t, NewHost(client).Teardown(context.Background(), ep))
	assert.Equal(t, []string{"churn-ep"}, client.deletedEndpoints)
	assert.Equal(t, []string{"churn-ep-config"}, client.deletedConfigs)
	assert.Equal(t, []string{"churn-ep-model"}, client.deletedModels)
}

func TestTeardownBestEffort(t *testing.T) {
	client := &fakeSageMaker{deleteEndpointErr: errors.New("already deleted")}
	ep := &Endpoint{Name: "churn-ep", ConfigName: "churn-ep-config", ModelName: "churn-ep-model"}

	err := NewHost(client).Teardown(context.Background(), ep)
	require.Error(t, err)

	// The remaining resources are still attempted.
	assert.Equal(t, []string{"churn-ep-config"}, client.deletedConfigs)
	assert.Equal(t, []string{"churn-ep-model"}, client.deletedModels)
}

func TestTeardownNilEndpoint(t *testing.T) {
	err := NewHost(&fakeSageMaker{}).Teardown(context.Background(), nil)
	require.Error(t, err)

	var nrErr *errors.NotReadyError
	assert.True(t, errors.As(err, &nrErr))
}
