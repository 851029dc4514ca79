package workflow

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnflow/config"
)

const sampleCSV = "../dataset/testdata/churn_sample.csv"

type fakeS3 struct {
	buckets []string
	objects map[string]string
}

func (f *fakeS3) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.buckets = append(f.buckets, aws.ToString(params.Bucket))
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[aws.ToString(params.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

type fakePlatform struct {
	jobInputs []*sagemaker.CreateTrainingJobInput

	jobStatuses []smtypes.TrainingJobStatus
	jobIdx      int

	endpointStatuses []smtypes.EndpointStatus
	endpointIdx      int

	modelInputs  []*sagemaker.CreateModelInput
	configInputs []*sagemaker.CreateEndpointConfigInput
	createInputs []*sagemaker.CreateEndpointInput

	deletedEndpoints []string
	deletedConfigs   []string
	deletedModels    []string
}

func (f *fakePlatform) CreateTrainingJob(_ context.Context, params *sagemaker.CreateTrainingJobInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateTrainingJobOutput, error) {
	f.jobInputs = append(f.jobInputs, params)
	return &sagemaker.CreateTrainingJobOutput{}, nil
}

func (f *fakePlatform) DescribeTrainingJob(_ context.Context, params *sagemaker.DescribeTrainingJobInput, _ ...func(*sagemaker.Options)) (*sagemaker.DescribeTrainingJobOutput, error) {
	status := f.jobStatuses[f.jobIdx]
	if f.jobIdx < len(f.jobStatuses)-1 {
		f.jobIdx++
	}
	out := &sagemaker.DescribeTrainingJobOutput{TrainingJobStatus: status}
	if status == smtypes.TrainingJobStatusCompleted {
		out.ModelArtifacts = &smtypes.ModelArtifacts{
			S3ModelArtifacts: aws.String("s3://churn-data/churn/output/" + aws.ToString(params.TrainingJobName) + "/model.tar.gz"),
		}
	}
	return out, nil
}

func (f *fakePlatform) CreateModel(_ context.Context, params *sagemaker.CreateModelInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateModelOutput, error) {
	f.modelInputs = append(f.modelInputs, params)
	return &sagemaker.CreateModelOutput{}, nil
}

func (f *fakePlatform) CreateEndpointConfig(_ context.Context, params *sagemaker.CreateEndpointConfigInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointConfigOutput, error) {
	f.configInputs = append(f.configInputs, params)
	return &sagemaker.CreateEndpointConfigOutput{}, nil
}

func (f *fakePlatform) CreateEndpoint(_ context.Context, params *sagemaker.CreateEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointOutput, error) {
	f.createInputs = append(f.createInputs, params)
	return &sagemaker.CreateEndpointOutput{}, nil
}

func (f *fakePlatform) DescribeEndpoint(_ context.Context, _ *sagemaker.DescribeEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error) {
	status := f.endpointStatuses[f.endpointIdx]
	if f.endpointIdx < len(f.endpointStatuses)-1 {
		f.endpointIdx++
	}
	return &sagemaker.DescribeEndpointOutput{EndpointStatus: status}, nil
}

func (f *fakePlatform) DeleteEndpoint(_ context.Context, params *sagemaker.DeleteEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.DeleteEndpointOutput, error) {
	f.deletedEndpoints = append(f.deletedEndpoints, aws.ToString(params.EndpointName))
	return &sagemaker.DeleteEndpointOutput{}, nil
}

func (f *fakePlatform) DeleteEndpointConfig(_ context.Context, params *sagemaker.DeleteEndpointConfigInput, _ ...func(*sagemaker.Options)) (*sagemaker.DeleteEndpointConfigOutput, error) {
	f.deletedConfigs = append(f.deletedConfigs, aws.ToString(params.EndpointConfigName))
	return &sagemaker.DeleteEndpointConfigOutput{}, nil
}

func (f *fakePlatform) DeleteModel(_ context.Context, params *sagemaker.DeleteModelInput, _ ...func(*sagemaker.Options)) (*sagemaker.DeleteModelOutput, error) {
	f.deletedModels = append(f.deletedModels, aws.ToString(params.ModelName))
	return &sagemaker.DeleteModelOutput{}, nil
}

type fakeRuntime struct {
	calls  int
	scores []string
}

func (f *fakeRuntime) InvokeEndpoint(_ context.Context, _ *sagemakerruntime.InvokeEndpointInput, _ ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	score := f.scores[f.calls%len(f.scores)]
	f.calls++
	return &sagemakerruntime.InvokeEndpointOutput{Body: []byte(score + "\n")}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.RoleARN = "arn:aws:iam::123456789012:role/service-role/churnflow"
	cfg.Bucket = "churn-data"
	cfg.Training.PollInterval = config.Duration(time.Millisecond)
	cfg.Training.WaitTimeout = config.Duration(time.Second)
	cfg.Hosting.PollInterval = config.Duration(time.Millisecond)
	cfg.Hosting.WaitTimeout = config.Duration(time.Second)
	cfg.Inference.Delay = 0
	return cfg
}

func readyPlatform() *fakePlatform {
	return &fakePlatform{
		jobStatuses: []smtypes.TrainingJobStatus{
			smtypes.TrainingJobStatusInProgress,
			smtypes.TrainingJobStatusCompleted,
		},
		endpointStatuses: []smtypes.EndpointStatus{
			smtypes.EndpointStatusCreating,
			smtypes.EndpointStatusInService,
		},
	}
}

func TestRun(t *testing.T) {
	s3Client := &fakeS3{}
	platform := readyPlatform()
	runtime := &fakeRuntime{scores: []string{"0.92", "0.08"}}
	outDir := t.TempDir()

	p := New(testConfig(), s3Client, platform, runtime)
	rep, err := p.Run(context.Background(), RunOptions{DataPath: sampleCSV, OutputDir: outDir})
	require.NoError(t, err)

	// Splits were uploaded under the configured prefix.
	assert.Equal(t, []string{"churn-data"}, s3Client.buckets)
	require.Contains(t, s3Client.objects, "churn/xgboost/train/train.csv")
	require.Contains(t, s3Client.objects, "churn/xgboost/validation/validation.csv")

	// 16 sample rows at a 0.7/0.2 split: 11 train, 3 validation, 2 test.
	trainBody := s3Client.objects["churn/xgboost/train/train.csv"]
	assert.Len(t, strings.Split(strings.TrimSpace(trainBody), "\n"), 11)

	// The training job carried both channels and the configured knobs.
	require.Len(t, platform.jobInputs, 1)
	job := platform.jobInputs[0]
	require.Len(t, job.InputDataConfig, 2)
	assert.Equal(t, "train", aws.ToString(job.InputDataConfig[0].ChannelName))
	assert.Equal(t, "s3://churn-data/churn/xgboost/train/train.csv", aws.ToString(job.InputDataConfig[0].DataSource.S3DataSource.S3Uri))
	assert.Equal(t, "s3://churn-data/churn/xgboost/output", aws.ToString(job.OutputDataConfig.S3OutputPath))
	assert.Equal(t, "100", job.HyperParameters["num_round"])
	assert.NotContains(t, job.HyperParameters, "sagemaker_program")

	// The endpoint came from the same artifact the job produced.
	require.NotNil(t, rep.Training)
	require.Len(t, platform.modelInputs, 1)
	assert.Equal(t, rep.Training.ModelDataURL, aws.ToString(platform.modelInputs[0].PrimaryContainer.ModelDataUrl))

	// One request per test row.
	require.NotNil(t, rep.Evaluation)
	assert.Len(t, rep.Evaluation.Scores, 2)
	assert.Equal(t, 2, runtime.calls)

	// Report artifacts were rendered.
	assert.FileExists(t, filepath.Join(outDir, "score_histogram.png"))

	// Teardown removed everything the run created.
	require.NotNil(t, rep.Endpoint)
	assert.Equal(t, []string{rep.Endpoint.Name}, platform.deletedEndpoints)
	assert.Equal(t, []string{rep.Endpoint.ConfigName}, platform.deletedConfigs)
	assert.Equal(t, []string{rep.Endpoint.ModelName}, platform.deletedModels)
}

func TestRunKeepEndpoint(t *testing.T) {
	s3Client := &fakeS3{}
	platform := readyPlatform()
	runtime := &fakeRuntime{scores: []string{"0.5"}}

	p := New(testConfig(), s3Client, platform, runtime)
	rep, err := p.Run(context.Background(), RunOptions{DataPath: sampleCSV, KeepEndpoint: true})
	require.NoError(t, err)

	assert.NotNil(t, rep.Endpoint)
	assert.Empty(t, platform.deletedEndpoints)

	// No output directory, no artifacts.
	assert.Empty(t, rep.Evaluation.HistogramPath)
}

func TestRunFrameworkMode(t *testing.T) {
	entryPoint := filepath.Join(t.TempDir(), "train_xgboost.py")
	require.NoError(t, os.WriteFile(entryPoint, []byte("import xgboost\n"), 0o644))

	cfg := testConfig()
	cfg.Training.Mode = "framework"
	cfg.Training.EntryPoint = entryPoint

	s3Client := &fakeS3{}
	platform := readyPlatform()
	runtime := &fakeRuntime{scores: []string{"0.7"}}

	p := New(cfg, s3Client, platform, runtime)
	_, err := p.Run(context.Background(), RunOptions{DataPath: sampleCSV})
	require.NoError(t, err)

	// The source bundle was uploaded and referenced via the reserved
	// hyperparameters.
	require.Contains(t, s3Client.objects, "churn/xgboost/source/sourcedir.tar.gz")
	require.Len(t, platform.jobInputs, 1)
	hp := platform.jobInputs[0].HyperParameters
	assert.Equal(t, "train_xgboost.py", hp["sagemaker_program"])
	assert.Equal(t, "s3://churn-data/churn/xgboost/source/sourcedir.tar.gz", hp["sagemaker_submit_directory"])
	assert.Contains(t, aws.ToString(platform.jobInputs[0].AlgorithmSpecification.TrainingImage), "683313688378")
}

func TestRunTrainingFailure(t *testing.T) {
	platform := readyPlatform()
	platform.jobStatuses = []smtypes.TrainingJobStatus{smtypes.TrainingJobStatusFailed}

	p := New(testConfig(), &fakeS3{}, platform, &fakeRuntime{scores: []string{"0.5"}})
	_, err := p.Run(context.Background(), RunOptions{DataPath: sampleCSV})
	require.Error(t, err)

	// Nothing was deployed, so nothing needs tearing down.
	assert.Empty(t, platform.modelInputs)
	assert.Empty(t, platform.deletedEndpoints)
}

func TestRunMissingData(t *testing.T) {
	p := New(testConfig(), &fakeS3{}, readyPlatform(), &fakeRuntime{scores: []string{"0.5"}})
	_, err := p.Run(context.Background(), RunOptions{DataPath: "does-not-exist.csv"})
	require.Error(t, err)
}

func TestPhasesIndividually(t *testing.T) {
	s3Client := &fakeS3{}
	platform := readyPlatform()
	p := New(testConfig(), s3Client, platform, &fakeRuntime{scores: []string{"0.9", "0.2"}})

	splits, err := p.Prepare(sampleCSV)
	require.NoError(t, err)
	assert.Equal(t, 11, splits.Train.NumRows())
	assert.Equal(t, 3, splits.Validation.NumRows())
	assert.Equal(t, 2, splits.Test.NumRows())

	uris, err := p.Upload(context.Background(), splits)
	require.NoError(t, err)
	assert.Equal(t, "s3://churn-data/churn/xgboost/train/train.csv", uris.Train)

	result, err := p.Train(context.Background(), uris)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ModelDataURL)

	ep, err := p.Deploy(context.Background(), result)
	require.NoError(t, err)

	eval, err := p.Evaluate(context.Background(), ep.Name, splits.Test, "")
	require.NoError(t, err)
	assert.Len(t, eval.Scores, 2)

	require.NoError(t, p.Teardown(context.Background(), ep))
	assert.Equal(t, []string{ep.Name}, platform.deletedEndpoints)
}
