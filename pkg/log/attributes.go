// Package log defines the logging setup and standard attribute keys for the
// churn workflow.
//
// The keys follow a hierarchical naming convention (e.g. "train.job_name",
// "s3.bucket") so that logs from every stage of the pipeline can be filtered
// and correlated. A single run is tied together by the "run.id" attribute.

package log

// Workflow and stage context.
const (
	// RunIDKey correlates all log records produced by one pipeline run.
	RunIDKey = "run.id"

	// PhaseKey indicates the pipeline phase.
	// Standard values: "prepare", "upload", "train", "deploy", "predict",
	// "evaluate", "teardown".
	PhaseKey = "ml.phase"

	// OperationKey specifies the platform operation being performed.
	// Examples: "CreateTrainingJob", "CreateEndpoint", "InvokeEndpoint"
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "dataset", "storage", "training", "hosting", "inference"
	ComponentKey = "ml.component"
)

// Data shape and characteristics.
const (
	// SamplesKey is the number of rows in the dataset being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns after encoding.
	FeaturesKey = "data.features"

	// SplitKey names the dataset split: "train", "validation" or "test".
	SplitKey = "data.split"

	// DataSizeKey is the byte size of an uploaded or transferred payload.
	DataSizeKey = "data.size_bytes"
)

// Object storage context.
const (
	// BucketKey is the object storage bucket name.
	BucketKey = "s3.bucket"

	// ObjectKeyKey is the object key within the bucket.
	ObjectKeyKey = "s3.key"

	// S3URIKey is the fully qualified s3:// URI of an object or prefix.
	S3URIKey = "s3.uri"
)

// Training job context.
const (
	// JobNameKey is the managed training job name.
	JobNameKey = "train.job_name"

	// JobStatusKey is the platform-reported training job status.
	JobStatusKey = "train.status"

	// TrainingModeKey distinguishes "builtin" from "framework" submissions.
	TrainingModeKey = "train.mode"

	// TrainingImageKey is the container image used for training.
	TrainingImageKey = "train.image"

	// ModelDataKey is the S3 URI of the produced model artifact.
	ModelDataKey = "train.model_data"

	// HyperParamsKey carries the flat hyperparameter mapping.
	HyperParamsKey = "train.hyperparams"
)

// Hosting and inference context.
const (
	// EndpointKey is the hosted inference endpoint name.
	EndpointKey = "endpoint.name"

	// EndpointStatusKey is the platform-reported endpoint status.
	EndpointStatusKey = "endpoint.status"

	// PredsKey is the number of predictions made in a batch.
	PredsKey = "preds.count"

	// ThresholdKey is the decision threshold applied to churn scores.
	ThresholdKey = "preds.threshold"
)

// Performance and polling.
const (
	// DurationMsKey records execution time in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records execution time in seconds for long
	// operations such as training and endpoint creation.
	DurationSecondsKey = "perf.duration_seconds"

	// AttemptKey records the current poll attempt while waiting on a
	// long-running platform operation.
	AttemptKey = "poll.attempt"

	// AccuracyKey records evaluation accuracy on the held-out split.
	AccuracyKey = "metrics.accuracy"

	// AUCKey records the area under the ROC curve on the held-out split.
	AUCKey = "metrics.auc"
)

// Standard phase values.
const (
	PhasePrepare  = "prepare"
	PhaseUpload   = "upload"
	PhaseTrain    = "train"
	PhaseDeploy   = "deploy"
	PhasePredict  = "predict"
	PhaseEvaluate = "evaluate"
	PhaseTeardown = "teardown"
)
