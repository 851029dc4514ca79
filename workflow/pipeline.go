// Package workflow orchestrates the full churn-prediction run: prepare the
// dataset, upload the splits, train, deploy, score the held-out split and
// tear the endpoint down. Each phase is also callable on its own so the CLI
// can expose them as subcommands.
package workflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnflow/config"
	"github.com/YuminosukeSato/churnflow/dataset"
	"github.com/YuminosukeSato/churnflow/hosting"
	"github.com/YuminosukeSato/churnflow/inference"
	"github.com/YuminosukeSato/churnflow/metrics"
	"github.com/YuminosukeSato/churnflow/pkg/errors"
	"github.com/YuminosukeSato/churnflow/pkg/log"
	"github.com/YuminosukeSato/churnflow/report"
	"github.com/YuminosukeSato/churnflow/storage"
	"github.com/YuminosukeSato/churnflow/training"
)

// Pipeline wires the phase components together under one configuration and
// a shared run identifier.
type Pipeline struct {
	cfg     *config.Config
	store   *storage.Store
	trainer *training.Trainer
	host    *hosting.Host
	runtime inference.RuntimeAPI

	runID  string
	logger *slog.Logger
}

// PlatformAPI is the union of the platform operations the pipeline needs.
// The real SDK client satisfies it.
type PlatformAPI interface {
	training.SageMakerAPI
	hosting.SageMakerAPI
}

// New creates a Pipeline from the configuration and the platform clients.
func New(cfg *config.Config, s3 storage.S3API, sm PlatformAPI, rt inference.RuntimeAPI) *Pipeline {
	runID := uuid.NewString()
	return &Pipeline{
		cfg:     cfg,
		store:   storage.New(s3, cfg.Bucket, cfg.Prefix, cfg.Region),
		trainer: training.NewTrainer(sm),
		host:    hosting.NewHost(sm),
		runtime: rt,
		runID:   runID,
		logger:  slog.Default().With(log.ComponentKey, "workflow", log.RunIDKey, runID),
	}
}

// RunID returns the identifier correlating this run's resources and logs.
func (p *Pipeline) RunID() string { return p.runID }

// Splits holds the three prepared dataset splits.
type Splits struct {
	Train      *dataset.Table
	Validation *dataset.Table
	Test       *dataset.Table
}

// SplitURIs holds the S3 locations of the uploaded train and validation
// splits. The test split never leaves the local machine.
type SplitURIs struct {
	Train      string
	Validation string
}

// Prepare loads the raw CSV, encodes it into a numeric table and splits it.
func (p *Pipeline) Prepare(dataPath string) (*Splits, error) {
	ds, err := dataset.Load(dataPath)
	if err != nil {
		return nil, err
	}

	table, err := dataset.Prepare(ds, dataset.Options{
		LabelColumn:   p.cfg.Data.LabelColumn,
		PositiveLabel: p.cfg.Data.PositiveLabel,
		DropColumns:   p.cfg.Data.DropColumns,
	})
	if err != nil {
		return nil, err
	}

	train, val, test, err := table.Split(p.cfg.Data.TrainFraction, p.cfg.Data.ValFraction, p.cfg.Data.Seed)
	if err != nil {
		return nil, err
	}

	p.logger.Info("dataset prepared",
		log.PhaseKey, log.PhasePrepare,
		log.SamplesKey, table.NumRows(),
		log.FeaturesKey, table.NumFeatures(),
		slog.Int("split.train", train.NumRows()),
		slog.Int("split.validation", val.NumRows()),
		slog.Int("split.test", test.NumRows()),
	)
	return &Splits{Train: train, Validation: val, Test: test}, nil
}

// Upload ensures the bucket exists and uploads the train and validation
// splits as headerless CSV objects, label first, the layout the algorithm
// container expects.
func (p *Pipeline) Upload(ctx context.Context, splits *Splits) (*SplitURIs, error) {
	if err := p.store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	trainURI, err := p.uploadSplit(ctx, "train", splits.Train)
	if err != nil {
		return nil, err
	}
	valURI, err := p.uploadSplit(ctx, "validation", splits.Validation)
	if err != nil {
		return nil, err
	}

	p.logger.Info("splits uploaded",
		log.PhaseKey, log.PhaseUpload,
		log.S3URIKey, trainURI,
	)
	return &SplitURIs{Train: trainURI, Validation: valURI}, nil
}

func (p *Pipeline) uploadSplit(ctx context.Context, name string, t *dataset.Table) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := t.WriteCSV(w, true); err != nil {
		return "", errors.Wrapf(err, "workflow: encode %s split", name)
	}

	uri, err := p.store.Upload(ctx, name+"/"+name+".csv", &buf)
	if err != nil {
		return "", err
	}
	p.logger.Info("split uploaded",
		log.PhaseKey, log.PhaseUpload,
		log.SplitKey, name,
		log.SamplesKey, t.NumRows(),
		log.S3URIKey, uri,
	)
	return uri, nil
}

// Train submits the training job in the configured mode and waits for it to
// complete. In framework mode the entry-point script is bundled and uploaded
// before submission.
func (p *Pipeline) Train(ctx context.Context, uris *SplitURIs) (*training.Result, error) {
	mode, err := training.ParseMode(p.cfg.Training.Mode)
	if err != nil {
		return nil, err
	}

	spec := training.JobSpec{
		Name:            training.TimestampedName("churn-xgboost"),
		Mode:            mode,
		RoleARN:         p.cfg.RoleARN,
		TrainURI:        uris.Train,
		ValidationURI:   uris.Validation,
		OutputURI:       p.store.URI("output"),
		InstanceType:    p.cfg.Training.InstanceType,
		InstanceCount:   p.cfg.Training.InstanceCount,
		VolumeSizeGB:    p.cfg.Training.VolumeSizeGB,
		MaxRuntime:      p.cfg.Training.MaxRuntime.Std(),
		Hyperparameters: p.cfg.Training.Hyperparameters,
	}

	switch mode {
	case training.ModeBuiltin:
		spec.Image, err = training.AlgorithmImage(p.cfg.Region)
	case training.ModeFramework:
		spec.Image, err = training.FrameworkImage(p.cfg.Region, p.cfg.Training.FrameworkVersion)
	}
	if err != nil {
		return nil, err
	}

	if mode == training.ModeFramework {
		bundle, err := training.BuildSourceBundle(p.cfg.Training.EntryPoint)
		if err != nil {
			return nil, err
		}
		sourceURI, err := p.store.Upload(ctx, "source/sourcedir.tar.gz", bytes.NewReader(bundle))
		if err != nil {
			return nil, err
		}
		spec.EntryPoint = filepath.Base(p.cfg.Training.EntryPoint)
		spec.SourceURI = sourceURI
	}

	p.logger.Info("training started",
		log.PhaseKey, log.PhaseTrain,
		log.JobNameKey, spec.Name,
		log.TrainingModeKey, string(mode),
	)

	if err := p.trainer.Submit(ctx, spec); err != nil {
		return nil, err
	}
	return p.trainer.Wait(ctx, spec.Name,
		p.cfg.Training.PollInterval.Std(), p.cfg.Training.WaitTimeout.Std())
}

// Deploy hosts the trained model artifact behind a real-time endpoint and
// blocks until it is in service.
func (p *Pipeline) Deploy(ctx context.Context, result *training.Result) (*hosting.Endpoint, error) {
	mode, err := training.ParseMode(p.cfg.Training.Mode)
	if err != nil {
		return nil, err
	}

	var image string
	switch mode {
	case training.ModeBuiltin:
		image, err = training.AlgorithmImage(p.cfg.Region)
	case training.ModeFramework:
		image, err = training.FrameworkImage(p.cfg.Region, p.cfg.Training.FrameworkVersion)
	}
	if err != nil {
		return nil, err
	}

	ep, err := p.host.Deploy(ctx, hosting.DeploySpec{
		EndpointName:  training.TimestampedName("churn-xgboost"),
		Image:         image,
		ModelDataURL:  result.ModelDataURL,
		RoleARN:       p.cfg.RoleARN,
		InstanceType:  p.cfg.Hosting.InstanceType,
		InstanceCount: p.cfg.Hosting.InstanceCount,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("endpoint deploying",
		log.PhaseKey, log.PhaseDeploy,
		log.EndpointKey, ep.Name,
	)

	if err := p.host.WaitInService(ctx, ep.Name,
		p.cfg.Hosting.PollInterval.Std(), p.cfg.Hosting.WaitTimeout.Std()); err != nil {
		return ep, err
	}
	return ep, nil
}

// Evaluation carries the held-out metrics and report artifact paths of one
// run.
type Evaluation struct {
	Scores    []float64
	Accuracy  float64
	AUC       float64
	Confusion metrics.ConfusionCounts

	// Rendered artifacts; empty when no output directory was given.
	HistogramPath string
	ROCPath       string
}

// Evaluate scores the test split against the live endpoint one row at a time
// and computes held-out metrics. When outDir is non-empty the score
// histogram and ROC curve are rendered there as PNGs.
func (p *Pipeline) Evaluate(ctx context.Context, endpointName string, test *dataset.Table, outDir string) (*Evaluation, error) {
	predictor := inference.NewPredictor(p.runtime, endpointName, p.cfg.Inference.Delay.Std())

	scores, err := predictor.PredictBatch(ctx, test.Features())
	if err != nil {
		return nil, err
	}

	yTrue := mat.NewVecDense(len(scores), test.Labels())
	yPred := mat.NewVecDense(len(scores), scores)
	threshold := p.cfg.Inference.Threshold

	eval := &Evaluation{Scores: scores}
	if eval.Accuracy, err = metrics.Accuracy(yTrue, yPred, threshold); err != nil {
		return nil, err
	}
	if eval.Confusion, err = metrics.ConfusionMatrix(yTrue, yPred, threshold); err != nil {
		return nil, err
	}
	// AUC needs both classes in the split; a tiny demo sample may miss one.
	eval.AUC, err = metrics.AUC(yTrue, yPred)
	if err != nil {
		p.logger.Warn("AUC unavailable for this split", log.ErrAttr(err))
		eval.AUC = 0
	}

	if outDir != "" {
		eval.HistogramPath = filepath.Join(outDir, "score_histogram.png")
		if err := report.ScoreHistogram(scores, eval.HistogramPath); err != nil {
			return nil, err
		}
		eval.ROCPath = filepath.Join(outDir, "roc_curve.png")
		if err := report.ROCCurve(yTrue, yPred, eval.ROCPath); err != nil {
			p.logger.Warn("ROC curve unavailable for this split", log.ErrAttr(err))
			eval.ROCPath = ""
		}
	}

	p.logger.Info("evaluation finished",
		log.PhaseKey, log.PhaseEvaluate,
		log.EndpointKey, endpointName,
		log.PredsKey, len(scores),
		log.ThresholdKey, threshold,
		log.AccuracyKey, eval.Accuracy,
		log.AUCKey, eval.AUC,
	)
	return eval, nil
}

// Teardown removes the endpoint, its configuration and the model.
func (p *Pipeline) Teardown(ctx context.Context, ep *hosting.Endpoint) error {
	return p.host.Teardown(ctx, ep)
}

// RunOptions controls a full pipeline run.
type RunOptions struct {
	// DataPath is the raw churn CSV.
	DataPath string
	// OutputDir receives the rendered report artifacts; empty disables them.
	OutputDir string
	// KeepEndpoint skips teardown so the endpoint can be probed afterwards.
	KeepEndpoint bool
}

// RunReport summarizes a full pipeline run.
type RunReport struct {
	RunID      string
	Training   *training.Result
	Endpoint   *hosting.Endpoint
	Evaluation *Evaluation
}

// Run executes every phase in order. The endpoint is torn down even when
// evaluation fails, unless KeepEndpoint is set; a teardown failure is joined
// onto the evaluation error so neither is lost.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	splits, err := p.Prepare(opts.DataPath)
	if err != nil {
		return nil, err
	}

	uris, err := p.Upload(ctx, splits)
	if err != nil {
		return nil, err
	}

	result, err := p.Train(ctx, uris)
	if err != nil {
		return nil, err
	}

	ep, err := p.Deploy(ctx, result)
	if err != nil {
		if ep != nil && !opts.KeepEndpoint {
			err = errors.Combine(err, p.Teardown(ctx, ep))
		}
		return nil, err
	}

	eval, evalErr := p.Evaluate(ctx, ep.Name, splits.Test, opts.OutputDir)
	if !opts.KeepEndpoint {
		evalErr = errors.Combine(evalErr, p.Teardown(ctx, ep))
	}
	if evalErr != nil {
		return nil, evalErr
	}

	return &RunReport{
		RunID:      p.runID,
		Training:   result,
		Endpoint:   ep,
		Evaluation: eval,
	}, nil
}
