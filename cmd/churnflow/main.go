// Command churnflow runs the customer-churn training and hosting workflow
// against the managed ML platform. Each pipeline phase is a subcommand so a
// run can be driven end to end with `churnflow run` or stepped through
// manually.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"

	"github.com/YuminosukeSato/churnflow/config"
	"github.com/YuminosukeSato/churnflow/dataset"
	"github.com/YuminosukeSato/churnflow/hosting"
	"github.com/YuminosukeSato/churnflow/inference"
	"github.com/YuminosukeSato/churnflow/pkg/errors"
	"github.com/YuminosukeSato/churnflow/pkg/log"
	"github.com/YuminosukeSato/churnflow/report"
	"github.com/YuminosukeSato/churnflow/training"
	"github.com/YuminosukeSato/churnflow/workflow"
)

const usage = `usage: churnflow <command> [flags] [args]

Local commands:
  inspect  <data.csv>     print column statistics and class balance
  prepare  <data.csv>     encode and split the dataset into local CSV files

Platform commands (require -config):
  upload   <data.csv>     prepare the dataset and upload the splits to S3
  train                   submit a training job and wait for it to finish
  deploy                  host a trained model artifact behind an endpoint
  predict  <data.csv>     score rows against a live endpoint
  evaluate <data.csv>     score the held-out split and report metrics
  teardown                delete an endpoint, its config and its model
  run      <data.csv>     execute every phase in order

Run 'churnflow <command> -h' for the command's flags.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "churnflow: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "inspect":
		return cmdInspect(rest)
	case "prepare":
		return cmdPrepare(rest)
	case "upload":
		return cmdUpload(rest)
	case "train":
		return cmdTrain(rest)
	case "deploy":
		return cmdDeploy(rest)
	case "predict":
		return cmdPredict(rest)
	case "evaluate":
		return cmdEvaluate(rest)
	case "teardown":
		return cmdTeardown(rest)
	case "run":
		return cmdRun(rest)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Newf("unknown command %q", cmd)
	}
}

// loadConfig reads the configuration file and sets up logging. Local
// commands pass required=false and fall back to the defaults when no file is
// given.
func loadConfig(path string, required bool) (*config.Config, error) {
	if path == "" {
		if required {
			return nil, errors.New("a configuration file is required (-config)")
		}
		cfg := config.Default()
		log.SetupLogger(cfg.LogLevel)
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.SetupLogger(cfg.LogLevel)
	return cfg, nil
}

// newPipeline builds the real platform clients from the ambient AWS
// credential chain. This is the only place SDK clients are constructed.
func newPipeline(ctx context.Context, cfg *config.Config) (*workflow.Pipeline, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "load AWS configuration")
	}
	return workflow.New(cfg,
		s3.NewFromConfig(awsCfg),
		sagemaker.NewFromConfig(awsCfg),
		sagemakerruntime.NewFromConfig(awsCfg),
	), nil
}

func dataArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", errors.Newf("expected exactly one data file argument, got %d", fs.NArg())
	}
	return fs.Arg(0), nil
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, false)
	if err != nil {
		return err
	}
	dataPath, err := dataArg(fs)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(dataPath)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d rows, %d columns\n\n", filepath.Base(dataPath), ds.NumRows(), ds.NumColumns())

	summaries, err := ds.Summary()
	if err != nil {
		return err
	}
	fmt.Printf("%-24s %12s %12s %12s %12s\n", "column", "mean", "stddev", "min", "max")
	for _, s := range summaries {
		fmt.Printf("%-24s %12.4f %12.4f %12.4f %12.4f\n", s.Name, s.Mean, s.StdDev, s.Min, s.Max)
	}

	balance, err := ds.ClassBalance(cfg.Data.LabelColumn)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s:\n", cfg.Data.LabelColumn)
	for label, count := range balance {
		fmt.Printf("  %-12s %d\n", label, count)
	}
	return nil
}

func cmdPrepare(args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	outDir := fs.String("out", "prepared", "directory for the split CSV files")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, false)
	if err != nil {
		return err
	}
	dataPath, err := dataArg(fs)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(dataPath)
	if err != nil {
		return err
	}
	table, err := dataset.Prepare(ds, dataset.Options{
		LabelColumn:   cfg.Data.LabelColumn,
		PositiveLabel: cfg.Data.PositiveLabel,
		DropColumns:   cfg.Data.DropColumns,
	})
	if err != nil {
		return err
	}
	train, val, test, err := table.Split(cfg.Data.TrainFraction, cfg.Data.ValFraction, cfg.Data.Seed)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", *outDir)
	}
	for _, split := range []struct {
		name  string
		table *dataset.Table
	}{
		{"train", train},
		{"validation", val},
		{"test", test},
	} {
		path := filepath.Join(*outDir, split.name+".csv")
		if err := split.table.WriteFile(path, true); err != nil {
			return err
		}
		fmt.Printf("%s: %d rows -> %s\n", split.name, split.table.NumRows(), path)
	}
	return nil
}

func cmdUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	dataPath, err := dataArg(fs)
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	splits, err := p.Prepare(dataPath)
	if err != nil {
		return err
	}
	uris, err := p.Upload(ctx, splits)
	if err != nil {
		return err
	}

	fmt.Printf("train:      %s\n", uris.Train)
	fmt.Printf("validation: %s\n", uris.Validation)
	return nil
}

func cmdTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	trainURI := fs.String("train-uri", "", "S3 URI of the train split")
	valURI := fs.String("validation-uri", "", "S3 URI of the validation split")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	if *trainURI == "" || *valURI == "" {
		return errors.New("-train-uri and -validation-uri are required")
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	result, err := p.Train(ctx, &workflow.SplitURIs{Train: *trainURI, Validation: *valURI})
	if err != nil {
		return err
	}

	fmt.Printf("job:        %s\n", result.JobName)
	fmt.Printf("status:     %s\n", result.Status)
	fmt.Printf("model data: %s\n", result.ModelDataURL)
	return nil
}

func cmdDeploy(args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	modelData := fs.String("model-data", "", "S3 URI of the trained model artifact")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	if *modelData == "" {
		return errors.New("-model-data is required")
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	ep, err := p.Deploy(ctx, &training.Result{ModelDataURL: *modelData})
	if err != nil {
		return err
	}

	fmt.Printf("endpoint: %s\n", ep.Name)
	return nil
}

func cmdPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	endpoint := fs.String("endpoint", "", "name of the live endpoint")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	if *endpoint == "" {
		return errors.New("-endpoint is required")
	}
	dataPath, err := dataArg(fs)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(dataPath)
	if err != nil {
		return err
	}
	table, err := dataset.Prepare(ds, dataset.Options{
		LabelColumn:   cfg.Data.LabelColumn,
		PositiveLabel: cfg.Data.PositiveLabel,
		DropColumns:   cfg.Data.DropColumns,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return errors.Wrap(err, "load AWS configuration")
	}
	predictor := inference.NewPredictor(
		sagemakerruntime.NewFromConfig(awsCfg), *endpoint, cfg.Inference.Delay.Std())

	scores, err := predictor.PredictBatch(ctx, table.Features())
	if err != nil {
		return err
	}
	labels := inference.Classify(scores, cfg.Inference.Threshold)
	for i, score := range scores {
		verdict := "stay"
		if labels[i] == 1 {
			verdict = "churn"
		}
		fmt.Printf("row %4d: %.4f %s\n", i, score, verdict)
	}
	return nil
}

func cmdEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	endpoint := fs.String("endpoint", "", "name of the live endpoint")
	outDir := fs.String("out", "", "directory for the rendered report artifacts")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	if *endpoint == "" {
		return errors.New("-endpoint is required")
	}
	dataPath, err := dataArg(fs)
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	splits, err := p.Prepare(dataPath)
	if err != nil {
		return err
	}
	eval, err := p.Evaluate(ctx, *endpoint, splits.Test, *outDir)
	if err != nil {
		return err
	}

	printEvaluation(eval)
	return nil
}

func cmdTeardown(args []string) error {
	fs := flag.NewFlagSet("teardown", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	endpoint := fs.String("endpoint", "", "name of the endpoint to delete")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	if *endpoint == "" {
		return errors.New("-endpoint is required")
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	// Model and config names follow the deployment convention.
	return p.Teardown(ctx, &hosting.Endpoint{
		Name:       *endpoint,
		ConfigName: *endpoint + "-config",
		ModelName:  *endpoint + "-model",
	})
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	outDir := fs.String("out", "", "directory for the rendered report artifacts")
	keep := fs.Bool("keep-endpoint", false, "skip teardown and leave the endpoint running")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	dataPath, err := dataArg(fs)
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	rep, err := p.Run(ctx, workflow.RunOptions{
		DataPath:     dataPath,
		OutputDir:    *outDir,
		KeepEndpoint: *keep,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run:        %s\n", rep.RunID)
	fmt.Printf("job:        %s (%.0fs)\n", rep.Training.JobName, rep.Training.Elapsed.Seconds())
	fmt.Printf("model data: %s\n", rep.Training.ModelDataURL)
	fmt.Printf("endpoint:   %s", rep.Endpoint.Name)
	if *keep {
		fmt.Print(" (left running)")
	}
	fmt.Println()
	printEvaluation(rep.Evaluation)
	return nil
}

func printEvaluation(eval *workflow.Evaluation) {
	fmt.Printf("\naccuracy: %.4f\n", eval.Accuracy)
	fmt.Printf("auc:      %.4f\n", eval.AUC)
	fmt.Println()
	fmt.Println(report.RenderConfusion(eval.Confusion))
	if eval.HistogramPath != "" {
		fmt.Printf("score histogram: %s\n", eval.HistogramPath)
	}
	if eval.ROCPath != "" {
		fmt.Printf("roc curve:       %s\n", eval.ROCPath)
	}
}
