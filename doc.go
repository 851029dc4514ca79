// Package churnflow trains and hosts a customer-churn XGBoost model on the
// AWS SageMaker platform.
//
// The module walks a tabular churn dataset through the full managed-ML
// lifecycle: local inspection and one-hot encoding, a seeded
// train/validation/test split, upload of the headerless CSV splits to S3,
// a managed training job (built-in algorithm image or a custom entry-point
// script in framework mode), deployment of the trained artifact behind a
// real-time endpoint, paced row-by-row scoring of the held-out split and
// teardown of everything the run created.
//
// # Packages
//
//   - dataset: CSV loading, encoding, splitting and summary statistics
//   - storage: split and source-bundle upload to S3
//   - training: job specification, submission and status polling
//   - hosting: endpoint deployment and teardown
//   - inference: paced CSV requests against the live endpoint
//   - metrics: held-out classification metrics (accuracy, AUC, confusion)
//   - report: score histogram and ROC curve rendering
//   - workflow: the pipeline tying the phases together
//   - config: YAML configuration with environment overrides
//
// # Usage
//
// The churnflow command drives the pipeline:
//
//	churnflow run -config churnflow.yaml -out report/ churn.csv
//
// or phase by phase:
//
//	churnflow inspect churn.csv
//	churnflow upload -config churnflow.yaml churn.csv
//	churnflow train -config churnflow.yaml -train-uri ... -validation-uri ...
//	churnflow deploy -config churnflow.yaml -model-data s3://...
//	churnflow evaluate -config churnflow.yaml -endpoint churn-xgboost-... churn.csv
//	churnflow teardown -config churnflow.yaml -endpoint churn-xgboost-...
//
// All tree construction happens inside the platform; this module only
// orchestrates it.
package churnflow
