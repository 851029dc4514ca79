// Package inference sends synchronous prediction requests to a hosted
// endpoint. Requests carry one CSV-encoded feature row; the endpoint answers
// with a text body of comma-separated churn probabilities. Batch prediction
// paces requests with a fixed delay so a demo run does not hammer the
// endpoint.
package inference

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/smithy-go"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
	"github.com/YuminosukeSato/churnflow/pkg/log"
)

// RuntimeAPI is the subset of the runtime client used for inference.
type RuntimeAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Predictor invokes a hosted endpoint with CSV payloads.
type Predictor struct {
	client   RuntimeAPI
	endpoint string
	delay    time.Duration
	logger   *slog.Logger
}

// NewPredictor creates a Predictor for the named endpoint. delay is the
// fixed pause inserted between successive requests in PredictBatch.
func NewPredictor(client RuntimeAPI, endpoint string, delay time.Duration) *Predictor {
	return &Predictor{
		client:   client,
		endpoint: endpoint,
		delay:    delay,
		logger:   slog.Default().With(log.ComponentKey, "inference", log.EndpointKey, endpoint),
	}
}

// Predict sends one feature row and returns the churn probability.
func (p *Predictor) Predict(ctx context.Context, row []float64) (float64, error) {
	if len(row) == 0 {
		return 0, errors.NewValueError("inference.Predict", "empty feature row")
	}

	out, err := p.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(p.endpoint),
		ContentType:  aws.String("text/csv"),
		Body:         FormatRow(row),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return 0, errors.Wrapf(err, "inference.Predict: invoke endpoint %s: %s", p.endpoint, apiErr.ErrorCode())
		}
		return 0, errors.Wrapf(err, "inference.Predict: invoke endpoint %s", p.endpoint)
	}

	scores, err := ParseScores(out.Body)
	if err != nil {
		return 0, err
	}
	if len(scores) != 1 {
		return 0, errors.NewDimensionError("inference.Predict", 1, len(scores), 0)
	}
	return scores[0], nil
}

// PredictBatch sends the rows one at a time with the configured delay
// between successive requests and returns the scores in row order.
func (p *Predictor) PredictBatch(ctx context.Context, rows [][]float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, errors.NewValueError("inference.PredictBatch", "no feature rows")
	}

	start := time.Now()
	scores := make([]float64, len(rows))
	for i, row := range rows {
		if i > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "inference.PredictBatch")
			case <-time.After(p.delay):
			}
		}
		score, err := p.Predict(ctx, row)
		if err != nil {
			return nil, errors.Wrapf(err, "inference.PredictBatch: row %d", i)
		}
		scores[i] = score
	}

	p.logger.Info("batch prediction finished",
		log.PredsKey, len(scores),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return scores, nil
}

// FormatRow CSV-encodes one feature row as a request body.
func FormatRow(row []float64) []byte {
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return []byte(strings.Join(fields, ","))
}

// ParseScores parses the endpoint's text response: one or more
// comma-separated float scores, optionally newline-terminated.
func ParseScores(body []byte) ([]float64, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, errors.NewValueError("inference.ParseScores", "empty response body")
	}

	fields := strings.Split(text, ",")
	scores := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "inference.ParseScores: field %d (%q)", i, f)
		}
		scores[i] = v
	}
	return scores, nil
}

// Classify thresholds scores into 0/1 churn decisions.
func Classify(scores []float64, threshold float64) []float64 {
	labels := make([]float64, len(scores))
	for i, s := range scores {
		if s >= threshold {
			labels[i] = 1
		}
	}
	return labels
}
