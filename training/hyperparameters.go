package training

import (
	"strconv"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// Hyperparameters configures the gradient-boosted-tree training job. The
// managed platform accepts hyperparameters as a flat string mapping; ToMap
// performs that serialization.
type Hyperparameters struct {
	// Tree structure
	MaxDepth       int     `json:"max_depth" yaml:"max_depth"`
	MinChildWeight float64 `json:"min_child_weight" yaml:"min_child_weight"`
	Gamma          float64 `json:"gamma" yaml:"gamma"`

	// Boosting
	Eta      float64 `json:"eta" yaml:"eta"`
	NumRound int     `json:"num_round" yaml:"num_round"`

	// Sampling
	Subsample float64 `json:"subsample" yaml:"subsample"`

	// Objective and evaluation
	Objective  string `json:"objective" yaml:"objective"`
	EvalMetric string `json:"eval_metric" yaml:"eval_metric"`

	// Class imbalance
	ScalePosWeight float64 `json:"scale_pos_weight" yaml:"scale_pos_weight"`

	// Reproducibility
	Seed int `json:"seed" yaml:"seed"`
}

// DefaultHyperparameters returns the configuration used for the churn model.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		MaxDepth:       5,
		MinChildWeight: 6,
		Gamma:          4,
		Eta:            0.2,
		NumRound:       100,
		Subsample:      0.8,
		Objective:      "binary:logistic",
		EvalMetric:     "auc",
	}
}

// Validate checks value ranges before submission.
func (h Hyperparameters) Validate() error {
	if h.MaxDepth <= 0 {
		return errors.NewValidationError("max_depth", "must be positive", h.MaxDepth)
	}
	if h.Eta <= 0 || h.Eta > 1 {
		return errors.NewValidationError("eta", "must be in (0, 1]", h.Eta)
	}
	if h.NumRound <= 0 {
		return errors.NewValidationError("num_round", "must be positive", h.NumRound)
	}
	if h.Subsample <= 0 || h.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", h.Subsample)
	}
	if h.Gamma < 0 {
		return errors.NewValidationError("gamma", "must not be negative", h.Gamma)
	}
	if h.MinChildWeight < 0 {
		return errors.NewValidationError("min_child_weight", "must not be negative", h.MinChildWeight)
	}
	if h.ScalePosWeight < 0 {
		return errors.NewValidationError("scale_pos_weight", "must not be negative", h.ScalePosWeight)
	}
	if h.Objective == "" {
		return errors.NewValidationError("objective", "must not be empty", h.Objective)
	}
	return nil
}

// ToMap serializes the hyperparameters into the flat name-to-string mapping
// the CreateTrainingJob API expects. Optional parameters with zero values
// are omitted.
func (h Hyperparameters) ToMap() map[string]string {
	m := map[string]string{
		"max_depth":        strconv.Itoa(h.MaxDepth),
		"min_child_weight": formatFloat(h.MinChildWeight),
		"gamma":            formatFloat(h.Gamma),
		"eta":              formatFloat(h.Eta),
		"num_round":        strconv.Itoa(h.NumRound),
		"subsample":        formatFloat(h.Subsample),
		"objective":        h.Objective,
	}
	if h.EvalMetric != "" {
		m["eval_metric"] = h.EvalMetric
	}
	if h.ScalePosWeight > 0 {
		m["scale_pos_weight"] = formatFloat(h.ScalePosWeight)
	}
	if h.Seed != 0 {
		m["seed"] = strconv.Itoa(h.Seed)
	}
	return m
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
