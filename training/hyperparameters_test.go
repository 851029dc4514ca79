package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHyperparameters(t *testing.T) {
	h := DefaultHyperparameters()
	require.NoError(t, h.Validate())

	assert.Equal(t, 5, h.MaxDepth)
	assert.Equal(t, 0.2, h.Eta)
	assert.Equal(t, 100, h.NumRound)
	assert.Equal(t, "binary:logistic", h.Objective)
}

func TestHyperparametersValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Hyperparameters)
	}{
		{"non-positive max_depth", func(h *Hyperparameters) { h.MaxDepth = 0 }},
		{"eta above one", func(h *Hyperparameters) { h.Eta = 1.5 }},
		{"eta zero", func(h *Hyperparameters) { h.Eta = 0 }},
		{"non-positive num_round", func(h *Hyperparameters) { h.NumRound = 0 }},
		{"subsample above one", func(h *Hyperparameters) { h.Subsample = 1.2 }},
		{"negative gamma", func(h *Hyperparameters) { h.Gamma = -1 }},
		{"negative min_child_weight", func(h *Hyperparameters) { h.MinChildWeight = -1 }},
		{"negative scale_pos_weight", func(h *Hyperparameters) { h.ScalePosWeight = -2 }},
		{"empty objective", func(h *Hyperparameters) { h.Objective = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := DefaultHyperparameters()
			tt.mutate(&h)
			assert.Error(t, h.Validate())
		})
	}
}

func TestHyperparametersToMap(t *testing.T) {
	h := DefaultHyperparameters()
	m := h.ToMap()

	assert.Equal(t, "5", m["max_depth"])
	assert.Equal(t, "0.2", m["eta"])
	assert.Equal(t, "4", m["gamma"])
	assert.Equal(t, "6", m["min_child_weight"])
	assert.Equal(t, "0.8", m["subsample"])
	assert.Equal(t, "100", m["num_round"])
	assert.Equal(t, "binary:logistic", m["objective"])
	assert.Equal(t, "auc", m["eval_metric"])

	// Optional zero-valued parameters are omitted.
	_, hasSeed := m["seed"]
	assert.False(t, hasSeed)
	_, hasSPW := m["scale_pos_weight"]
	assert.False(t, hasSPW)
}

func TestHyperparametersToMapOptional(t *testing.T) {
	h := DefaultHyperparameters()
	h.Seed = 42
	h.ScalePosWeight = 6.5
	m := h.ToMap()

	assert.Equal(t, "42", m["seed"])
	assert.Equal(t, "6.5", m["scale_pos_weight"])
}
