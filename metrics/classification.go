// Package metrics implements binary-classification evaluation for churn
// predictions returned by the hosted endpoint. Inputs are gonum vectors:
// yTrue holds 0/1 labels, yPred holds probability scores in [0, 1].
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// checkPair validates a label/score vector pair and returns its length.
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.Len() != n {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, n, got, 0)
	}
	for i := 0; i < n; i++ {
		v := yTrue.AtVec(i)
		if v != 0 && v != 1 {
			return 0, errors.NewValueError(op, "labels must be binary (0 or 1)")
		}
	}
	return n, nil
}

// ConfusionCounts holds the four cells of a binary confusion matrix.
type ConfusionCounts struct {
	TruePositive  int
	TrueNegative  int
	FalsePositive int
	FalseNegative int
}

// ConfusionMatrix thresholds the scores and counts agreement with the labels.
func ConfusionMatrix(yTrue, yPred *mat.VecDense, threshold float64) (ConfusionCounts, error) {
	var cm ConfusionCounts
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return cm, err
	}

	for i := 0; i < n; i++ {
		predicted := yPred.AtVec(i) >= threshold
		actual := yTrue.AtVec(i) == 1
		switch {
		case predicted && actual:
			cm.TruePositive++
		case predicted && !actual:
			cm.FalsePositive++
		case !predicted && actual:
			cm.FalseNegative++
		default:
			cm.TrueNegative++
		}
	}
	return cm, nil
}

// Accuracy is the fraction of thresholded predictions matching the labels.
func Accuracy(yTrue, yPred *mat.VecDense, threshold float64) (float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, threshold)
	if err != nil {
		return 0, err
	}
	total := cm.TruePositive + cm.TrueNegative + cm.FalsePositive + cm.FalseNegative
	return float64(cm.TruePositive+cm.TrueNegative) / float64(total), nil
}

// Precision is TP / (TP + FP). With no positive predictions it returns 0.
func Precision(yTrue, yPred *mat.VecDense, threshold float64) (float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, threshold)
	if err != nil {
		return 0, err
	}
	denom := cm.TruePositive + cm.FalsePositive
	if denom == 0 {
		return 0, nil
	}
	return float64(cm.TruePositive) / float64(denom), nil
}

// Recall is TP / (TP + FN). With no positive labels it returns 0.
func Recall(yTrue, yPred *mat.VecDense, threshold float64) (float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, threshold)
	if err != nil {
		return 0, err
	}
	denom := cm.TruePositive + cm.FalseNegative
	if denom == 0 {
		return 0, nil
	}
	return float64(cm.TruePositive) / float64(denom), nil
}

// F1Score is the harmonic mean of precision and recall.
func F1Score(yTrue, yPred *mat.VecDense, threshold float64) (float64, error) {
	p, err := Precision(yTrue, yPred, threshold)
	if err != nil {
		return 0, err
	}
	r, err := Recall(yTrue, yPred, threshold)
	if err != nil {
		return 0, err
	}
	if p+r == 0 {
		return 0, nil
	}
	return 2 * p * r / (p + r), nil
}

// AUC computes the area under the ROC curve using the rank statistic
// formulation. Tied scores receive their average rank. When only one class
// is present the metric is undefined and 0.5 is returned.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var nPos, nNeg int
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	// Assign average ranks to tied scores.
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var sumPosRanks float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			sumPosRanks += ranks[i]
		}
	}

	auc := (sumPosRanks - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
	return auc, nil
}

// LogLoss computes the negative log-likelihood of the labels under the
// predicted probabilities. Scores are clipped to avoid log(0).
func LogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("LogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), eps), 1-eps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}
