// Package report renders evaluation artifacts for a finished run: a churn
// score histogram, the ROC curve and a text confusion matrix.
package report

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/churnflow/metrics"
	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// ScoreHistogram writes a histogram of predicted churn probabilities as a
// PNG file.
func ScoreHistogram(scores []float64, path string) error {
	if len(scores) == 0 {
		return errors.NewValueError("report.ScoreHistogram", "no scores")
	}

	p := plot.New()
	p.Title.Text = "Predicted churn probability"
	p.X.Label.Text = "score"
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(scores), 20)
	if err != nil {
		return errors.Wrap(err, "report.ScoreHistogram")
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "report.ScoreHistogram: save %s", path)
	}
	return nil
}

// ROCCurve writes the receiver operating characteristic curve as a PNG
// file. The curve sweeps the decision threshold over every distinct score.
func ROCCurve(yTrue, yPred *mat.VecDense, path string) error {
	points, err := rocPoints(yTrue, yPred)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "ROC curve"
	p.X.Label.Text = "false positive rate"
	p.Y.Label.Text = "true positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	line, err := plotter.NewLine(points)
	if err != nil {
		return errors.Wrap(err, "report.ROCCurve")
	}
	p.Add(line)

	diag := plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}}
	chance, err := plotter.NewLine(diag)
	if err != nil {
		return errors.Wrap(err, "report.ROCCurve")
	}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(chance)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "report.ROCCurve: save %s", path)
	}
	return nil
}

// rocPoints computes (FPR, TPR) pairs for thresholds at every distinct
// score, from the most permissive to the strictest.
func rocPoints(yTrue, yPred *mat.VecDense) (plotter.XYs, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return nil, errors.NewValueError("report.ROCCurve", "empty vector")
	}
	if yPred == nil || yPred.Len() != yTrue.Len() {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return nil, errors.NewDimensionError("report.ROCCurve", yTrue.Len(), got, 0)
	}

	n := yTrue.Len()
	var nPos, nNeg int
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return nil, errors.NewValueError("report.ROCCurve", "both classes must be present")
	}

	thresholds := make([]float64, n)
	for i := 0; i < n; i++ {
		thresholds[i] = yPred.AtVec(i)
	}
	sort.Float64s(thresholds)

	points := plotter.XYs{{X: 1, Y: 1}}
	for _, th := range thresholds {
		var tp, fp int
		for i := 0; i < n; i++ {
			if yPred.AtVec(i) >= th {
				if yTrue.AtVec(i) == 1 {
					tp++
				} else {
					fp++
				}
			}
		}
		points = append(points, plotter.XY{
			X: float64(fp) / float64(nNeg),
			Y: float64(tp) / float64(nPos),
		})
	}
	points = append(points, plotter.XY{X: 0, Y: 0})
	return points, nil
}

// RenderConfusion formats a confusion matrix as a small text table, the
// closing summary printed after evaluation.
func RenderConfusion(cm metrics.ConfusionCounts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %10s %10s\n", "", "pred: stay", "pred: churn")
	fmt.Fprintf(&b, "%-12s %10d %10d\n", "true: stay", cm.TrueNegative, cm.FalsePositive)
	fmt.Fprintf(&b, "%-12s %10d %10d\n", "true: churn", cm.FalseNegative, cm.TruePositive)
	return b.String()
}
