package dataset

import (
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// ColumnSummary holds descriptive statistics for one numeric column.
type ColumnSummary struct {
	Name   string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summary computes descriptive statistics for every numeric column. It is
// the inspection step run before the dataset leaves the local machine.
func (d *Dataset) Summary() ([]ColumnSummary, error) {
	if d.NumRows() == 0 {
		return nil, errors.NewValueError("dataset.Summary", "empty dataset")
	}

	var summaries []ColumnSummary
	for j, name := range d.Columns {
		if !d.IsNumeric(j) {
			continue
		}
		values := make([]float64, d.NumRows())
		for i, row := range d.Rows {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "dataset.Summary: column %s row %d", name, i)
			}
			values[i] = v
		}

		s := ColumnSummary{
			Name:   name,
			Mean:   stat.Mean(values, nil),
			StdDev: stat.StdDev(values, nil),
			Min:    values[0],
			Max:    values[0],
		}
		for _, v := range values {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// ClassBalance counts the occurrences of each distinct value of the label
// column. For churn data this surfaces the positive/negative imbalance that
// informs the scale_pos_weight hyperparameter.
func (d *Dataset) ClassBalance(label string) (map[string]int, error) {
	values, err := d.Column(label)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	return counts, nil
}
