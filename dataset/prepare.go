package dataset

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// Options controls dataset preparation.
type Options struct {
	// LabelColumn names the churn label column in the raw dataset.
	LabelColumn string

	// PositiveLabel is the raw label value encoded as 1. Every other value
	// is encoded as 0.
	PositiveLabel string

	// DropColumns lists raw columns excluded from the feature set,
	// e.g. identifiers such as phone numbers.
	DropColumns []string
}

// Table is a prepared, fully numeric dataset. The label occupies the first
// column, which is the layout the built-in algorithm requires for training
// input.
type Table struct {
	Columns []string
	Records [][]float64
}

// Prepare converts a raw Dataset into a numeric Table:
//   - dropped columns are removed
//   - the label column is binarized (PositiveLabel -> 1, otherwise 0) and
//     moved to the first position
//   - numeric columns are parsed in place
//   - categorical columns are one-hot encoded, one indicator column per
//     distinct value, named "<column>_<value>" in sorted value order
func Prepare(d *Dataset, opts Options) (*Table, error) {
	if opts.LabelColumn == "" {
		return nil, errors.NewValidationError("label_column", "must not be empty", opts.LabelColumn)
	}
	labelIdx, ok := d.ColumnIndex(opts.LabelColumn)
	if !ok {
		return nil, errors.NewValueError("dataset.Prepare", "label column not found: "+opts.LabelColumn)
	}
	if d.NumRows() == 0 {
		return nil, errors.NewValueError("dataset.Prepare", "empty dataset")
	}

	dropped := make(map[int]bool, len(opts.DropColumns))
	for _, name := range opts.DropColumns {
		idx, ok := d.ColumnIndex(name)
		if !ok {
			return nil, errors.NewValueError("dataset.Prepare", "drop column not found: "+name)
		}
		dropped[idx] = true
	}
	if dropped[labelIdx] {
		return nil, errors.NewValidationError("drop_columns", "must not include the label column", opts.LabelColumn)
	}

	columns := []string{opts.LabelColumn}
	records := make([][]float64, d.NumRows())
	for i := range records {
		label := 0.0
		if d.Rows[i][labelIdx] == opts.PositiveLabel {
			label = 1.0
		}
		records[i] = append(records[i], label)
	}

	for j, name := range d.Columns {
		if j == labelIdx || dropped[j] {
			continue
		}
		if d.IsNumeric(j) {
			columns = append(columns, name)
			for i, row := range d.Rows {
				v, err := strconv.ParseFloat(row[j], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "dataset.Prepare: column %s row %d", name, i)
				}
				records[i] = append(records[i], v)
			}
			continue
		}

		values := distinctValues(d, j)
		for _, value := range values {
			columns = append(columns, name+"_"+value)
		}
		for i, row := range d.Rows {
			for _, value := range values {
				indicator := 0.0
				if row[j] == value {
					indicator = 1.0
				}
				records[i] = append(records[i], indicator)
			}
		}
	}

	return &Table{Columns: columns, Records: records}, nil
}

func distinctValues(d *Dataset, idx int) []string {
	seen := make(map[string]bool)
	var values []string
	for _, row := range d.Rows {
		if !seen[row[idx]] {
			seen[row[idx]] = true
			values = append(values, row[idx])
		}
	}
	sort.Strings(values)
	return values
}

// NumRows returns the number of records.
func (t *Table) NumRows() int { return len(t.Records) }

// NumFeatures returns the number of feature columns, excluding the label.
func (t *Table) NumFeatures() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns) - 1
}

// Labels returns the label column values.
func (t *Table) Labels() []float64 {
	labels := make([]float64, len(t.Records))
	for i, rec := range t.Records {
		labels[i] = rec[0]
	}
	return labels
}

// Features returns the records without the leading label column. This is the
// row layout sent to the inference endpoint.
func (t *Table) Features() [][]float64 {
	features := make([][]float64, len(t.Records))
	for i, rec := range t.Records {
		features[i] = rec[1:]
	}
	return features
}

// WriteCSV writes the table as headerless CSV. When includeLabel is false
// the leading label column is omitted, producing inference payload rows.
func (t *Table) WriteCSV(w *csv.Writer, includeLabel bool) error {
	for _, rec := range t.Records {
		fields := rec
		if !includeLabel {
			fields = rec[1:]
		}
		row := make([]string, len(fields))
		for j, v := range fields {
			row[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "dataset.WriteCSV")
		}
	}
	w.Flush()
	return errors.WithStack(w.Error())
}

// WriteFile writes the table as headerless CSV to the given path.
func (t *Table) WriteFile(path string, includeLabel bool) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "dataset.WriteFile: create %s", path)
	}
	defer f.Close()
	return t.WriteCSV(csv.NewWriter(f), includeLabel)
}
