// Package dataset handles loading, inspection and preparation of the tabular
// churn dataset. The raw data is a headered CSV of customer records with a
// mix of categorical and numeric feature columns plus a binary churn label.
// Preparation produces the fully numeric, label-first, headerless layout the
// managed XGBoost algorithm expects.
package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// Dataset is a raw tabular dataset as read from CSV: a header row naming the
// columns and string-valued records.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// Load reads a headered CSV file into a Dataset. Every record must have the
// same number of fields as the header.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.Load: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.Load: parse %s", path)
	}
	if len(records) < 2 {
		return nil, errors.NewValueError("dataset.Load", "file must contain a header and at least one record")
	}

	header := records[0]
	rows := records[1:]
	for _, row := range rows {
		if len(row) != len(header) {
			return nil, errors.NewDimensionError("dataset.Load", len(header), len(row), 1)
		}
	}

	return &Dataset{Columns: header, Rows: rows}, nil
}

// NumRows returns the number of records.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.Columns) }

// ColumnIndex returns the index of the named column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	for i, c := range d.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Column returns all values of the named column.
func (d *Dataset) Column(name string) ([]string, error) {
	idx, ok := d.ColumnIndex(name)
	if !ok {
		return nil, errors.NewValueError("dataset.Column", "no such column: "+name)
	}
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// IsNumeric reports whether every value in the column at index idx parses as
// a float. Columns that fail this test are treated as categorical.
func (d *Dataset) IsNumeric(idx int) bool {
	for _, row := range d.Rows {
		if _, err := strconv.ParseFloat(row[idx], 64); err != nil {
			return false
		}
	}
	return len(d.Rows) > 0
}
