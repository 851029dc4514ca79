package dataset

import (
	"math/rand"

	"github.com/YuminosukeSato/churnflow/pkg/errors"
)

// Split shuffles the table with the given seed and partitions it into
// train, validation and test tables. trainFrac and valFrac are fractions of
// the whole; the remainder becomes the test split.
func (t *Table) Split(trainFrac, valFrac float64, seed int64) (train, val, test *Table, err error) {
	if trainFrac <= 0 || valFrac < 0 || trainFrac+valFrac >= 1 {
		return nil, nil, nil, errors.NewValidationError("split", "fractions must satisfy 0 < train, 0 <= validation, train+validation < 1",
			[2]float64{trainFrac, valFrac})
	}
	n := len(t.Records)
	if n == 0 {
		return nil, nil, nil, errors.NewValueError("dataset.Split", "empty table")
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	nTrain := int(float64(n) * trainFrac)
	nVal := int(float64(n) * valFrac)
	if nTrain == 0 || nTrain+nVal >= n {
		return nil, nil, nil, errors.NewValueError("dataset.Split", "table too small for the requested fractions")
	}

	take := func(idx []int) *Table {
		records := make([][]float64, len(idx))
		for i, j := range idx {
			records[i] = t.Records[j]
		}
		return &Table{Columns: t.Columns, Records: records}
	}

	train = take(perm[:nTrain])
	val = take(perm[nTrain : nTrain+nVal])
	test = take(perm[nTrain+nVal:])
	return train, val, test, nil
}
