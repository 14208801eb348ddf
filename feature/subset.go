package feature

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/opencontainers/go-digest"

	"github.com/hupe1980/arraycache"
)

// ErrRowOutOfRange is returned when a subset selects a row the column does not have.
var ErrRowOutOfRange = errors.New("row out of range")

// Subset gathers the rows selected by rows from v, in ascending row order.
func Subset(v arraycache.View, rows *roaring.Bitmap) ([]float64, error) {
	if rows == nil || rows.IsEmpty() {
		return []float64{}, nil
	}

	if last := rows.Maximum(); uint64(last) >= uint64(v.Len()) {
		return nil, fmt.Errorf("%w: row %d, column has %d rows", ErrRowOutOfRange, last, v.Len())
	}

	out := make([]float64, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		out = append(out, v.At(int(it.Next())))
	}
	return out, nil
}

// SubsetID returns a stable identifier for the set of rows, suitable for
// arraycache.SubsetKey: the row count and the SHA-256 of the run-optimized
// bitmap. Equal row sets yield equal identifiers.
func SubsetID(rows *roaring.Bitmap) (string, error) {
	if rows == nil {
		rows = roaring.New()
	}

	canonical := rows.Clone()
	canonical.RunOptimize()

	b, err := canonical.ToBytes()
	if err != nil {
		return "", err
	}

	return strconv.FormatUint(rows.GetCardinality(), 10) + "-" + digest.FromBytes(b).Encoded(), nil
}
