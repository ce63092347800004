package dataset

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"strategy-tuner/internal/domain"
)

// DefaultInSampleRatio is the share of bars assigned to the search split.
const DefaultInSampleRatio = 0.7

// ErrEmptySplit is returned when either side of a split would have no bars.
var ErrEmptySplit = errors.New("split leaves an empty partition")

// SplitOptions selects the boundary between in-sample and held-out data.
// When At is non-zero, bars strictly before At are in-sample; otherwise the
// first Ratio share of bars is in-sample.
type SplitOptions struct {
	Ratio float64
	At    time.Time
}

// Split partitions ds chronologically into (in-sample, held-out).
// Both partitions share the underlying bar array with ds.
func Split(ds *domain.Dataset, opts SplitOptions) (*domain.Dataset, *domain.Dataset, error) {
	n := ds.Len()

	var cut int
	if !opts.At.IsZero() {
		cut = sort.Search(n, func(i int) bool {
			return !ds.Bars[i].Timestamp.Before(opts.At)
		})
	} else {
		ratio := opts.Ratio
		if ratio == 0 {
			ratio = DefaultInSampleRatio
		}
		if ratio <= 0 || ratio >= 1 {
			return nil, nil, fmt.Errorf("in-sample ratio %.4f outside (0, 1)", ratio)
		}
		cut = int(float64(n) * ratio)
	}

	if cut <= 0 || cut >= n {
		return nil, nil, fmt.Errorf("%w: %d bars, cut at %d", ErrEmptySplit, n, cut)
	}
	return ds.Slice(0, cut), ds.Slice(cut, n), nil
}
