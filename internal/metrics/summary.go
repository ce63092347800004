package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a set of float observations,
// typically the objective values of COMPLETE trials.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	P10    float64
	Median float64
	P90    float64
	Max    float64
}

// Summarize computes distribution statistics. StdDev is zero for fewer than
// two observations; an empty input yields the zero Summary.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	s := Summary{
		Count:  n,
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Max:    sorted[n-1],
		P10:    stat.Quantile(0.10, stat.LinInterp, sorted, nil),
		Median: Median(sorted),
		P90:    stat.Quantile(0.90, stat.LinInterp, sorted, nil),
	}
	if n > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

// Median returns the middle value of sorted, averaging the two middle values
// for an even count. sorted must be ascending.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
