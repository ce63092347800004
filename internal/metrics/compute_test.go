package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-tuner/internal/domain"
)

func makeNAV(values ...string) []domain.NAVPoint {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	out := make([]domain.NAVPoint, len(values))
	for i, v := range values {
		out[i] = domain.NAVPoint{
			Index:     i,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			NAV:       decimal.RequireFromString(v),
		}
	}
	return out
}

func TestReturns(t *testing.T) {
	returns, err := Returns(makeNAV("100", "110", "99"))
	require.NoError(t, err)
	require.Len(t, returns, 2)

	assert.True(t, returns[0].Equal(decimal.RequireFromString("0.1")), "got %s", returns[0])
	assert.True(t, returns[1].Equal(decimal.RequireFromString("-0.1")), "got %s", returns[1])
}

func TestReturns_NonPositiveNAV(t *testing.T) {
	_, err := Returns(makeNAV("100", "0", "10"))
	require.ErrorIs(t, err, ErrNonPositiveNAV)
}

func TestReturns_Empty(t *testing.T) {
	_, err := Returns(nil)
	require.ErrorIs(t, err, ErrEmptyTrajectory)
}

func TestSnapshot_FlatNAV(t *testing.T) {
	nav := makeNAV("500000", "500000", "500000", "500000", "500000")

	snap, err := Snapshot(nav, decimal.RequireFromString("0.00023"), DefaultPeriodsPerYear)
	require.NoError(t, err)

	assert.True(t, snap.Sharpe.IsZero(), "sharpe = %s", snap.Sharpe)
	assert.True(t, snap.Sortino.IsZero() || snap.Sortino.IsNegative(), "sortino = %s", snap.Sortino)
	assert.True(t, snap.MaxDrawdown.IsZero(), "mdd = %s", snap.MaxDrawdown)
	assert.Equal(t, 0, snap.MaxDrawdownIndex)
}

func TestSharpe_KnownSeries(t *testing.T) {
	// returns: +1%, -0.5%, +2%, +0.5%
	nav := makeNAV("100", "101", "100.495", "102.5049", "103.0174245")

	got, err := Sharpe(nav, decimal.Zero)
	require.NoError(t, err)

	r := []float64{0.01, -0.005, 0.02, 0.005}
	mean := (r[0] + r[1] + r[2] + r[3]) / 4
	var ss float64
	for _, x := range r {
		ss += (x - mean) * (x - mean)
	}
	want := mean / math.Sqrt(ss/3)

	assert.InDelta(t, want, got.InexactFloat64(), 1e-9)
}

func TestSortino_KnownSeries(t *testing.T) {
	nav := makeNAV("100", "101", "100.495", "102.5049", "103.0174245")

	got, err := Sortino(nav, decimal.Zero)
	require.NoError(t, err)

	// only -0.5% contributes downside: sqrt(0.005^2 / 4) = 0.0025
	mean := (0.01 - 0.005 + 0.02 + 0.005) / 4
	assert.InDelta(t, mean/0.0025, got.InexactFloat64(), 1e-9)
}

func TestSortino_NoDownside(t *testing.T) {
	got, err := Sortino(makeNAV("100", "101", "102"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestMaxDrawdown_Location(t *testing.T) {
	nav := makeNAV("100", "120", "90", "110", "80", "130")

	mdd, idx, err := MaxDrawdown(nav)
	require.NoError(t, err)

	// peak 120, trough 80 -> 1/3
	assert.InDelta(t, 1.0/3.0, mdd.InexactFloat64(), 1e-12)
	assert.Equal(t, 4, idx)
}

func TestMaxDrawdown_Monotonic(t *testing.T) {
	mdd, idx, err := MaxDrawdown(makeNAV("1", "2", "3", "3"))
	require.NoError(t, err)
	assert.True(t, mdd.IsZero())
	assert.Equal(t, 0, idx)
}

func TestAnnualize(t *testing.T) {
	got := Annualize(decimal.NewFromInt(2), 250)
	assert.InDelta(t, 2*math.Sqrt(250), got.InexactFloat64(), 1e-9)
}

func TestSnapshot_Deterministic(t *testing.T) {
	nav := makeNAV("100", "101", "100.495", "102.5049", "103.0174245", "99.1")
	rf := decimal.RequireFromString("0.00023")

	first, err := Snapshot(nav, rf, 250)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Snapshot(nav, rf, 250)
		require.NoError(t, err)
		assert.True(t, first.Sharpe.Equal(again.Sharpe))
		assert.True(t, first.Sortino.Equal(again.Sortino))
		assert.True(t, first.MaxDrawdown.Equal(again.MaxDrawdown))
		assert.Equal(t, first.MaxDrawdownAt, again.MaxDrawdownAt)
	}
}
