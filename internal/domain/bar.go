package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents one OHLCV bar of the traded instrument.
// Corresponds to the bars table in ClickHouse.
type Bar struct {
	Timestamp time.Time       // bar open time (UTC)
	Open      decimal.Decimal // first traded price
	High      decimal.Decimal // highest traded price
	Low       decimal.Decimal // lowest traded price
	Close     decimal.Decimal // last traded price
	Volume    decimal.Decimal // traded volume
}

// Dataset is a chronologically ordered bar series for one symbol.
// A Dataset is read-only once loaded and is shared by every trial.
type Dataset struct {
	Symbol string
	Bars   []Bar
}

// Len returns the number of bars.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Bars)
}

// Slice returns a view over bars [i, j). The view shares the bar array.
func (d *Dataset) Slice(i, j int) *Dataset {
	if i < 0 {
		i = 0
	}
	if j > len(d.Bars) {
		j = len(d.Bars)
	}
	if i >= j {
		return &Dataset{Symbol: d.Symbol}
	}
	return &Dataset{Symbol: d.Symbol, Bars: d.Bars[i:j:j]}
}

// First returns the timestamp of the first bar, or zero time if empty.
func (d *Dataset) First() time.Time {
	if d.Len() == 0 {
		return time.Time{}
	}
	return d.Bars[0].Timestamp
}

// Last returns the timestamp of the last bar, or zero time if empty.
func (d *Dataset) Last() time.Time {
	if d.Len() == 0 {
		return time.Time{}
	}
	return d.Bars[len(d.Bars)-1].Timestamp
}
