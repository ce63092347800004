package dataset

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
)

// SyntheticOptions configures a generated bar series.
type SyntheticOptions struct {
	Symbol     string
	Bars       int
	Start      time.Time
	Interval   time.Duration
	StartPrice float64
	Volatility float64 // per-bar standard deviation of close-to-close moves, in price points
	Seed       uint64
}

// Synthetic generates a deterministic random-walk bar series for demos and
// tests. Prices are rounded to 0.1 points and never drop below one point.
func Synthetic(opts SyntheticOptions) *domain.Dataset {
	if opts.Symbol == "" {
		opts.Symbol = "SYNTH"
	}
	if opts.Start.IsZero() {
		opts.Start = time.Date(2023, 1, 3, 9, 0, 0, 0, time.UTC)
	}
	if opts.Interval == 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.StartPrice == 0 {
		opts.StartPrice = 1000
	}
	if opts.Volatility == 0 {
		opts.Volatility = 5
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	bars := make([]domain.Bar, opts.Bars)
	price := opts.StartPrice

	for i := range bars {
		open := price
		closePx := max(1, open+rng.NormFloat64()*opts.Volatility)
		high := max(open, closePx) + rng.Float64()*opts.Volatility
		low := max(1, min(open, closePx)-rng.Float64()*opts.Volatility)

		bars[i] = domain.Bar{
			Timestamp: opts.Start.Add(time.Duration(i) * opts.Interval),
			Open:      roundPrice(open),
			High:      roundPrice(high),
			Low:       roundPrice(low),
			Close:     roundPrice(closePx),
			Volume:    decimal.NewFromInt(int64(1000 + rng.IntN(9000))),
		}
		price = bars[i].Close.InexactFloat64()
	}

	return &domain.Dataset{Symbol: opts.Symbol, Bars: bars}
}

// Flat generates n bars with identical OHLC prices.
func Flat(n int, price string) *domain.Dataset {
	p := decimal.RequireFromString(price)
	start := time.Date(2023, 1, 3, 9, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return &domain.Dataset{Symbol: "FLAT", Bars: bars}
}

func roundPrice(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(1)
}
