// Package simulation is the strategy simulator: it replays a bar dataset
// through an inventory-skewed market-making strategy and records the NAV
// trajectory and inventory trace.
package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
)

// Engine errors
var (
	ErrEngineUsed         = errors.New("engine already used: construct a new engine per run")
	ErrInsufficientData   = errors.New("dataset needs at least two bars")
	ErrInvalidParameters  = errors.New("invalid strategy parameters")
	ErrInvalidBar         = errors.New("invalid bar")
	ErrNonPositiveCapital = errors.New("capital must be positive")
)

// cancellationCheckEvery is the bar interval between ctx checks.
const cancellationCheckEvery = 256

// Options configures contract economics of the simulated instrument.
type Options struct {
	Multiplier     decimal.Decimal // currency per price point per contract
	FeePerContract decimal.Decimal // fee charged on every fill
	MaxInventory   int64           // absolute position cap in contracts
}

// DefaultOptions returns the reference instrument economics.
func DefaultOptions() Options {
	return Options{
		Multiplier:     decimal.NewFromInt(100),
		FeePerContract: decimal.NewFromInt(20),
		MaxInventory:   3,
	}
}

// Result holds the output of one simulation run.
type Result struct {
	NAV       []domain.NAVPoint
	Inventory []domain.InventoryPoint
	Fills     int
}

// Engine simulates one strategy run. An Engine carries cash and inventory
// state for exactly one Run; build a fresh one for every trial.
type Engine struct {
	capital decimal.Decimal
	opts    Options

	used     bool
	cash     decimal.Decimal
	position int64
	fills    int
}

// NewEngine creates an engine with starting capital.
func NewEngine(capital decimal.Decimal, opts Options) *Engine {
	if opts.Multiplier.IsZero() {
		opts.Multiplier = decimal.NewFromInt(1)
	}
	if opts.MaxInventory <= 0 {
		opts.MaxInventory = 1
	}
	return &Engine{
		capital: capital,
		opts:    opts,
	}
}

// Run replays ds with params. Quotes for bar i are placed around the close of
// bar i-1 at distance Step and shifted by -PriceEncouragement*position.
// A bid fills when the bar trades at or below it, an ask when the bar trades
// at or above it; gaps through a quote fill at the open.
func (e *Engine) Run(ctx context.Context, params domain.Parameters, ds *domain.Dataset) (*Result, error) {
	if e.used {
		return nil, ErrEngineUsed
	}
	e.used = true

	if !e.capital.IsPositive() {
		return nil, ErrNonPositiveCapital
	}
	if ds.Len() < 2 {
		return nil, ErrInsufficientData
	}
	if params.Step.IsNegative() || params.PriceEncouragement.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameters, params)
	}
	if err := validateBar(0, ds.Bars[0]); err != nil {
		return nil, err
	}

	n := ds.Len()
	result := &Result{
		NAV:       make([]domain.NAVPoint, 0, n),
		Inventory: make([]domain.InventoryPoint, 0, n),
	}
	e.record(result, 0, ds.Bars[0])

	for i := 1; i < n; i++ {
		if i%cancellationCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		bar := ds.Bars[i]
		if err := validateBar(i, bar); err != nil {
			return nil, err
		}

		ref := ds.Bars[i-1].Close
		skew := params.PriceEncouragement.Mul(decimal.NewFromInt(e.position))
		bid := ref.Sub(params.Step).Sub(skew)
		ask := ref.Add(params.Step).Sub(skew)

		if e.position < e.opts.MaxInventory && bar.Low.LessThanOrEqual(bid) {
			e.buy(decimal.Min(bid, bar.Open))
		}
		if e.position > -e.opts.MaxInventory && bar.High.GreaterThanOrEqual(ask) {
			e.sell(decimal.Max(ask, bar.Open))
		}

		e.record(result, i, bar)
	}

	result.Fills = e.fills
	return result, nil
}

// buy fills one contract at price.
func (e *Engine) buy(price decimal.Decimal) {
	e.cash = e.cash.Sub(price.Mul(e.opts.Multiplier)).Sub(e.opts.FeePerContract)
	e.position++
	e.fills++
}

// sell fills one contract at price.
func (e *Engine) sell(price decimal.Decimal) {
	e.cash = e.cash.Add(price.Mul(e.opts.Multiplier)).Sub(e.opts.FeePerContract)
	e.position--
	e.fills++
}

// record appends NAV and inventory points marked to the bar close.
func (e *Engine) record(result *Result, i int, bar domain.Bar) {
	mark := bar.Close.Mul(e.opts.Multiplier).Mul(decimal.NewFromInt(e.position))
	result.NAV = append(result.NAV, domain.NAVPoint{
		Index:     i,
		Timestamp: bar.Timestamp,
		NAV:       e.capital.Add(e.cash).Add(mark),
	})
	result.Inventory = append(result.Inventory, domain.InventoryPoint{
		Index:     i,
		Timestamp: bar.Timestamp,
		Position:  e.position,
	})
}

// validateBar rejects bars with non-positive prices or inverted ranges.
func validateBar(i int, b domain.Bar) error {
	if !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() {
		return fmt.Errorf("%w at index %d: non-positive price", ErrInvalidBar, i)
	}
	if b.Low.GreaterThan(b.High) {
		return fmt.Errorf("%w at index %d: low above high", ErrInvalidBar, i)
	}
	return nil
}
