// Package search runs the constrained parameter search: it proposes points
// on a quantized parameter space, evaluates them, applies the drawdown
// constraint and the pruner, and records every trial in an append-only ledger.
package search

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
)

// Space errors
var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrUnknownDimension = errors.New("unknown dimension")
)

// Dimension is one named parameter with closed bounds [Low, High] and grid Step.
// Grid points are Low + k*Step for k = 0..Levels()-1.
type Dimension struct {
	Name string
	Low  decimal.Decimal
	High decimal.Decimal
	Step decimal.Decimal
}

// Levels returns the number of grid points inside the bounds.
func (d Dimension) Levels() int {
	return int(d.High.Sub(d.Low).Div(d.Step).Floor().IntPart()) + 1
}

// Level returns grid point k.
func (d Dimension) Level(k int) decimal.Decimal {
	return d.Low.Add(d.Step.Mul(decimal.NewFromInt(int64(k))))
}

// Snap returns the grid point nearest to v, clamped to the bounds.
func (d Dimension) Snap(v decimal.Decimal) decimal.Decimal {
	k := v.Sub(d.Low).Div(d.Step).Round(0).IntPart()
	k = max(0, min(k, int64(d.Levels()-1)))
	return d.Level(int(k))
}

// Contains reports whether v is within bounds and on the grid.
func (d Dimension) Contains(v decimal.Decimal) bool {
	if v.LessThan(d.Low) || v.GreaterThan(d.High) {
		return false
	}
	return v.Sub(d.Low).Mod(d.Step).IsZero()
}

func (d Dimension) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDimension)
	}
	if d.Low.GreaterThan(d.High) {
		return fmt.Errorf("%w: %s low %s exceeds high %s", ErrInvalidDimension, d.Name, d.Low, d.High)
	}
	if !d.Step.IsPositive() {
		return fmt.Errorf("%w: %s step %s must be positive", ErrInvalidDimension, d.Name, d.Step)
	}
	var probe domain.Parameters
	if err := probe.Set(d.Name, d.Low); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownDimension, err)
	}
	return nil
}

// Space is an ordered set of dimensions. It is immutable after NewSpace.
type Space struct {
	dims []Dimension
}

// NewSpace validates dims and returns a Space.
// Every strategy parameter must be covered exactly once.
func NewSpace(dims ...Dimension) (*Space, error) {
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("%w: duplicate %s", ErrInvalidDimension, d.Name)
		}
		seen[d.Name] = true
	}
	for _, name := range domain.ParameterNames {
		if !seen[name] {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidDimension, name)
		}
	}
	return &Space{dims: append([]Dimension(nil), dims...)}, nil
}

// Dimensions returns a copy of the dimensions in order.
func (s *Space) Dimensions() []Dimension {
	return append([]Dimension(nil), s.dims...)
}

// Dimension returns the dimension named name.
func (s *Space) Dimension(name string) (Dimension, error) {
	for _, d := range s.dims {
		if d.Name == name {
			return d, nil
		}
	}
	return Dimension{}, fmt.Errorf("%w: %s", ErrUnknownDimension, name)
}

// Snap snaps v to the grid of dimension name.
func (s *Space) Snap(name string, v decimal.Decimal) (decimal.Decimal, error) {
	d, err := s.Dimension(name)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Snap(v), nil
}

// Contains reports whether every parameter of p is within bounds and on the grid.
func (s *Space) Contains(p domain.Parameters) bool {
	for _, d := range s.dims {
		v, err := p.Get(d.Name)
		if err != nil || !d.Contains(v) {
			return false
		}
	}
	return true
}

// Size returns the number of distinct grid points.
func (s *Space) Size() int {
	n := 1
	for _, d := range s.dims {
		n *= d.Levels()
	}
	return n
}
