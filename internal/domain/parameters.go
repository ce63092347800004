package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Canonical parameter names, used in config keys, log headers and storage.
const (
	ParamStep               = "step"
	ParamPriceEncouragement = "priceEncouragement"
)

// ParameterNames lists the tunable parameters in search order.
var ParameterNames = []string{ParamStep, ParamPriceEncouragement}

// Parameters holds the two free parameters of the market-making strategy.
type Parameters struct {
	Step               decimal.Decimal // quote distance from reference price
	PriceEncouragement decimal.Decimal // quote skew per contract of inventory
}

// Get returns the parameter value by canonical name.
func (p Parameters) Get(name string) (decimal.Decimal, error) {
	switch name {
	case ParamStep:
		return p.Step, nil
	case ParamPriceEncouragement:
		return p.PriceEncouragement, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown parameter %q", name)
	}
}

// Set assigns the parameter value by canonical name.
func (p *Parameters) Set(name string, v decimal.Decimal) error {
	switch name {
	case ParamStep:
		p.Step = v
	case ParamPriceEncouragement:
		p.PriceEncouragement = v
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	return nil
}

// String renders parameters as "step=<v> priceEncouragement=<v>".
func (p Parameters) String() string {
	return fmt.Sprintf("%s=%s %s=%s", ParamStep, p.Step.String(), ParamPriceEncouragement, p.PriceEncouragement.String())
}
