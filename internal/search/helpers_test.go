package search

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"strategy-tuner/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// referenceSpace is step in [0.1, 2.0] at 0.1 and priceEncouragement in [0.0, 1.0] at 0.01.
func referenceSpace(t *testing.T) *Space {
	t.Helper()
	space, err := NewSpace(
		Dimension{Name: domain.ParamStep, Low: dec("0.1"), High: dec("2.0"), Step: dec("0.1")},
		Dimension{Name: domain.ParamPriceEncouragement, Low: dec("0.0"), High: dec("1.0"), Step: dec("0.01")},
	)
	require.NoError(t, err)
	return space
}

func completeTrial(number int, objective string, step string) domain.Trial {
	return domain.Trial{
		Number:              number,
		Params:              domain.Parameters{Step: dec(step), PriceEncouragement: dec("0.5")},
		State:               domain.TrialComplete,
		Objective:           decPtr(objective),
		ConstraintSatisfied: true,
	}
}

func prunedTrial(number int, step string) domain.Trial {
	return domain.Trial{
		Number:      number,
		Params:      domain.Parameters{Step: dec(step), PriceEncouragement: dec("0.5")},
		State:       domain.TrialPruned,
		PruneReason: domain.PruneConstraint,
	}
}

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}
