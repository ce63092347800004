package search

import (
	"sort"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
)

// DefaultWarmupTrials is the number of leading trials MedianPruner never prunes.
const DefaultWarmupTrials = 5

// Pruner decides whether a feasible, fully evaluated trial is kept.
// trial carries its candidate objective; history holds the trials before it.
type Pruner interface {
	ShouldPrune(trial domain.Trial, history []domain.Trial) bool
}

// MedianPruner prunes a trial whose objective is strictly below the median
// objective of the COMPLETE trials preceding it.
type MedianPruner struct {
	WarmupTrials int
}

// ShouldPrune implements Pruner.
func (p MedianPruner) ShouldPrune(trial domain.Trial, history []domain.Trial) bool {
	if trial.Objective == nil || trial.Number < p.WarmupTrials {
		return false
	}

	var prior []decimal.Decimal
	for _, t := range history {
		if t.Number < trial.Number && t.State == domain.TrialComplete && t.Objective != nil {
			prior = append(prior, *t.Objective)
		}
	}
	if len(prior) == 0 {
		return false
	}
	return trial.Objective.LessThan(median(prior))
}

// median sorts values in place and returns the middle value, averaging the
// middle pair for even counts.
func median(values []decimal.Decimal) decimal.Decimal {
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return values[mid-1].Add(values[mid]).Div(decimal.NewFromInt(2))
}

// NopPruner never prunes.
type NopPruner struct{}

// ShouldPrune implements Pruner.
func (NopPruner) ShouldPrune(domain.Trial, []domain.Trial) bool { return false }

var (
	_ Pruner = MedianPruner{}
	_ Pruner = NopPruner{}
)
