// Package reporting renders the outcome of a search run and of a
// fixed-parameter evaluation.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/metrics"
)

// BestTrialReport is the end-of-run report. Best is nil when no trial
// satisfied the drawdown constraint.
type BestTrialReport struct {
	GeneratedAt time.Time

	Best     *domain.Trial
	Replayed *domain.MetricsSnapshot // snapshot of the verification replay

	Threshold decimal.Decimal // drawdown constraint threshold
	Counts    Counts

	// Objectives summarizes the objective of every COMPLETE trial.
	Objectives metrics.Summary

	Cancelled bool
	Dataset   DatasetSummary
}

// Counts tallies trials by terminal state.
type Counts struct {
	Total              int
	Completed          int
	Pruned             int
	PrunedByConstraint int
	PrunedByPruner     int
	Failed             int
}

// DatasetSummary describes the bars a report was computed on.
type DatasetSummary struct {
	Symbol string
	Bars   int
	From   time.Time
	To     time.Time
}

// EvaluationReport is the outcome of one fixed-parameter evaluation.
type EvaluationReport struct {
	Params    domain.Parameters
	Metrics   *domain.MetricsSnapshot
	Feasible  bool
	Threshold decimal.Decimal
	Fills     int
	FinalNAV  decimal.Decimal
	Dataset   DatasetSummary
	Artifacts []string // paths written by the plotter
}

func summarizeDataset(ds *domain.Dataset) DatasetSummary {
	if ds == nil {
		return DatasetSummary{}
	}
	return DatasetSummary{
		Symbol: ds.Symbol,
		Bars:   ds.Len(),
		From:   ds.First(),
		To:     ds.Last(),
	}
}

func countTrials(r *domain.SearchResult) Counts {
	return Counts{
		Total:              r.Total,
		Completed:          r.Completed,
		Pruned:             r.Pruned,
		PrunedByConstraint: r.PrunedByConstraint,
		PrunedByPruner:     r.PrunedByPruner,
		Failed:             r.Failed,
	}
}
