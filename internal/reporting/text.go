package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RenderText renders the best-trial report for a terminal.
func RenderText(w io.Writer, r *BestTrialReport) error {
	var sb strings.Builder

	if r.Cancelled {
		sb.WriteString("\nOptimization cancelled.\n")
	} else {
		sb.WriteString("\nOptimization completed!\n")
	}

	if r.Best == nil {
		sb.WriteString(fmt.Sprintf("No trial satisfied the drawdown constraint (MDD <= %s%%).\n", percent(r.Threshold, 0)))
	} else {
		sb.WriteString("Best trial:\n")
		sb.WriteString(fmt.Sprintf("  Number: %d\n", r.Best.Number))
		sb.WriteString(fmt.Sprintf("  Sharpe Ratio: %s\n", r.Best.Objective.StringFixed(4)))
		sb.WriteString("  Params:\n")
		sb.WriteString(fmt.Sprintf("    step: %s\n", r.Best.Params.Step))
		sb.WriteString(fmt.Sprintf("    priceEncouragement: %s\n", r.Best.Params.PriceEncouragement))
		if m := r.Replayed; m != nil {
			sb.WriteString(fmt.Sprintf("  MDD: %s (%s%%)\n", m.MaxDrawdown.StringFixed(4), percent(m.MaxDrawdown, 2)))
		}
	}

	sb.WriteString("\nStatistics:\n")
	sb.WriteString(fmt.Sprintf("  Completed trials: %d\n", r.Counts.Completed))
	sb.WriteString(fmt.Sprintf("  Pruned trials (MDD > %s%%): %d\n", percent(r.Threshold, 0), r.Counts.PrunedByConstraint))
	sb.WriteString(fmt.Sprintf("  Pruned trials (median pruner): %d\n", r.Counts.PrunedByPruner))
	sb.WriteString(fmt.Sprintf("  Failed trials: %d\n", r.Counts.Failed))
	sb.WriteString(fmt.Sprintf("  Total trials: %d\n", r.Counts.Total))

	if s := r.Objectives; s.Count > 0 {
		sb.WriteString("\nObjective distribution (completed trials):\n")
		sb.WriteString(fmt.Sprintf("  mean=%.4f std=%.4f min=%.4f p10=%.4f median=%.4f p90=%.4f max=%.4f\n",
			s.Mean, s.StdDev, s.Min, s.P10, s.Median, s.P90, s.Max))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderEvaluation renders a fixed-parameter evaluation report.
func RenderEvaluation(w io.Writer, r *EvaluationReport) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Parameters: %s\n", r.Params))
	sb.WriteString(fmt.Sprintf("Bars: %d (%s .. %s)\n", r.Dataset.Bars,
		r.Dataset.From.Format("2006-01-02"), r.Dataset.To.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Sharpe ratio: %s\n", r.Metrics.Sharpe))
	sb.WriteString(fmt.Sprintf("Sortino ratio: %s\n", r.Metrics.Sortino))
	sb.WriteString(fmt.Sprintf("Maximum drawdown: %s\n", r.Metrics.MaxDrawdown))
	if !r.Feasible {
		sb.WriteString(fmt.Sprintf("Warning: drawdown exceeds the %s%% constraint\n", percent(r.Threshold, 0)))
	}
	for _, a := range r.Artifacts {
		sb.WriteString(fmt.Sprintf("Wrote %s\n", a))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func percent(fraction decimal.Decimal, places int32) string {
	return fraction.Mul(hundred).StringFixed(places)
}
