package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the best-trial report as Markdown.
func RenderMarkdown(r *BestTrialReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Optimization Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Dataset.Bars > 0 {
		sb.WriteString(fmt.Sprintf("Dataset: %s, %d bars, %s to %s\n\n", r.Dataset.Symbol, r.Dataset.Bars,
			r.Dataset.From.Format(time.RFC3339), r.Dataset.To.Format(time.RFC3339)))
	}
	if r.Cancelled {
		sb.WriteString("**Run cancelled before the trial budget was exhausted.**\n\n")
	}

	// Best trial
	sb.WriteString("## Best Trial\n\n")
	if r.Best == nil {
		sb.WriteString(fmt.Sprintf("No trial satisfied MDD <= %s%%.\n\n", percent(r.Threshold, 0)))
	} else {
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Trial | %d |\n", r.Best.Number))
		sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", r.Best.Objective.StringFixed(4)))
		sb.WriteString(fmt.Sprintf("| step | %s |\n", r.Best.Params.Step))
		sb.WriteString(fmt.Sprintf("| priceEncouragement | %s |\n", r.Best.Params.PriceEncouragement))
		if m := r.Replayed; m != nil {
			sb.WriteString(fmt.Sprintf("| Sortino Ratio | %s |\n", m.Sortino.StringFixed(4)))
			sb.WriteString(fmt.Sprintf("| MDD | %s (%s%%) |\n", m.MaxDrawdown.StringFixed(4), percent(m.MaxDrawdown, 2)))
			sb.WriteString(fmt.Sprintf("| MDD trough | %s |\n", m.MaxDrawdownAt.Format(time.RFC3339)))
		}
		sb.WriteString("\n")
	}

	// Counts
	sb.WriteString("## Trials\n\n")
	sb.WriteString("| State | Count |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| COMPLETE | %d |\n", r.Counts.Completed))
	sb.WriteString(fmt.Sprintf("| PRUNED (constraint) | %d |\n", r.Counts.PrunedByConstraint))
	sb.WriteString(fmt.Sprintf("| PRUNED (pruner) | %d |\n", r.Counts.PrunedByPruner))
	sb.WriteString(fmt.Sprintf("| FAILED | %d |\n", r.Counts.Failed))
	sb.WriteString(fmt.Sprintf("| Total | %d |\n", r.Counts.Total))
	sb.WriteString("\n")

	// Distribution
	if s := r.Objectives; s.Count > 0 {
		sb.WriteString("## Objective Distribution\n\n")
		sb.WriteString("| Mean | StdDev | Min | P10 | Median | P90 | Max |\n")
		sb.WriteString("|------|--------|-----|-----|--------|-----|-----|\n")
		sb.WriteString(fmt.Sprintf("| %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			s.Mean, s.StdDev, s.Min, s.P10, s.Median, s.P90, s.Max))
	}

	return sb.String()
}
