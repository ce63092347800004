package search

import (
	"strategy-tuner/internal/domain"
)

// SelectBest returns the COMPLETE trial with the greatest objective.
// Equal objectives keep the lowest trial number. Returns nil if no trial is COMPLETE.
func SelectBest(trials []domain.Trial) *domain.Trial {
	var best *domain.Trial
	for i := range trials {
		t := &trials[i]
		if t.State != domain.TrialComplete || t.Objective == nil {
			continue
		}
		if best == nil ||
			t.Objective.GreaterThan(*best.Objective) ||
			(t.Objective.Equal(*best.Objective) && t.Number < best.Number) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	c := best.Clone()
	return &c
}

// Summarize counts trials by terminal state and selects the best one.
func Summarize(trials []domain.Trial) *domain.SearchResult {
	res := &domain.SearchResult{
		Best:   SelectBest(trials),
		Total:  len(trials),
		Trials: make([]domain.Trial, len(trials)),
	}
	for i, t := range trials {
		res.Trials[i] = t.Clone()
		switch t.State {
		case domain.TrialComplete:
			res.Completed++
		case domain.TrialPruned:
			res.Pruned++
			if t.PruneReason == domain.PruneConstraint {
				res.PrunedByConstraint++
			} else {
				res.PrunedByPruner++
			}
		case domain.TrialFailed:
			res.Failed++
		}
	}
	return res
}
