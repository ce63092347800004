package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

// Outcome is the terminal verdict applied to a RUNNING trial.
type Outcome struct {
	State               domain.TrialState
	Objective           *decimal.Decimal
	ConstraintSatisfied bool
	Metrics             *domain.MetricsSnapshot
	PruneReason         domain.PruneReason
	FailureCause        string
}

func (o Outcome) validate() error {
	switch o.State {
	case domain.TrialComplete:
		if o.Objective == nil || !o.ConstraintSatisfied {
			return fmt.Errorf("%w: COMPLETE needs an objective and a satisfied constraint", ErrInvalidOutcome)
		}
	case domain.TrialPruned:
		if o.Objective != nil {
			return fmt.Errorf("%w: PRUNED trials carry no objective", ErrInvalidOutcome)
		}
		if o.PruneReason != domain.PruneConstraint && o.PruneReason != domain.PrunePruner {
			return fmt.Errorf("%w: PRUNED needs a reason", ErrInvalidOutcome)
		}
		if o.PruneReason == domain.PruneConstraint && o.ConstraintSatisfied {
			return fmt.Errorf("%w: constraint prune with satisfied constraint", ErrInvalidOutcome)
		}
	case domain.TrialFailed:
		if o.Objective != nil || o.ConstraintSatisfied {
			return fmt.Errorf("%w: FAILED trials carry no objective", ErrInvalidOutcome)
		}
	default:
		return fmt.Errorf("%w: state %q is not terminal", ErrInvalidOutcome, o.State)
	}
	return nil
}

// LedgerOptions configures a Ledger.
type LedgerOptions struct {
	Store storage.TrialStore // optional; receives every finalized trial
	RunID string             // required with Store
	Clock func() time.Time   // defaults to time.Now
}

// Ledger is the append-only trial history of one search run.
// Numbers are assigned from 0 in creation order without gaps.
type Ledger struct {
	mu     sync.RWMutex
	trials []domain.Trial
	opts   LedgerOptions
}

// NewLedger creates an empty ledger.
func NewLedger(opts LedgerOptions) *Ledger {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Ledger{opts: opts}
}

// Create appends a RUNNING trial with the next number.
func (l *Ledger) Create(params domain.Parameters) domain.Trial {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := domain.Trial{
		Number:    len(l.trials),
		Params:    params,
		State:     domain.TrialRunning,
		StartedAt: l.opts.Clock(),
	}
	l.trials = append(l.trials, t)
	return t
}

// Finalize applies a terminal outcome to a RUNNING trial and persists it.
// A trial is finalized at most once.
func (l *Ledger) Finalize(ctx context.Context, number int, o Outcome) (domain.Trial, error) {
	if err := o.validate(); err != nil {
		return domain.Trial{}, err
	}

	l.mu.Lock()
	if number < 0 || number >= len(l.trials) {
		l.mu.Unlock()
		return domain.Trial{}, fmt.Errorf("%w: %d", ErrUnknownTrial, number)
	}
	t := &l.trials[number]
	if t.State.IsTerminal() {
		l.mu.Unlock()
		return domain.Trial{}, fmt.Errorf("%w: %d is %s", ErrTrialFinalized, number, t.State)
	}

	t.State = o.State
	t.Objective = o.Objective
	t.ConstraintSatisfied = o.ConstraintSatisfied
	t.Metrics = o.Metrics
	t.PruneReason = o.PruneReason
	t.FailureCause = o.FailureCause
	t.FinishedAt = l.opts.Clock()
	final := t.Clone()
	l.mu.Unlock()

	if l.opts.Store != nil {
		if err := l.opts.Store.Insert(ctx, l.opts.RunID, &final); err != nil {
			return final, fmt.Errorf("persist trial %d: %w", number, err)
		}
	}
	return final, nil
}

// Get returns a copy of trial number.
func (l *Ledger) Get(number int) (domain.Trial, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if number < 0 || number >= len(l.trials) {
		return domain.Trial{}, fmt.Errorf("%w: %d", ErrUnknownTrial, number)
	}
	return l.trials[number].Clone(), nil
}

// History returns a copy of every trial in number order.
func (l *Ledger) History() []domain.Trial {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Trial, len(l.trials))
	for i, t := range l.trials {
		out[i] = t.Clone()
	}
	return out
}

// Count returns the number of trials created.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trials)
}
