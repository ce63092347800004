package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

// TrialStore implements storage.TrialStore using PostgreSQL.
// Decimals cross the wire as text so no precision is lost to float8.
type TrialStore struct {
	pool *Pool
}

// NewTrialStore creates a new TrialStore.
func NewTrialStore(pool *Pool) *TrialStore {
	return &TrialStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrialStore = (*TrialStore)(nil)

const trialColumns = `
	number, step::text, price_encouragement::text, state,
	objective::text, constraint_satisfied,
	sharpe::text, sortino::text, max_drawdown::text, max_drawdown_index, max_drawdown_at, risk_free_return::text,
	prune_reason, failure_cause, started_at, finished_at
`

// Insert adds a finalized trial. Returns ErrDuplicateKey if (run_id, number) exists.
func (s *TrialStore) Insert(ctx context.Context, runID string, t *domain.Trial) error {
	if t == nil || runID == "" || !t.State.IsTerminal() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trials (
			run_id, number, step, price_encouragement, state,
			objective, constraint_satisfied,
			sharpe, sortino, max_drawdown, max_drawdown_index, max_drawdown_at, risk_free_return,
			prune_reason, failure_cause, started_at, finished_at
		) VALUES (
			$1, $2, $3::numeric, $4::numeric, $5,
			$6::numeric, $7,
			$8::numeric, $9::numeric, $10::numeric, $11, $12, $13::numeric,
			$14, $15, $16, $17
		)
	`

	var sharpe, sortino, mdd, rf *string
	var mddIndex *int
	var mddAt *time.Time
	if m := t.Metrics; m != nil {
		sharpe = decimalText(&m.Sharpe)
		sortino = decimalText(&m.Sortino)
		mdd = decimalText(&m.MaxDrawdown)
		rf = decimalText(&m.RiskFreeReturn)
		mddIndex = &m.MaxDrawdownIndex
		if !m.MaxDrawdownAt.IsZero() {
			mddAt = &m.MaxDrawdownAt
		}
	}

	_, err := s.pool.Exec(ctx, query,
		runID, t.Number, t.Params.Step.String(), t.Params.PriceEncouragement.String(), string(t.State),
		decimalText(t.Objective), t.ConstraintSatisfied,
		sharpe, sortino, mdd, mddIndex, mddAt, rf,
		string(t.PruneReason), t.FailureCause, t.StartedAt, t.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trial: %w", err)
	}
	return nil
}

// GetByRun retrieves all trials of a run, ordered by number ASC.
func (s *TrialStore) GetByRun(ctx context.Context, runID string) ([]*domain.Trial, error) {
	query := `SELECT ` + trialColumns + ` FROM trials WHERE run_id = $1 ORDER BY number ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query trials by run: %w", err)
	}
	defer rows.Close()

	var trials []*domain.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return trials, nil
}

// GetBest retrieves the COMPLETE trial with the greatest objective, lowest number on ties.
// Returns ErrNotFound if the run has no COMPLETE trial.
func (s *TrialStore) GetBest(ctx context.Context, runID string) (*domain.Trial, error) {
	query := `SELECT ` + trialColumns + `
		FROM trials
		WHERE run_id = $1 AND state = 'COMPLETE' AND objective IS NOT NULL
		ORDER BY objective DESC, number ASC
		LIMIT 1
	`

	t, err := scanTrial(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanTrial(row pgx.Row) (*domain.Trial, error) {
	var (
		t                        domain.Trial
		step, pe, state          string
		objective                *string
		sharpe, sortino, mdd, rf *string
		mddIndex                 *int
		mddAt                    *time.Time
		pruneReason              string
	)

	err := row.Scan(
		&t.Number, &step, &pe, &state,
		&objective, &t.ConstraintSatisfied,
		&sharpe, &sortino, &mdd, &mddIndex, &mddAt, &rf,
		&pruneReason, &t.FailureCause, &t.StartedAt, &t.FinishedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan trial: %w", err)
	}

	if t.Params.Step, err = decimal.NewFromString(step); err != nil {
		return nil, fmt.Errorf("parse step: %w", err)
	}
	if t.Params.PriceEncouragement, err = decimal.NewFromString(pe); err != nil {
		return nil, fmt.Errorf("parse price encouragement: %w", err)
	}
	t.State = domain.TrialState(state)
	t.PruneReason = domain.PruneReason(pruneReason)
	t.StartedAt = t.StartedAt.UTC()
	t.FinishedAt = t.FinishedAt.UTC()

	if objective != nil {
		v, err := decimal.NewFromString(*objective)
		if err != nil {
			return nil, fmt.Errorf("parse objective: %w", err)
		}
		t.Objective = &v
	}

	if sharpe != nil {
		m := &domain.MetricsSnapshot{}
		for _, f := range []struct {
			src *string
			dst *decimal.Decimal
		}{
			{sharpe, &m.Sharpe},
			{sortino, &m.Sortino},
			{mdd, &m.MaxDrawdown},
			{rf, &m.RiskFreeReturn},
		} {
			if f.src == nil {
				continue
			}
			if *f.dst, err = decimal.NewFromString(*f.src); err != nil {
				return nil, fmt.Errorf("parse metric: %w", err)
			}
		}
		if mddIndex != nil {
			m.MaxDrawdownIndex = *mddIndex
		}
		if mddAt != nil {
			m.MaxDrawdownAt = mddAt.UTC()
		}
		t.Metrics = m
	}

	return &t, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
