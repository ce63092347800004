package storage

import (
	"context"
	"time"

	"strategy-tuner/internal/domain"
)

// RunStore provides access to search run metadata.
type RunStore interface {
	// InsertRun adds a new run. Returns ErrDuplicateKey if run_id exists.
	InsertRun(ctx context.Context, r *domain.Run) error

	// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
}

// TrialStore provides access to finalized trials. Trials are append-only:
// a (run_id, number) pair is written exactly once, in a terminal state.
type TrialStore interface {
	// Insert adds a finalized trial. Returns ErrDuplicateKey if (run_id, number) exists
	// and ErrInvalidInput if the trial is not in a terminal state.
	Insert(ctx context.Context, runID string, t *domain.Trial) error

	// GetByRun retrieves all trials of a run, ordered by number ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.Trial, error)

	// GetBest retrieves the COMPLETE trial with the greatest objective,
	// ties broken by lowest number. Returns ErrNotFound if the run has none.
	GetBest(ctx context.Context, runID string) (*domain.Trial, error)
}

// BarStore provides access to market data bars.
type BarStore interface {
	// InsertBulk adds bars for a symbol. Fails entire batch on duplicate (symbol, timestamp).
	InsertBulk(ctx context.Context, symbol string, bars []domain.Bar) error

	// GetBySymbol retrieves all bars of a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]domain.Bar, error)

	// GetByTimeRange retrieves bars of a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}
