package postgres

import (
	"context"
	"fmt"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// InsertRun adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) InsertRun(ctx context.Context, r *domain.Run) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (run_id, config_hash, symbol, seed, trials, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.ConfigHash, r.Symbol, int64(r.Seed), r.Trials, r.StartedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT run_id, config_hash, symbol, seed, trials, started_at
		FROM runs
		WHERE run_id = $1
	`

	var r domain.Run
	var seed int64
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&r.RunID, &r.ConfigHash, &r.Symbol, &seed, &r.Trials, &r.StartedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.Seed = uint64(seed)
	r.StartedAt = r.StartedAt.UTC()
	return &r, nil
}
