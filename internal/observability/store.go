package observability

import (
	"context"
	"time"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

// TrialStore is the persistence surface of a search run.
type TrialStore interface {
	storage.TrialStore
	storage.RunStore
}

// InstrumentedStore records query latency and errors of a TrialStore.
type InstrumentedStore struct {
	next     TrialStore
	database string
	metrics  *Metrics
}

// InstrumentStore wraps next; database labels the recorded series.
func InstrumentStore(next TrialStore, database string, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, database: database, metrics: m}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.RecordDBQuery(s.database, op, time.Since(start).Seconds(), err)
}

// InsertRun implements storage.RunStore.
func (s *InstrumentedStore) InsertRun(ctx context.Context, r *domain.Run) error {
	start := time.Now()
	err := s.next.InsertRun(ctx, r)
	s.observe("insert_run", start, err)
	return err
}

// GetRun implements storage.RunStore.
func (s *InstrumentedStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	start := time.Now()
	r, err := s.next.GetRun(ctx, runID)
	s.observe("get_run", start, err)
	return r, err
}

// Insert implements storage.TrialStore.
func (s *InstrumentedStore) Insert(ctx context.Context, runID string, t *domain.Trial) error {
	start := time.Now()
	err := s.next.Insert(ctx, runID, t)
	s.observe("insert_trial", start, err)
	return err
}

// GetByRun implements storage.TrialStore.
func (s *InstrumentedStore) GetByRun(ctx context.Context, runID string) ([]*domain.Trial, error) {
	start := time.Now()
	trials, err := s.next.GetByRun(ctx, runID)
	s.observe("get_trials", start, err)
	return trials, err
}

// GetBest implements storage.TrialStore.
func (s *InstrumentedStore) GetBest(ctx context.Context, runID string) (*domain.Trial, error) {
	start := time.Now()
	t, err := s.next.GetBest(ctx, runID)
	s.observe("get_best_trial", start, err)
	return t, err
}

var _ TrialStore = (*InstrumentedStore)(nil)
