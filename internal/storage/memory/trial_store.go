package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

// TrialStore is an in-memory implementation of storage.TrialStore and storage.RunStore.
type TrialStore struct {
	mu     sync.RWMutex
	runs   map[string]*domain.Run
	trials map[string]map[int]*domain.Trial // keyed by run_id, then number
}

// NewTrialStore creates a new in-memory trial store.
func NewTrialStore() *TrialStore {
	return &TrialStore{
		runs:   make(map[string]*domain.Run),
		trials: make(map[string]map[int]*domain.Trial),
	}
}

// InsertRun adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *TrialStore) InsertRun(_ context.Context, r *domain.Run) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	runCopy := *r
	s.runs[r.RunID] = &runCopy
	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *TrialStore) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	runCopy := *r
	return &runCopy, nil
}

// Insert adds a finalized trial. Returns ErrDuplicateKey if (run_id, number) exists.
func (s *TrialStore) Insert(_ context.Context, runID string, t *domain.Trial) error {
	if t == nil || runID == "" || !t.State.IsTerminal() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byNumber, ok := s.trials[runID]
	if !ok {
		byNumber = make(map[int]*domain.Trial)
		s.trials[runID] = byNumber
	}
	if _, exists := byNumber[t.Number]; exists {
		return storage.ErrDuplicateKey
	}
	byNumber[t.Number] = cloneTrial(t)
	return nil
}

// GetByRun retrieves all trials of a run, ordered by number ASC.
func (s *TrialStore) GetByRun(_ context.Context, runID string) ([]*domain.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Trial, 0, len(s.trials[runID]))
	for _, t := range s.trials[runID] {
		result = append(result, cloneTrial(t))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})
	return result, nil
}

// GetBest retrieves the best COMPLETE trial of a run. Returns ErrNotFound if none.
func (s *TrialStore) GetBest(ctx context.Context, runID string) (*domain.Trial, error) {
	trials, err := s.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var best *domain.Trial
	for _, t := range trials {
		if t.State != domain.TrialComplete || t.Objective == nil {
			continue
		}
		// trials are ordered by number, so strict comparison keeps the earliest on ties
		if best == nil || t.Objective.GreaterThan(*best.Objective) {
			best = t
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	return best, nil
}

func cloneTrial(t *domain.Trial) *domain.Trial {
	c := t.Clone()
	return &c
}

var (
	_ storage.TrialStore = (*TrialStore)(nil)
	_ storage.RunStore   = (*TrialStore)(nil)
)
