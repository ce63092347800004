package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Bar // keyed by symbol, then unix nanos
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]map[int64]domain.Bar),
	}
}

// InsertBulk adds bars for a symbol. Fails entire batch on duplicate.
func (s *BarStore) InsertBulk(_ context.Context, symbol string, bars []domain.Bar) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[symbol]

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[int64]struct{}, len(bars))

	// First pass: check for duplicates (existing + intra-batch)
	for _, b := range bars {
		if b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		key := b.Timestamp.UnixNano()
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int64]domain.Bar, len(bars))
		s.data[symbol] = existing
	}
	for _, b := range bars {
		existing[b.Timestamp.UnixNano()] = b
	}
	return nil
}

// GetBySymbol retrieves all bars of a symbol, ordered by timestamp ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedBars(s.data[symbol], func(domain.Bar) bool { return true }), nil
}

// GetByTimeRange retrieves bars of a symbol within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedBars(s.data[symbol], func(b domain.Bar) bool {
		return !b.Timestamp.Before(start) && !b.Timestamp.After(end)
	}), nil
}

func sortedBars(bars map[int64]domain.Bar, keep func(domain.Bar) bool) []domain.Bar {
	var result []domain.Bar
	for _, b := range bars {
		if keep(b) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

var _ storage.BarStore = (*BarStore)(nil)
