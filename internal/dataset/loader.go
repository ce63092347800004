package dataset

import (
	"context"
	"fmt"
	"os"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/storage"
)

// Loader provides the in-sample split (evaluation=false) used by the search
// or the held-out split (evaluation=true) used to validate parameters.
type Loader interface {
	LoadAndSplit(ctx context.Context, evaluation bool) (*domain.Dataset, error)
}

// FileLoader loads bars from a CSV file.
type FileLoader struct {
	Path   string
	Symbol string
	Split  SplitOptions
}

// LoadAndSplit reads the file and returns the requested split.
func (l *FileLoader) LoadAndSplit(_ context.Context, evaluation bool) (*domain.Dataset, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, l.Symbol)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", l.Path, err)
	}
	return pick(ds, l.Split, evaluation)
}

// StoreLoader loads bars for one symbol from a BarStore.
type StoreLoader struct {
	Store  storage.BarStore
	Symbol string
	Split  SplitOptions
}

// LoadAndSplit queries all bars of the symbol and returns the requested split.
func (l *StoreLoader) LoadAndSplit(ctx context.Context, evaluation bool) (*domain.Dataset, error) {
	bars, err := l.Store.GetBySymbol(ctx, l.Symbol)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", l.Symbol, err)
	}
	return pick(&domain.Dataset{Symbol: l.Symbol, Bars: bars}, l.Split, evaluation)
}

// StaticLoader serves an already loaded dataset.
type StaticLoader struct {
	Dataset *domain.Dataset
	Split   SplitOptions
}

// LoadAndSplit returns the requested split of the static dataset.
func (l *StaticLoader) LoadAndSplit(_ context.Context, evaluation bool) (*domain.Dataset, error) {
	return pick(l.Dataset, l.Split, evaluation)
}

func pick(ds *domain.Dataset, opts SplitOptions, evaluation bool) (*domain.Dataset, error) {
	inSample, heldOut, err := Split(ds, opts)
	if err != nil {
		return nil, err
	}
	if evaluation {
		return heldOut, nil
	}
	return inSample, nil
}

var (
	_ Loader = (*FileLoader)(nil)
	_ Loader = (*StoreLoader)(nil)
	_ Loader = (*StaticLoader)(nil)
)
