package search

import (
	"context"

	"strategy-tuner/internal/domain"
)

// Callback observes every finalized trial, in finalization order.
// The trial is passed by value; a returned error aborts the search.
type Callback interface {
	OnTrialFinalized(ctx context.Context, trial domain.Trial) error
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(ctx context.Context, trial domain.Trial) error

// OnTrialFinalized calls f.
func (f CallbackFunc) OnTrialFinalized(ctx context.Context, trial domain.Trial) error {
	return f(ctx, trial)
}

// MultiCallback fans out to callbacks in order and stops at the first error.
type MultiCallback []Callback

// OnTrialFinalized implements Callback.
func (m MultiCallback) OnTrialFinalized(ctx context.Context, trial domain.Trial) error {
	for _, cb := range m {
		if err := cb.OnTrialFinalized(ctx, trial); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Callback = CallbackFunc(nil)
	_ Callback = MultiCallback(nil)
)
