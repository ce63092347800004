package search

import (
	"fmt"
	"math/rand/v2"

	"strategy-tuner/internal/domain"
)

// Sampler proposes the next parameter point.
// Propose must be a pure function of (space, history, seed) and must only
// return points on the space grid.
type Sampler interface {
	Propose(space *Space, history []domain.Trial, seed uint64) (domain.Parameters, error)
}

// newRand derives the proposal stream for the trial after history.
func newRand(seed uint64, history []domain.Trial) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(len(history))))
}

// RandomSampler draws uniformly over the grid.
type RandomSampler struct{}

// Propose draws one uniform grid point per dimension.
func (RandomSampler) Propose(space *Space, history []domain.Trial, seed uint64) (domain.Parameters, error) {
	return uniform(space, newRand(seed, history))
}

func uniform(space *Space, rng *rand.Rand) (domain.Parameters, error) {
	var p domain.Parameters
	for _, d := range space.dims {
		if err := p.Set(d.Name, d.Level(rng.IntN(d.Levels()))); err != nil {
			return domain.Parameters{}, fmt.Errorf("set %s: %w", d.Name, err)
		}
	}
	return p, nil
}

var _ Sampler = RandomSampler{}
