package search

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-tuner/internal/domain"
)

// syntheticHistory builds n finished trials whose objective peaks near step 1.5.
func syntheticHistory(t *testing.T, space *Space, n int) []domain.Trial {
	t.Helper()
	var history []domain.Trial
	for i := 0; i < n; i++ {
		p, err := RandomSampler{}.Propose(space, history, 99)
		require.NoError(t, err)

		tr := domain.Trial{Number: i, Params: p}
		if i%4 == 3 {
			tr.State = domain.TrialPruned
			tr.PruneReason = domain.PruneConstraint
		} else {
			tr.State = domain.TrialComplete
			tr.ConstraintSatisfied = true
			obj := dec("2").Sub(p.Step.Sub(dec("1.5")).Abs())
			tr.Objective = &obj
		}
		history = append(history, tr)
	}
	return history
}

func TestSamplers_RespectGrid(t *testing.T) {
	space := referenceSpace(t)
	samplers := map[string]Sampler{
		"random": RandomSampler{},
		"tpe":    NewTPESampler(TPEOptions{StartupTrials: 3}),
	}

	for name, s := range samplers {
		t.Run(name, func(t *testing.T) {
			history := syntheticHistory(t, space, 30)
			for n := 0; n <= len(history); n++ {
				p, err := s.Propose(space, history[:n], 42)
				require.NoError(t, err)
				assert.True(t, space.Contains(p), "trial %d: %s off grid", n, p)
			}
		})
	}
}

func TestSamplers_Deterministic(t *testing.T) {
	space := referenceSpace(t)
	history := syntheticHistory(t, space, 20)

	for _, s := range []Sampler{RandomSampler{}, NewTPESampler(TPEOptions{StartupTrials: 5})} {
		for n := 0; n <= len(history); n += 5 {
			a, err := s.Propose(space, history[:n], 42)
			require.NoError(t, err)
			b, err := s.Propose(space, history[:n], 42)
			require.NoError(t, err)
			assert.Equal(t, a.String(), b.String())
		}
	}
}

func TestSamplers_SeedMatters(t *testing.T) {
	space := referenceSpace(t)
	var history []domain.Trial

	same := 0
	for n := 0; n < 10; n++ {
		a, _ := RandomSampler{}.Propose(space, history, 1)
		b, _ := RandomSampler{}.Propose(space, history, 2)
		if a.String() == b.String() {
			same++
		}
		history = append(history, domain.Trial{Number: n, Params: a, State: domain.TrialFailed})
	}
	assert.Less(t, same, 10)
}

func TestTPE_StartupIsUniform(t *testing.T) {
	space := referenceSpace(t)
	history := syntheticHistory(t, space, 4)
	tpe := NewTPESampler(TPEOptions{StartupTrials: 10})

	got, err := tpe.Propose(space, history, 42)
	require.NoError(t, err)
	want, err := RandomSampler{}.Propose(space, history, 42)
	require.NoError(t, err)
	assert.Equal(t, want.String(), got.String())
}

func TestTPE_FallsBackWithoutCompleteTrials(t *testing.T) {
	space := referenceSpace(t)
	history := []domain.Trial{prunedTrial(0, "1.0"), prunedTrial(1, "1.1"), prunedTrial(2, "0.3")}
	tpe := NewTPESampler(TPEOptions{StartupTrials: 1})

	got, err := tpe.Propose(space, history, 42)
	require.NoError(t, err)
	want, _ := RandomSampler{}.Propose(space, history, 42)
	assert.Equal(t, want.String(), got.String())
}

func TestTPE_Split(t *testing.T) {
	tpe := NewTPESampler(TPEOptions{})
	history := []domain.Trial{
		completeTrial(0, "1.2", "0.5"),
		prunedTrial(1, "1.0"),
		completeTrial(2, "1.4", "0.7"),
		{Number: 3, State: domain.TrialFailed},
		completeTrial(4, "1.4", "0.9"),
		{Number: 5, State: domain.TrialRunning},
	}

	good, bad := tpe.split(history)
	// 4 observations: ceil(0.4) = 1 good trial, the earliest of the tied best
	require.Len(t, good, 1)
	assert.Equal(t, 2, good[0].Number)
	require.Len(t, bad, 3)
	assert.Equal(t, []int{4, 0, 1}, []int{bad[0].Number, bad[1].Number, bad[2].Number})
}

func TestTPE_ConcentratesNearGoodRegion(t *testing.T) {
	space := referenceSpace(t)
	history := syntheticHistory(t, space, 60)
	tpe := NewTPESampler(TPEOptions{StartupTrials: 10})

	var total float64
	const proposals = 40
	for i := 0; i < proposals; i++ {
		p, err := tpe.Propose(space, history, uint64(i))
		require.NoError(t, err)
		total += math.Abs(p.Step.InexactFloat64() - 1.5)
	}
	// uniform proposals over the step grid are on average 0.6 away from 1.5
	assert.Less(t, total/proposals, 0.45)
}

func TestDefaultGamma(t *testing.T) {
	assert.Equal(t, 0, DefaultGamma(0))
	assert.Equal(t, 1, DefaultGamma(1))
	assert.Equal(t, 1, DefaultGamma(10))
	assert.Equal(t, 2, DefaultGamma(11))
	assert.Equal(t, 25, DefaultGamma(1000))
}

func TestParzen_DensityAndSampling(t *testing.T) {
	p := newParzen([]float64{0.5, 0.55, 1.8}, 0.05, 2.05, 1)

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		x := p.sample(rng)
		assert.GreaterOrEqual(t, x, 0.05)
		assert.LessOrEqual(t, x, 2.05)
	}

	near := p.logPdf(0.52)
	far := p.logPdf(1.2)
	assert.False(t, math.IsNaN(near) || math.IsInf(near, 0))
	assert.Greater(t, near, far)

	// the mixture integrates to roughly one over the truncation interval
	sum, n := 0.0, 2000
	width := 2.0
	for i := 0; i < n; i++ {
		x := 0.05 + (float64(i)+0.5)*width/float64(n)
		sum += math.Exp(p.logPdf(x)) * width / float64(n)
	}
	assert.InDelta(t, 1.0, sum, 0.01)
}
