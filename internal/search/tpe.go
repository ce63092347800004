package search

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"strategy-tuner/internal/domain"
)

// TPE defaults
const (
	DefaultStartupTrials = 10
	DefaultEICandidates  = 24
	defaultPriorWeight   = 1.0
	maxGoodTrials        = 25
)

// TPEOptions configures a TPESampler.
type TPEOptions struct {
	StartupTrials int             // uniform proposals before the model is fitted
	EICandidates  int             // candidates drawn from the good density per proposal
	Gamma         func(n int) int // size of the good set for n observations
	PriorWeight   float64         // weight of the uniform-like prior component
}

// DefaultGamma returns min(ceil(0.1 n), 25).
func DefaultGamma(n int) int {
	return min(int(math.Ceil(0.1*float64(n))), maxGoodTrials)
}

// TPESampler is a tree-structured Parzen estimator.
//
// Finished trials are split into a good set (the best COMPLETE trials) and a
// bad set (the remaining COMPLETE trials plus every PRUNED trial). Each
// dimension gets two truncated Gaussian mixtures, l(x) over the good set and
// g(x) over the bad set. Candidates are drawn from l and the one maximizing
// l(x)/g(x) is proposed. FAILED trials carry no information and are ignored.
type TPESampler struct {
	opts TPEOptions
}

// NewTPESampler creates a TPESampler, filling unset options with defaults.
func NewTPESampler(opts TPEOptions) *TPESampler {
	if opts.StartupTrials < 0 {
		opts.StartupTrials = 0
	}
	if opts.EICandidates <= 0 {
		opts.EICandidates = DefaultEICandidates
	}
	if opts.Gamma == nil {
		opts.Gamma = DefaultGamma
	}
	if opts.PriorWeight <= 0 {
		opts.PriorWeight = defaultPriorWeight
	}
	return &TPESampler{opts: opts}
}

// Propose returns the next point.
func (s *TPESampler) Propose(space *Space, history []domain.Trial, seed uint64) (domain.Parameters, error) {
	rng := newRand(seed, history)

	good, bad := s.split(history)
	if len(good)+len(bad) < s.opts.StartupTrials || len(good) == 0 {
		return uniform(space, rng)
	}

	var p domain.Parameters
	for _, d := range space.dims {
		gv, err := values(good, d.Name)
		if err != nil {
			return domain.Parameters{}, err
		}
		bv, err := values(bad, d.Name)
		if err != nil {
			return domain.Parameters{}, err
		}

		x := s.proposeDimension(d, gv, bv, rng)
		if err := p.Set(d.Name, x); err != nil {
			return domain.Parameters{}, fmt.Errorf("set %s: %w", d.Name, err)
		}
	}
	return p, nil
}

// split ranks observations. Good trials are the top Gamma(n) COMPLETE trials
// by objective, ties broken by lower number.
func (s *TPESampler) split(history []domain.Trial) (good, bad []domain.Trial) {
	var complete, pruned []domain.Trial
	for _, t := range history {
		switch t.State {
		case domain.TrialComplete:
			if t.Objective != nil {
				complete = append(complete, t)
			}
		case domain.TrialPruned:
			pruned = append(pruned, t)
		}
	}

	sort.SliceStable(complete, func(i, j int) bool {
		oi, oj := *complete[i].Objective, *complete[j].Objective
		if !oi.Equal(oj) {
			return oi.GreaterThan(oj)
		}
		return complete[i].Number < complete[j].Number
	})

	n := len(complete) + len(pruned)
	nGood := min(s.opts.Gamma(n), len(complete))
	good = complete[:nGood]
	bad = append(append([]domain.Trial(nil), complete[nGood:]...), pruned...)
	return good, bad
}

// proposeDimension draws candidates from l and returns the snapped one with
// the highest log l(x) - log g(x). The first candidate wins ties.
func (s *TPESampler) proposeDimension(d Dimension, good, bad []float64, rng *rand.Rand) decimal.Decimal {
	// Densities live on the grid widened by half a step so the end points
	// get the same mass as interior points.
	half := d.Step.InexactFloat64() / 2
	lo, hi := d.Low.InexactFloat64()-half, d.High.InexactFloat64()+half

	l := newParzen(good, lo, hi, s.opts.PriorWeight)
	g := newParzen(bad, lo, hi, s.opts.PriorWeight)

	best := d.Low
	bestScore := math.Inf(-1)
	for i := 0; i < s.opts.EICandidates; i++ {
		x := d.Snap(decimal.NewFromFloat(l.sample(rng)))
		xf := x.InexactFloat64()
		score := l.logPdf(xf) - g.logPdf(xf)
		if score > bestScore {
			best, bestScore = x, score
		}
	}
	return best
}

func values(trials []domain.Trial, name string) ([]float64, error) {
	out := make([]float64, len(trials))
	for i, t := range trials {
		v, err := t.Params.Get(name)
		if err != nil {
			return nil, err
		}
		out[i] = v.InexactFloat64()
	}
	return out, nil
}

// parzen is a mixture of Gaussians truncated to [lo, hi].
type parzen struct {
	lo, hi  float64
	weights []float64
	comps   []distuv.Normal
	logMass []float64 // log of each component's probability mass inside [lo, hi]
	cdfLo   []float64
	cdfHi   []float64
}

// newParzen fits one component per observation plus a wide prior component
// centred on the interval. Bandwidths follow the distance to the neighbouring
// centres, clipped to [(hi-lo)/min(100, n+1), hi-lo].
func newParzen(obs []float64, lo, hi, priorWeight float64) *parzen {
	width := hi - lo
	prior := lo + width/2

	mus := append(append([]float64(nil), obs...), prior)
	weights := make([]float64, len(mus))
	for i := range obs {
		weights[i] = 1
	}
	weights[len(obs)] = priorWeight

	order := make([]int, len(mus))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return mus[order[a]] < mus[order[b]] })

	minSigma := width / math.Min(100, float64(len(mus)))
	sigmas := make([]float64, len(mus))
	for rank, idx := range order {
		left := mus[idx] - lo
		if rank > 0 {
			left = mus[idx] - mus[order[rank-1]]
		}
		right := hi - mus[idx]
		if rank < len(order)-1 {
			right = mus[order[rank+1]] - mus[idx]
		}
		sigmas[idx] = math.Max(minSigma, math.Min(width, math.Max(left, right)))
	}
	sigmas[len(obs)] = width

	total := 0.0
	for _, w := range weights {
		total += w
	}

	p := &parzen{lo: lo, hi: hi}
	for i, mu := range mus {
		n := distuv.Normal{Mu: mu, Sigma: sigmas[i]}
		cl, ch := n.CDF(lo), n.CDF(hi)
		p.weights = append(p.weights, weights[i]/total)
		p.comps = append(p.comps, n)
		p.cdfLo = append(p.cdfLo, cl)
		p.cdfHi = append(p.cdfHi, ch)
		p.logMass = append(p.logMass, math.Log(math.Max(ch-cl, math.SmallestNonzeroFloat64)))
	}
	return p
}

// sample draws one value by picking a component then inverting its truncated CDF.
func (p *parzen) sample(rng *rand.Rand) float64 {
	u := rng.Float64()
	k := len(p.weights) - 1
	acc := 0.0
	for i, w := range p.weights {
		acc += w
		if u < acc {
			k = i
			break
		}
	}

	q := p.cdfLo[k] + rng.Float64()*(p.cdfHi[k]-p.cdfLo[k])
	x := p.comps[k].Quantile(q)
	if math.IsNaN(x) {
		x = p.comps[k].Mu
	}
	return math.Max(p.lo, math.Min(p.hi, x))
}

// logPdf returns the log density of the truncated mixture at x.
func (p *parzen) logPdf(x float64) float64 {
	terms := make([]float64, len(p.comps))
	maxTerm := math.Inf(-1)
	for i, c := range p.comps {
		terms[i] = math.Log(p.weights[i]) + c.LogProb(x) - p.logMass[i]
		maxTerm = math.Max(maxTerm, terms[i])
	}
	if math.IsInf(maxTerm, -1) {
		return maxTerm
	}
	sum := 0.0
	for _, t := range terms {
		sum += math.Exp(t - maxTerm)
	}
	return maxTerm + math.Log(sum)
}

var _ Sampler = (*TPESampler)(nil)
