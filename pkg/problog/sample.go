package problog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// World is one sampled possible world: the truth value of every query.
type World map[string]bool

// sampler draws possible worlds of an acyclic formula.
type sampler struct {
	dag      *Formula
	probs    map[NodeID]float64
	groups   []*ChoiceGroup
	queries  []Label
	evidence []Label
}

func newSampler(dag *Formula) (*sampler, error) {
	s := &sampler{dag: dag, probs: make(map[NodeID]float64), queries: dag.Queries(), evidence: dag.Evidence()}
	for id := range dag.nodes {
		n := &dag.nodes[id]
		if n.Kind != NodeAtom {
			continue
		}
		p, err := numericWeight(n.Atom.Probability)
		if err != nil {
			return nil, fmt.Errorf("atom %s: %w", n.Atom.Name, err)
		}
		s.probs[NodeID(id)] = p
	}
	for _, g := range dag.groups {
		if len(g.Atoms) > 0 {
			s.groups = append(s.groups, g)
		}
	}
	return s, nil
}

// draw samples one world into vals and reports whether it satisfies the
// evidence.
func (s *sampler) draw(rng *rand.Rand, vals []bool) bool {
	vals[0] = true
	for _, g := range s.groups {
		u := rng.Float64()
		chosen := NodeID(-1)
		for _, m := range g.Atoms {
			if u < s.probs[m] {
				chosen = m
				break
			}
			u -= s.probs[m]
		}
		for _, m := range g.Atoms {
			vals[m] = m == chosen
		}
	}
	for id := 1; id < len(s.dag.nodes); id++ {
		n := &s.dag.nodes[id]
		switch n.Kind {
		case NodeAtom:
			if n.Atom.Group != NoGroup {
				continue
			}
			vals[id] = !n.Atom.IsProbabilistic() || rng.Float64() < s.probs[NodeID(id)]
		case NodeAnd:
			v := true
			for _, c := range n.Children {
				if !refValue(vals, c) {
					v = false
					break
				}
			}
			vals[id] = v
		case NodeOr:
			v := false
			for _, c := range n.Children {
				if refValue(vals, c) {
					v = true
					break
				}
			}
			vals[id] = v
		}
	}
	for _, l := range s.evidence {
		if !refValue(vals, l.Condition()) {
			return false
		}
	}
	return true
}

func refValue(vals []bool, r Ref) bool {
	return vals[r.Node()] != r.Negated()
}

func (s *sampler) world(vals []bool) World {
	w := make(World, len(s.queries))
	for _, q := range s.queries {
		w[q.Name.String()] = refValue(vals, q.Ref)
	}
	return w
}

// Sample draws n worlds from an acyclic formula with the given seed and
// returns those consistent with the evidence.
func Sample(dag *Formula, n int, seed uint64) ([]World, error) {
	s, err := newSampler(dag)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, 0))
	vals := make([]bool, dag.Len())
	var out []World
	for i := 0; i < n; i++ {
		if s.draw(rng, vals) {
			out = append(out, s.world(vals))
		}
	}
	return out, nil
}

// EstimateOptions configures Monte-Carlo estimation.
type EstimateOptions struct {
	// Trials is the total number of sampled worlds
	Trials int
	// Seed makes the estimate reproducible for a fixed worker count
	Seed uint64
	// Workers splits the trials (0 = number of CPUs)
	Workers int
	Logger  *zap.Logger
}

// EstimateResult holds query frequencies among the accepted worlds.
type EstimateResult struct {
	Probabilities map[string]float64
	Trials        int
	Accepted      int
}

// Estimate approximates the query probabilities of an acyclic formula by
// rejection sampling. Worker i draws its share of the trials from a
// generator seeded with (Seed, i).
func Estimate(ctx context.Context, dag *Formula, opts EstimateOptions) (*EstimateResult, error) {
	s, err := newSampler(dag)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > opts.Trials && opts.Trials > 0 {
		workers = opts.Trials
	}
	defer StartTimer(logger, "estimate")()

	type tally struct {
		accepted int
		counts   []int
	}
	tallies := make([]tally, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		share := opts.Trials / workers
		if w < opts.Trials%workers {
			share++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(w)))
			vals := make([]bool, dag.Len())
			t := tally{counts: make([]int, len(s.queries))}
			for i := 0; i < share; i++ {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if !s.draw(rng, vals) {
					continue
				}
				t.accepted++
				for j, q := range s.queries {
					if refValue(vals, q.Ref) {
						t.counts[j]++
					}
				}
			}
			tallies[w] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &EstimateResult{Probabilities: make(map[string]float64, len(s.queries)), Trials: opts.Trials}
	counts := make([]int, len(s.queries))
	for _, t := range tallies {
		res.Accepted += t.accepted
		for j, c := range t.counts {
			counts[j] += c
		}
	}
	if res.Accepted == 0 && len(s.evidence) > 0 {
		return nil, fmt.Errorf("%w: no sample satisfies the evidence", ErrInconsistentEvidence)
	}
	for j, q := range s.queries {
		if res.Accepted > 0 {
			res.Probabilities[q.Name.String()] = float64(counts[j]) / float64(res.Accepted)
		}
	}
	logger.Debug("estimated",
		zap.Int("trials", res.Trials),
		zap.Int("accepted", res.Accepted),
		zap.Int("workers", workers),
	)
	return res, nil
}
