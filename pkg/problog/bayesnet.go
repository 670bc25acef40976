package problog

import (
	"fmt"
	"iter"
	"math"

	"go.uber.org/zap"
)

// MaxBodyParents bounds the number of distinct body atoms of one clause;
// the choice table has a row per assignment of them.
const MaxBodyParents = 20

// BNOption configures Bayesian-network compilation.
type BNOption func(*bnCompiler)

// WithStrictBodies makes a body that does not evaluate to a truth value a
// CompilationError. By default the row is logged and set to "no head
// chosen".
func WithStrictBodies(strict bool) BNOption {
	return func(c *bnCompiler) { c.strict = strict }
}

// WithBNLogger sets the logger for compilation.
func WithBNLogger(logger *zap.Logger) BNOption {
	return func(c *bnCompiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type bnCompiler struct {
	strict bool
	logger *zap.Logger
}

// CompileBayesNet translates an acyclic formula into a Bayesian network,
// one choice variable per enumerated clause.
func CompileBayesNet(dag *Formula, opts ...BNOption) (*PGM, error) {
	return CompileClauseViews(dag.EnumClauses(), opts...)
}

// CompileClauseViews translates a clause sequence into a Bayesian network.
//
// Clause i introduces the latent choice variable c<i> with domain
// 0..len(heads), where 0 means no head is chosen, and an OrCPT per head
// making the head true iff c<i> selects it. A clause with a body gets the
// body atoms as parents of c<i>: under an assignment where the body holds
// the row is the head distribution, otherwise c<i> is 0.
func CompileClauseViews(views iter.Seq[ClauseView], opts ...BNOption) (*PGM, error) {
	c := &bnCompiler{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	pgm := NewPGM()
	for view := range views {
		c.logger.Debug("clause", zap.Int("index", view.Index), zap.Stringer("clause", view))
		cpds, err := c.clauseCPDs(view)
		if err != nil {
			return nil, err
		}
		for _, cpd := range cpds {
			pgm.Add(cpd)
		}
	}
	return pgm, nil
}

func (c *bnCompiler) clauseCPDs(view ClauseView) ([]CPD, error) {
	choice := fmt.Sprintf("c%d", view.Index)
	probs := make([]float64, len(view.Heads)+1)
	sum := 0.0
	for i, h := range view.Heads {
		p := 1.0
		if h.Probability != nil {
			v, err := probabilityValue(h.Probability)
			if err != nil {
				return nil, &CompilationError{Clause: view.Index, Err: fmt.Errorf("%w: %s", ErrUnsupportedWeight, h.Probability)}
			}
			p = v
		}
		probs[i+1] = p
		sum += p
	}
	if sum > 1+1e-9 {
		return nil, &CompilationError{Clause: view.Index,
			Err: fmt.Errorf("%w: heads sum to %g", ErrInvalidProbability, sum)}
	}
	probs[0] = residual(sum)

	none := make([]float64, len(probs))
	none[0] = 1

	cpt := &CPT{Variable: choice, Domain: make([]int, len(probs)), Latent: true}
	for i := range cpt.Domain {
		cpt.Domain[i] = i
	}
	if view.Body == nil {
		cpt.Rows = [][]float64{probs}
	} else {
		cpt.Parents = view.Body.Atoms()
		if len(cpt.Parents) > MaxBodyParents {
			return nil, &CompilationError{Clause: view.Index,
				Err: fmt.Errorf("%w: %d body atoms", ErrLimitExceeded, len(cpt.Parents))}
		}
		rows := 1 << len(cpt.Parents)
		cpt.Rows = make([][]float64, rows)
		truth := make(map[string]bool, len(cpt.Parents))
		for r := 0; r < rows; r++ {
			for j, par := range cpt.Parents {
				truth[par] = r&(1<<(len(cpt.Parents)-1-j)) != 0
			}
			holds, err := view.Body.Eval(truth)
			switch {
			case err != nil:
				cerr := &CompilationError{Clause: view.Index, Assignment: copyTruth(truth), Err: err}
				if c.strict {
					return nil, cerr
				}
				c.logger.Error("body is not a truth value",
					zap.Int("clause", view.Index),
					zap.Stringer("body", view.Body),
					zap.Any("assignment", cerr.Assignment),
					zap.Error(err),
				)
				cpt.Rows[r] = none
			case holds:
				cpt.Rows[r] = probs
			default:
				cpt.Rows[r] = none
			}
		}
	}

	out := make([]CPD, 0, len(view.Heads)+1)
	for i, h := range view.Heads {
		out = append(out, &OrCPT{Variable: h.Name, Parents: []ParentValue{{Var: choice, Value: i + 1}}})
	}
	return append(out, cpt), nil
}

// residual is the probability that no head is chosen. Rounding noise
// below zero is clamped.
func residual(sum float64) float64 {
	return math.Max(1-sum, 0)
}

func copyTruth(truth map[string]bool) map[string]bool {
	out := make(map[string]bool, len(truth))
	for k, v := range truth {
		out[k] = v
	}
	return out
}
