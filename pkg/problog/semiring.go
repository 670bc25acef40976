package problog

import (
	"fmt"
	"math"
)

// Semiring is the weight algebra of an evaluation. Plus combines
// alternatives, Times combines conjuncts and Negate gives the weight of
// the complement of an atom.
type Semiring[W any] interface {
	One() W
	Zero() W
	Plus(a, b W) W
	Times(a, b W) W
	Negate(a W) W
	// Value converts a probability annotation into a weight.
	Value(t Term) (W, error)
	// Normalize divides a by the evidence weight z.
	Normalize(a, z W) W
	IsZero(a W) bool
}

// ProbabilitySemiring computes with plain probabilities.
type ProbabilitySemiring struct{}

func (ProbabilitySemiring) One() float64 { return 1 }
func (ProbabilitySemiring) Zero() float64 { return 0 }
func (ProbabilitySemiring) Plus(a, b float64) float64 { return a + b }
func (ProbabilitySemiring) Times(a, b float64) float64 { return a * b }
func (ProbabilitySemiring) Negate(a float64) float64 { return 1 - a }
func (ProbabilitySemiring) IsZero(a float64) bool { return a == 0 }
func (ProbabilitySemiring) Normalize(a, z float64) float64 { return a / z }

func (ProbabilitySemiring) Value(t Term) (float64, error) {
	return numericWeight(t)
}

// LogProbabilitySemiring computes with natural logarithms of
// probabilities. Conjunction adds, disjunction is log-sum-exp.
type LogProbabilitySemiring struct{}

func (LogProbabilitySemiring) One() float64 { return 0 }
func (LogProbabilitySemiring) Zero() float64 { return math.Inf(-1) }
func (LogProbabilitySemiring) Times(a, b float64) float64 { return a + b }
func (LogProbabilitySemiring) IsZero(a float64) bool { return math.IsInf(a, -1) }
func (LogProbabilitySemiring) Normalize(a, z float64) float64 {
	return a - z
}

func (LogProbabilitySemiring) Plus(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

func (LogProbabilitySemiring) Negate(a float64) float64 {
	if a >= 0 {
		return math.Inf(-1)
	}
	return math.Log1p(-math.Exp(a))
}

func (LogProbabilitySemiring) Value(t Term) (float64, error) {
	p, err := numericWeight(t)
	if err != nil {
		return 0, err
	}
	return math.Log(p), nil
}

func numericWeight(t Term) (float64, error) {
	if t == nil {
		return 1, nil
	}
	p, err := probabilityValue(t)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedWeight, t)
	}
	return p, nil
}
