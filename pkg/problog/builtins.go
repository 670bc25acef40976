package problog

import (
	"fmt"
	"math"
)

// Builtin resolves a goal without clause lookup. It returns one result per
// solution; a result's Ref is the condition under which the solution
// holds, True for crisp builtins.
type Builtin func(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error)

// BuiltinResult is one solution of a builtin call.
type BuiltinResult struct {
	Subst *Substitution
	Ref   Ref
}

// BuiltinContext gives builtins access to the formula under construction.
type BuiltinContext struct {
	Goal    Term
	formula *Formula
	keep    bool
}

// Succeed returns a single crisp solution. With KeepAll set and builtins
// not hidden, the solution is recorded as a deterministic atom.
func (c *BuiltinContext) Succeed(s *Substitution) []BuiltinResult {
	ref := True
	if c.keep {
		name := s.Resolve(c.Goal)
		ref = c.formula.AddAtom(AtomInfo{Key: "builtin:" + name.String(), Name: name, Group: NoGroup, Clause: -1})
	}
	return []BuiltinResult{{Subst: s, Ref: ref}}
}

// Weighted returns a solution that holds with probability p. Certain
// outcomes are folded to crisp success or failure.
func (c *BuiltinContext) Weighted(s *Substitution, p float64) []BuiltinResult {
	switch {
	case p <= 0:
		return nil
	case p >= 1:
		return c.Succeed(s)
	}
	name := s.Resolve(c.Goal)
	ref := c.formula.AddAtom(AtomInfo{
		Key:         "builtin:" + name.String(),
		Name:        name,
		Probability: NewFloat(p),
		Group:       NoGroup,
		Clause:      -1,
	})
	return []BuiltinResult{{Subst: s, Ref: ref}}
}

// BuiltinTable maps name/arity to a builtin implementation.
type BuiltinTable map[string]Builtin

// Register adds or replaces a builtin.
func (t BuiltinTable) Register(name string, arity int, b Builtin) {
	t[indicatorKey(name, arity)] = b
}

// Lookup finds the builtin for name/arity.
func (t BuiltinTable) Lookup(name string, arity int) (Builtin, bool) {
	b, ok := t[indicatorKey(name, arity)]
	return b, ok
}

// Clone returns an independent copy of the table.
func (t BuiltinTable) Clone() BuiltinTable {
	out := make(BuiltinTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// DefaultBuiltins returns the crisp builtin table.
func DefaultBuiltins() BuiltinTable {
	t := BuiltinTable{}
	t.Register("=", 2, builtinUnify)
	t.Register(`\=`, 2, builtinNotUnify)
	t.Register("==", 2, builtinIdentical(true))
	t.Register(`\==`, 2, builtinIdentical(false))
	t.Register("is", 2, builtinIs)
	for _, op := range []string{"<", ">", "=<", ">=", "=:=", `=\=`} {
		t.Register(op, 2, builtinCompare(op))
	}
	t.Register("var", 1, typeTest(func(x Term) bool { return x.IsVar() }))
	t.Register("nonvar", 1, typeTest(func(x Term) bool { return !x.IsVar() }))
	t.Register("atom", 1, typeTest(func(x Term) bool { _, ok := x.(*Atom); return ok }))
	t.Register("number", 1, typeTest(func(x Term) bool { _, ok := x.(*Number); return ok }))
	t.Register("integer", 1, typeTest(func(x Term) bool { n, ok := x.(*Number); return ok && n.isInt }))
	t.Register("float", 1, typeTest(func(x Term) bool { n, ok := x.(*Number); return ok && !n.isInt }))
	t.Register("atomic", 1, typeTest(func(x Term) bool {
		switch x.(type) {
		case *Atom, *Number:
			return true
		}
		return false
	}))
	t.Register("compound", 1, typeTest(func(x Term) bool { _, ok := x.(*Compound); return ok }))
	t.Register("callable", 1, typeTest(func(x Term) bool {
		switch x.(type) {
		case *Atom, *Compound:
			return true
		}
		return false
	}))
	t.Register("ground", 1, typeTest(IsGround))
	t.Register("between", 3, builtinBetween)
	t.Register("observation_builtin", 2, builtinObservationCrisp)
	return t
}

// ProbabilisticBuiltins returns the table of the probabilistic engine
// variant: comparisons against distribution terms normal(M,S) and
// uniform(L,H) yield weighted atoms, and observation_builtin/2 yields a
// likelihood-weighted atom.
func ProbabilisticBuiltins() BuiltinTable {
	t := DefaultBuiltins()
	for _, op := range []string{"<", ">", "=<", ">=", "=:=", `=\=`} {
		t.Register(op, 2, probabilisticCompare(op))
	}
	t.Register("observation_builtin", 2, builtinObservationDensity)
	return t
}

func builtinUnify(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
	if s2, ok := Unify(args[0], args[1], s); ok {
		return ctx.Succeed(s2), nil
	}
	return nil, nil
}

func builtinNotUnify(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
	if _, ok := Unify(args[0], args[1], s); ok {
		return nil, nil
	}
	return ctx.Succeed(s), nil
}

func builtinIdentical(want bool) Builtin {
	return func(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
		if s.Resolve(args[0]).Equal(s.Resolve(args[1])) == want {
			return ctx.Succeed(s), nil
		}
		return nil, nil
	}
}

func builtinIs(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
	n, err := EvalNumber(args[1], s)
	if err != nil {
		return nil, err
	}
	if s2, ok := Unify(args[0], n, s); ok {
		return ctx.Succeed(s2), nil
	}
	return nil, nil
}

func compareHolds(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "=<":
		return c <= 0
	case ">=":
		return c >= 0
	case "=:=":
		return c == 0
	default:
		return c != 0
	}
}

func builtinCompare(op string) Builtin {
	return func(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
		x, err := EvalNumber(args[0], s)
		if err != nil {
			return nil, err
		}
		y, err := EvalNumber(args[1], s)
		if err != nil {
			return nil, err
		}
		if compareHolds(op, compareNumbers(x, y)) {
			return ctx.Succeed(s), nil
		}
		return nil, nil
	}
}

func typeTest(pred func(Term) bool) Builtin {
	return func(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
		if pred(s.Resolve(args[0])) {
			return ctx.Succeed(s), nil
		}
		return nil, nil
	}
}

func builtinBetween(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
	lo, err := EvalNumber(args[0], s)
	if err != nil {
		return nil, err
	}
	hi, err := EvalNumber(args[1], s)
	if err != nil {
		return nil, err
	}
	if !lo.isInt || !hi.isInt {
		return nil, fmt.Errorf("%w: between/3 expects integers", ErrArithmetic)
	}
	if x, ok := s.Walk(args[2]).(*Number); ok {
		if x.isInt && x.i >= lo.i && x.i <= hi.i {
			return ctx.Succeed(s), nil
		}
		return nil, nil
	}
	var out []BuiltinResult
	for i := lo.i; i <= hi.i; i++ {
		if s2, ok := Unify(args[2], NewInt(i), s); ok {
			out = append(out, ctx.Succeed(s2)...)
		}
	}
	return out, nil
}

func builtinObservationCrisp(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
	x, v := s.Resolve(args[0]), s.Resolve(args[1])
	if x.Equal(v) {
		return ctx.Succeed(s), nil
	}
	xn, ok1 := x.(*Number)
	vn, ok2 := v.(*Number)
	if ok1 && ok2 && compareNumbers(xn, vn) == 0 {
		return ctx.Succeed(s), nil
	}
	return nil, nil
}

// distribution is a closed-form univariate distribution term.
type distribution struct {
	kind string
	a, b float64
}

func asDistribution(t Term, s *Substitution) (distribution, bool, error) {
	c, ok := s.Walk(t).(*Compound)
	if !ok || len(c.args) != 2 || (c.functor != "normal" && c.functor != "uniform") {
		return distribution{}, false, nil
	}
	a, err := EvalNumber(c.args[0], s)
	if err != nil {
		return distribution{}, true, err
	}
	b, err := EvalNumber(c.args[1], s)
	if err != nil {
		return distribution{}, true, err
	}
	d := distribution{kind: c.functor, a: a.f, b: b.f}
	if (d.kind == "normal" && d.b <= 0) || (d.kind == "uniform" && d.b <= d.a) {
		return distribution{}, true, fmt.Errorf("%w: degenerate distribution %v", ErrArithmetic, c)
	}
	return d, true, nil
}

func (d distribution) cdf(x float64) float64 {
	if d.kind == "normal" {
		return 0.5 * (1 + math.Erf((x-d.a)/(d.b*math.Sqrt2)))
	}
	return math.Max(0, math.Min(1, (x-d.a)/(d.b-d.a)))
}

func (d distribution) pdf(x float64) float64 {
	if d.kind == "normal" {
		z := (x - d.a) / d.b
		return math.Exp(-0.5*z*z) / (d.b * math.Sqrt(2*math.Pi))
	}
	if x < d.a || x > d.b {
		return 0
	}
	return 1 / (d.b - d.a)
}

// mirror swaps the operands of a comparison: a < b is b > a.
func mirror(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "=<":
		return ">="
	case ">=":
		return "=<"
	}
	return op
}

func probabilisticCompare(op string) Builtin {
	crisp := builtinCompare(op)
	return func(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
		dx, okx, err := asDistribution(args[0], s)
		if err != nil {
			return nil, err
		}
		dy, oky, err := asDistribution(args[1], s)
		if err != nil {
			return nil, err
		}
		switch {
		case !okx && !oky:
			return crisp(ctx, args, s)
		case okx && oky:
			return nil, fmt.Errorf("%w: comparison between two distributions", ErrArithmetic)
		}
		d, other, cmp := dx, args[1], op
		if oky {
			d, other, cmp = dy, args[0], mirror(op)
		}
		n, err := EvalNumber(other, s)
		if err != nil {
			return nil, err
		}
		var p float64
		switch cmp {
		case "<", "=<":
			p = d.cdf(n.f)
		case ">", ">=":
			p = 1 - d.cdf(n.f)
		case "=:=":
			p = 0
		default:
			p = 1
		}
		return ctx.Weighted(s, p), nil
	}
}

func builtinObservationDensity(ctx *BuiltinContext, args []Term, s *Substitution) ([]BuiltinResult, error) {
	d, ok, err := asDistribution(args[0], s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return builtinObservationCrisp(ctx, args, s)
	}
	v, err := EvalNumber(args[1], s)
	if err != nil {
		return nil, err
	}
	density := d.pdf(v.f)
	if density <= 0 {
		return nil, nil
	}
	name := s.Resolve(ctx.Goal)
	// Densities are likelihoods and may exceed 1, so they bypass the
	// probability folding of Weighted.
	ref := ctx.formula.AddAtom(AtomInfo{
		Key:         "builtin:" + name.String(),
		Name:        name,
		Probability: NewFloat(density),
		Group:       NoGroup,
		Clause:      -1,
	})
	return []BuiltinResult{{Subst: s, Ref: ref}}, nil
}
