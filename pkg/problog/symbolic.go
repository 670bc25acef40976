package problog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type exprOp int

const (
	exprConst exprOp = iota
	exprParam
	exprAdd
	exprMul
	exprSub
	exprDiv
	exprNeg
)

// Expr is an arithmetic expression over named parameters. Every
// expression carries the sorted set of parameters it mentions.
// Constructors fold constant operands.
type Expr struct {
	op     exprOp
	value  float64
	name   string
	args   []*Expr
	params []string
}

// Const returns a numeric constant.
func Const(v float64) *Expr { return &Expr{op: exprConst, value: v} }

// Param returns a named parameter.
func Param(name string) *Expr {
	return &Expr{op: exprParam, name: name, params: []string{name}}
}

func binary(op exprOp, a, b *Expr) *Expr {
	return &Expr{op: op, args: []*Expr{a, b}, params: mergeParams(a.params, b.params)}
}

func mergeParams(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// Add returns a + b.
func Add(a, b *Expr) *Expr {
	switch {
	case a.isConst(0):
		return b
	case b.isConst(0):
		return a
	case a.op == exprConst && b.op == exprConst:
		return Const(a.value + b.value)
	}
	return binary(exprAdd, a, b)
}

// Mul returns a * b.
func Mul(a, b *Expr) *Expr {
	switch {
	case a.isConst(0) || b.isConst(0):
		return Const(0)
	case a.isConst(1):
		return b
	case b.isConst(1):
		return a
	case a.op == exprConst && b.op == exprConst:
		return Const(a.value * b.value)
	}
	return binary(exprMul, a, b)
}

// Sub returns a - b.
func Sub(a, b *Expr) *Expr {
	switch {
	case b.isConst(0):
		return a
	case a.op == exprConst && b.op == exprConst:
		return Const(a.value - b.value)
	}
	return binary(exprSub, a, b)
}

// Div returns a / b.
func Div(a, b *Expr) *Expr {
	switch {
	case b.isConst(1):
		return a
	case a.isConst(0):
		return Const(0)
	case a.op == exprConst && b.op == exprConst && b.value != 0:
		return Const(a.value / b.value)
	}
	return binary(exprDiv, a, b)
}

// Neg returns -a.
func Neg(a *Expr) *Expr {
	if a.op == exprConst {
		return Const(-a.value)
	}
	return &Expr{op: exprNeg, args: []*Expr{a}, params: a.params}
}

func (e *Expr) isConst(v float64) bool { return e.op == exprConst && e.value == v }

// Params returns the parameter names the expression depends on, sorted.
func (e *Expr) Params() []string { return e.params }

// Value returns the value of a constant expression.
func (e *Expr) Value() (float64, bool) { return e.value, e.op == exprConst }

// Eval computes the expression with parameters bound by env.
func (e *Expr) Eval(env map[string]float64) (float64, error) {
	switch e.op {
	case exprConst:
		return e.value, nil
	case exprParam:
		v, ok := env[e.name]
		if !ok {
			return 0, fmt.Errorf("unbound parameter %s", e.name)
		}
		return v, nil
	case exprNeg:
		v, err := e.args[0].Eval(env)
		return -v, err
	}
	a, err := e.args[0].Eval(env)
	if err != nil {
		return 0, err
	}
	b, err := e.args[1].Eval(env)
	if err != nil {
		return 0, err
	}
	switch e.op {
	case exprAdd:
		return a + b, nil
	case exprMul:
		return a * b, nil
	case exprSub:
		return a - b, nil
	default:
		if b == 0 {
			return 0, fmt.Errorf("%w: division by zero", ErrArithmetic)
		}
		return a / b, nil
	}
}

func (e *Expr) String() string {
	var sb strings.Builder
	e.write(&sb, 0)
	return sb.String()
}

// write renders e, parenthesized when its precedence is below prec.
func (e *Expr) write(sb *strings.Builder, prec int) {
	switch e.op {
	case exprConst:
		sb.WriteString(strconv.FormatFloat(e.value, 'g', -1, 64))
		return
	case exprParam:
		sb.WriteString(e.name)
		return
	case exprNeg:
		sb.WriteByte('-')
		e.args[0].write(sb, 3)
		return
	}
	own, sym := 1, " + "
	switch e.op {
	case exprSub:
		sym = " - "
	case exprMul:
		own, sym = 2, "*"
	case exprDiv:
		own, sym = 2, "/"
	}
	if own < prec {
		sb.WriteByte('(')
	}
	e.args[0].write(sb, own)
	sb.WriteString(sym)
	// Right operands of - and / bind tighter.
	right := own
	if e.op == exprSub || e.op == exprDiv {
		right++
	}
	e.args[1].write(sb, right)
	if own < prec {
		sb.WriteByte(')')
	}
}

// SymbolicSemiring keeps weights as expressions, so results can be
// evaluated later for different parameter values. Non-numeric annotations
// become parameters named after the annotation term.
type SymbolicSemiring struct{}

func (SymbolicSemiring) One() *Expr { return Const(1) }
func (SymbolicSemiring) Zero() *Expr { return Const(0) }
func (SymbolicSemiring) Plus(a, b *Expr) *Expr { return Add(a, b) }
func (SymbolicSemiring) Times(a, b *Expr) *Expr { return Mul(a, b) }
func (SymbolicSemiring) Negate(a *Expr) *Expr { return Sub(Const(1), a) }
func (SymbolicSemiring) Normalize(a, z *Expr) *Expr { return Div(a, z) }
func (SymbolicSemiring) IsZero(a *Expr) bool { return a.isConst(0) }

func (SymbolicSemiring) Value(t Term) (*Expr, error) {
	if t == nil {
		return Const(1), nil
	}
	if p, err := probabilityValue(t); err == nil {
		return Const(p), nil
	}
	return Param(t.String()), nil
}
