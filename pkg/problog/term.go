// Package problog grounds probabilistic logic programs into weighted Boolean
// formulas and evaluates them.
//
// A program is a set of facts and rules, some of them annotated with
// probabilities:
//   - Probabilistic facts: 0.3::burglary.
//   - Annotated disjunctions: 0.2::a ; 0.5::b :- c.
//   - Queries and evidence: query(alarm). evidence(calls(john), true).
//
// The pipeline is sequential and deterministic:
//
//	db, _ := Parse(src)                   // clause database
//	raw, _ := NewEngine().GroundAll(db)   // cyclic weighted formula
//	dag, _ := BreakCycles(raw)            // acyclic formula
//	circuit, _ := EnumCompiler{}.Compile(dag)
//	probs, _ := Evaluate(circuit, ProbabilitySemiring{}, nil)
//
// The acyclic formula can also be translated into a Bayesian network with
// CompileBayesNet.
//
// Every Formula is owned by the grounding run that produced it. Independent
// runs share nothing and may execute on separate goroutines.
package problog

import (
	"fmt"
	"strconv"
	"strings"
)

// Term represents any value in a logic program.
// Terms are immutable once constructed.
type Term interface {
	// String returns the Prolog rendering of the term.
	String() string

	// Equal reports structural identity. It is not unification.
	Equal(other Term) bool

	// IsVar returns true if this term is a logic variable.
	IsVar() bool
}

// Var represents a logic variable.
// Each variable has a unique identifier; the name is only for display.
type Var struct {
	id   int64
	name string
}

// String returns a string representation of the variable.
func (v *Var) String() string {
	if v.name != "" {
		return fmt.Sprintf("_%s_%d", v.name, v.id)
	}
	return fmt.Sprintf("_%d", v.id)
}

// Equal checks if two variables are the same variable.
func (v *Var) Equal(other Term) bool {
	if o, ok := other.(*Var); ok {
		return v.id == o.id
	}
	return false
}

// IsVar always returns true for variables.
func (v *Var) IsVar() bool { return true }

// ID returns the unique identifier of the variable.
func (v *Var) ID() int64 { return v.id }

// Name returns the source name of the variable, if any.
func (v *Var) Name() string { return v.name }

// Atom is a symbolic constant such as alice or '[]'.
type Atom struct {
	name string
}

// NewAtom creates an atom with the given name.
func NewAtom(name string) *Atom {
	return &Atom{name: name}
}

// String renders the atom, quoting it when needed.
func (a *Atom) String() string { return quoteAtom(a.name) }

// Equal checks if two atoms have the same name.
func (a *Atom) Equal(other Term) bool {
	if o, ok := other.(*Atom); ok {
		return a.name == o.name
	}
	return false
}

// IsVar always returns false for atoms.
func (a *Atom) IsVar() bool { return false }

// Name returns the atom's name without quotes.
func (a *Atom) Name() string { return a.name }

// Number is a numeric constant. Integers and floats are distinct:
// 1 and 1.0 are not structurally equal, although they compare equal
// arithmetically.
type Number struct {
	f     float64
	i     int64
	isInt bool
}

// NewInt creates an integer constant.
func NewInt(i int64) *Number {
	return &Number{i: i, f: float64(i), isInt: true}
}

// NewFloat creates a floating point constant.
func NewFloat(f float64) *Number {
	return &Number{f: f}
}

// String renders the number. Floats always carry a decimal point.
func (n *Number) String() string {
	if n.isInt {
		return strconv.FormatInt(n.i, 10)
	}
	s := strconv.FormatFloat(n.f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// Equal checks numeric kind and value.
func (n *Number) Equal(other Term) bool {
	o, ok := other.(*Number)
	if !ok || n.isInt != o.isInt {
		return false
	}
	if n.isInt {
		return n.i == o.i
	}
	return n.f == o.f
}

// IsVar always returns false for numbers.
func (n *Number) IsVar() bool { return false }

// Float returns the value as a float64.
func (n *Number) Float() float64 { return n.f }

// Int returns the integer value. Only meaningful when IsInt is true.
func (n *Number) Int() int64 { return n.i }

// IsInt reports whether the number is an integer.
func (n *Number) IsInt() bool { return n.isInt }

// Compound is a functor applied to one or more argument terms.
type Compound struct {
	functor string
	args    []Term
}

// NewCompound creates a compound term. With no arguments it degenerates
// to an atom, matching Prolog where a/0 is the atom a.
func NewCompound(functor string, args ...Term) Term {
	if len(args) == 0 {
		return NewAtom(functor)
	}
	return &Compound{functor: functor, args: args}
}

// Functor returns the functor name.
func (c *Compound) Functor() string { return c.functor }

// Args returns the argument slice. Callers must not modify it.
func (c *Compound) Args() []Term { return c.args }

// Arity returns the number of arguments.
func (c *Compound) Arity() int { return len(c.args) }

// Arg returns the i-th argument (0-based).
func (c *Compound) Arg(i int) Term { return c.args[i] }

// IsVar always returns false for compounds.
func (c *Compound) IsVar() bool { return false }

// Equal checks structural identity of functor and arguments.
func (c *Compound) Equal(other Term) bool {
	o, ok := other.(*Compound)
	if !ok || c.functor != o.functor || len(c.args) != len(o.args) {
		return false
	}
	for i := range c.args {
		if !c.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return true
}

// String renders the compound in Prolog syntax. Lists and a small set of
// operators are printed in their usual notation.
func (c *Compound) String() string {
	if c.functor == "." && len(c.args) == 2 {
		return listString(c)
	}
	if len(c.args) == 2 {
		if op, ok := infixOperators[c.functor]; ok {
			return operandString(c.args[0], c.functor) + op + operandString(c.args[1], c.functor)
		}
	}
	if len(c.args) == 1 {
		switch c.functor {
		case `\+`:
			return `\+` + c.args[0].String()
		case "-":
			if _, ok := c.args[0].(*Number); !ok {
				return "-" + c.args[0].String()
			}
		}
	}
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.String()
	}
	return quoteAtom(c.functor) + "(" + strings.Join(parts, ",") + ")"
}

var infixOperators = map[string]string{
	"=": "=", `\=`: `\=`, "==": "==", `\==`: `\==`,
	"<": "<", ">": ">", "=<": "=<", ">=": ">=", "=:=": "=:=", `=\=`: `=\=`,
	"+": "+", "-": "-", "*": "*", "/": "/", "//": "//", "**": "**", "^": "^",
	"is": " is ", "mod": " mod ", "~": "~",
	",": ",", ";": ";", "->": "->", "::": "::", ":-": " :- ",
}

// operandString renders an operand of an infix operator, parenthesized
// when it binds looser than its parent.
func operandString(arg Term, parent string) string {
	c, ok := arg.(*Compound)
	if !ok || len(c.args) != 2 {
		return arg.String()
	}
	inner, ok := infixOps[c.functor]
	if !ok || inner.priority <= infixOps[parent].priority {
		return arg.String()
	}
	return "(" + arg.String() + ")"
}

func listString(c *Compound) string {
	var sb strings.Builder
	sb.WriteByte('[')
	var t Term = c
	first := true
	for {
		cell, ok := t.(*Compound)
		if !ok || cell.functor != "." || len(cell.args) != 2 {
			break
		}
		if !first {
			sb.WriteByte(',')
		}
		sb.WriteString(cell.args[0].String())
		first = false
		t = cell.args[1]
	}
	if a, ok := t.(*Atom); !ok || a.name != "[]" {
		sb.WriteByte('|')
		sb.WriteString(t.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// Nil is the empty list.
var Nil = NewAtom("[]")

// List builds a proper list from the given elements.
func List(elems ...Term) Term {
	var out Term = Nil
	for i := len(elems) - 1; i >= 0; i-- {
		out = &Compound{functor: ".", args: []Term{elems[i], out}}
	}
	return out
}

// Indicator returns the functor name and arity of a callable term.
// Numbers and variables are not callable.
func Indicator(t Term) (string, int, bool) {
	switch v := t.(type) {
	case *Atom:
		return v.name, 0, true
	case *Compound:
		return v.functor, len(v.args), true
	default:
		return "", 0, false
	}
}

func quoteAtom(name string) string {
	if name == "[]" || name == "!" || name == ";" || name == "," {
		return name
	}
	if name == "" {
		return "''"
	}
	if isLowerIdent(name) || isSymbolic(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", `\'`) + "'"
}

func isLowerIdent(s string) bool {
	for i, r := range s {
		switch {
		case i == 0 && !(r >= 'a' && r <= 'z'):
			return false
		case !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'):
			return false
		}
	}
	return true
}

const symbolChars = `+-*/\^<>=~:.?@#&$`

func isSymbolic(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(symbolChars, r) {
			return false
		}
	}
	return true
}
