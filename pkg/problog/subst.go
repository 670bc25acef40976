package problog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Variable counter for generating unique variable IDs
var varCounter int64

// Fresh creates a new logic variable with an optional name for debugging.
// IDs are globally unique, so concurrent grounding runs never collide.
func Fresh(name string) *Var {
	id := atomic.AddInt64(&varCounter, 1)
	return &Var{id: id, name: name}
}

// Substitution maps variables to terms. It is persistent: Bind returns a
// new substitution and leaves the receiver untouched, which lets the
// grounder keep one substitution per alternative without undo trails.
type Substitution struct {
	bindings map[int64]Term
}

// NewSubstitution creates an empty substitution.
func NewSubstitution() *Substitution {
	return &Substitution{bindings: make(map[int64]Term)}
}

// Lookup returns the term bound to a variable, or nil if unbound.
func (s *Substitution) Lookup(v *Var) Term {
	return s.bindings[v.id]
}

// Bind creates a new substitution with an additional binding.
func (s *Substitution) Bind(v *Var, term Term) *Substitution {
	if tv, ok := term.(*Var); ok && tv.id == v.id {
		return s
	}
	next := make(map[int64]Term, len(s.bindings)+1)
	for k, t := range s.bindings {
		next[k] = t
	}
	next[v.id] = term
	return &Substitution{bindings: next}
}

// Walk follows variable bindings until it reaches a non-variable or an
// unbound variable.
func (s *Substitution) Walk(term Term) Term {
	for {
		v, ok := term.(*Var)
		if !ok {
			return term
		}
		bound := s.bindings[v.id]
		if bound == nil {
			return term
		}
		term = bound
	}
}

// Resolve applies the substitution to every position of term.
func (s *Substitution) Resolve(term Term) Term {
	t := s.Walk(term)
	c, ok := t.(*Compound)
	if !ok {
		return t
	}
	var args []Term
	for i, a := range c.args {
		r := s.Resolve(a)
		if args == nil && r != a {
			args = make([]Term, len(c.args))
			copy(args, c.args[:i])
		}
		if args != nil {
			args[i] = r
		}
	}
	if args == nil {
		return c
	}
	return &Compound{functor: c.functor, args: args}
}

// Size returns the number of bindings in the substitution.
func (s *Substitution) Size() int { return len(s.bindings) }

// String returns a string representation of the substitution.
func (s *Substitution) String() string {
	if len(s.bindings) == 0 {
		return "{}"
	}
	ids := make([]int64, 0, len(s.bindings))
	for id := range s.bindings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("_%d=%s", id, s.bindings[id])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Unify attempts to make two terms identical by binding variables.
// It returns the extended substitution and true on success.
//
// Unification Rules:
//   - Var with anything: binds the variable
//   - Atom/Number: succeed on structural equality
//   - Compound: same functor and arity, arguments unified left to right
//
// There is no occurs check, as in standard Prolog.
func Unify(a, b Term, s *Substitution) (*Substitution, bool) {
	a = s.Walk(a)
	b = s.Walk(b)

	if av, ok := a.(*Var); ok {
		if bv, ok := b.(*Var); ok && av.id == bv.id {
			return s, true
		}
		return s.Bind(av, b), true
	}
	if bv, ok := b.(*Var); ok {
		return s.Bind(bv, a), true
	}

	ac, aok := a.(*Compound)
	bc, bok := b.(*Compound)
	if aok != bok {
		return s, false
	}
	if !aok {
		return s, a.Equal(b)
	}
	if ac.functor != bc.functor || len(ac.args) != len(bc.args) {
		return s, false
	}
	cur := s
	for i := range ac.args {
		var ok bool
		cur, ok = Unify(ac.args[i], bc.args[i], cur)
		if !ok {
			return s, false
		}
	}
	return cur, true
}

// IsGround reports whether term contains no variables. Callers resolve
// the term first when bindings matter.
func IsGround(term Term) bool {
	switch t := term.(type) {
	case *Var:
		return false
	case *Compound:
		for _, a := range t.args {
			if !IsGround(a) {
				return false
			}
		}
	}
	return true
}

// Rename returns a copy of term with every variable replaced by a fresh
// one. The varMap keeps shared variables shared across several calls, so a
// clause head and body renamed with the same map stay linked.
func Rename(term Term, varMap map[int64]*Var) Term {
	switch t := term.(type) {
	case *Var:
		if fresh, ok := varMap[t.id]; ok {
			return fresh
		}
		fresh := Fresh(t.name)
		varMap[t.id] = fresh
		return fresh
	case *Compound:
		args := make([]Term, len(t.args))
		for i, a := range t.args {
			args[i] = Rename(a, varMap)
		}
		return &Compound{functor: t.functor, args: args}
	default:
		return term
	}
}

// VariantKey returns a canonical string for term in which variables are
// replaced by X0, X1, ... in order of first occurrence. Two terms have the
// same key iff they are variants of each other.
//
// Example:
//
//	x := Fresh("x")
//	VariantKey(NewCompound("path", x, NewAtom("a"), x)) // "path(X0,a,X0)"
func VariantKey(term Term) string {
	var sb strings.Builder
	varMap := make(map[int64]int)
	writeVariant(&sb, term, varMap)
	return sb.String()
}

func writeVariant(sb *strings.Builder, term Term, varMap map[int64]int) {
	switch t := term.(type) {
	case *Var:
		pos, ok := varMap[t.id]
		if !ok {
			pos = len(varMap)
			varMap[t.id] = pos
		}
		sb.WriteString("X")
		sb.WriteString(strconv.Itoa(pos))
	case *Compound:
		sb.WriteString(quoteAtom(t.functor))
		sb.WriteByte('(')
		for i, a := range t.args {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeVariant(sb, a, varMap)
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(term.String())
	}
}
