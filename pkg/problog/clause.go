package problog

import (
	"strings"
)

// ClauseKind is the closed set of clause shapes a program may contain.
type ClauseKind int

const (
	// KindFact is a head without a body, possibly probabilistic: p::h.
	KindFact ClauseKind = iota
	// KindRule is a single head with a body, possibly probabilistic: p::h :- b.
	KindRule
	// KindDisjunction is an annotated disjunction with one or more
	// mutually exclusive heads and an optional body: p1::h1 ; p2::h2 :- b.
	KindDisjunction
)

func (k ClauseKind) String() string {
	switch k {
	case KindFact:
		return "fact"
	case KindRule:
		return "rule"
	case KindDisjunction:
		return "disjunction"
	default:
		return "unknown"
	}
}

// Head is one head atom with its annotation. A nil Probability marks a
// deterministic head.
type Head struct {
	Term        Term
	Probability Term
}

func (h Head) String() string {
	if h.Probability == nil {
		return h.Term.String()
	}
	return h.Probability.String() + "::" + h.Term.String()
}

// Clause is one program clause. Body is nil for facts and for
// disjunctions without a body. Index is the position in the database and
// is assigned by ClauseDB.Add.
type Clause struct {
	Kind  ClauseKind
	Heads []Head
	Body  Term
	Index int
}

// NewFact builds a fact clause. prob may be nil.
func NewFact(head Term, prob Term) *Clause {
	return &Clause{Kind: KindFact, Heads: []Head{{Term: head, Probability: prob}}}
}

// NewRule builds a rule clause. prob may be nil.
func NewRule(head Term, prob Term, body Term) *Clause {
	return &Clause{Kind: KindRule, Heads: []Head{{Term: head, Probability: prob}}, Body: body}
}

// NewDisjunction builds an annotated disjunction. body may be nil.
func NewDisjunction(heads []Head, body Term) *Clause {
	return &Clause{Kind: KindDisjunction, Heads: heads, Body: body}
}

// IsProbabilistic reports whether any head carries an annotation.
func (c *Clause) IsProbabilistic() bool {
	for _, h := range c.Heads {
		if h.Probability != nil {
			return true
		}
	}
	return false
}

// String renders the clause in source syntax.
func (c *Clause) String() string {
	parts := make([]string, len(c.Heads))
	for i, h := range c.Heads {
		parts[i] = h.String()
	}
	s := strings.Join(parts, "; ")
	if c.Body != nil {
		s += " :- " + c.Body.String()
	}
	return s + "."
}
