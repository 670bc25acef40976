package problog

import (
	"iter"
	"strings"
)

// BodyOp tags a body expression node.
type BodyOp int

const (
	BodyLit BodyOp = iota
	BodyAnd
	BodyOr
	BodyNot
	BodyTrue
	BodyFalse
)

// BodyExpr is the Boolean body of an enumerated clause over named atoms.
type BodyExpr struct {
	Op   BodyOp
	Name string
	Args []*BodyExpr
}

// LitExpr references the atom called name.
func LitExpr(name string) *BodyExpr { return &BodyExpr{Op: BodyLit, Name: name} }

// AndExpr conjoins expressions.
func AndExpr(args ...*BodyExpr) *BodyExpr { return &BodyExpr{Op: BodyAnd, Args: args} }

// OrExpr disjoins expressions.
func OrExpr(args ...*BodyExpr) *BodyExpr { return &BodyExpr{Op: BodyOr, Args: args} }

// NotExpr negates an expression.
func NotExpr(arg *BodyExpr) *BodyExpr { return &BodyExpr{Op: BodyNot, Args: []*BodyExpr{arg}} }

// Atoms returns the distinct atom names of the expression in order of
// first occurrence. Negated atoms are listed as the atom itself.
func (e *BodyExpr) Atoms() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(*BodyExpr)
	walk = func(x *BodyExpr) {
		if x.Op == BodyLit {
			if !seen[x.Name] {
				seen[x.Name] = true
				out = append(out, x.Name)
			}
			return
		}
		for _, a := range x.Args {
			walk(a)
		}
	}
	if e != nil {
		walk(e)
	}
	return out
}

// Eval evaluates the expression under a truth assignment. Conjunctions
// stop at the first false argument and disjunctions at the first true one.
// An atom missing from the assignment is an ErrBodyNotBoolean failure.
func (e *BodyExpr) Eval(truth map[string]bool) (bool, error) {
	switch e.Op {
	case BodyTrue:
		return true, nil
	case BodyFalse:
		return false, nil
	case BodyLit:
		v, ok := truth[e.Name]
		if !ok {
			return false, &unknownAtomError{name: e.Name}
		}
		return v, nil
	case BodyNot:
		v, err := e.Args[0].Eval(truth)
		return !v, err
	case BodyAnd:
		for _, a := range e.Args {
			v, err := a.Eval(truth)
			if err != nil || !v {
				return false, err
			}
		}
		return true, nil
	case BodyOr:
		for _, a := range e.Args {
			v, err := a.Eval(truth)
			if err != nil || v {
				return v, err
			}
		}
		return false, nil
	}
	return false, ErrBodyNotBoolean
}

type unknownAtomError struct{ name string }

func (e *unknownAtomError) Error() string { return "unknown atom " + e.name }
func (e *unknownAtomError) Unwrap() error { return ErrBodyNotBoolean }

func (e *BodyExpr) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *BodyExpr) write(sb *strings.Builder) {
	switch e.Op {
	case BodyTrue:
		sb.WriteString("true")
	case BodyFalse:
		sb.WriteString("fail")
	case BodyLit:
		sb.WriteString(e.Name)
	case BodyNot:
		sb.WriteString(`\+`)
		e.Args[0].writeOperand(sb)
	case BodyAnd, BodyOr:
		sep := ", "
		if e.Op == BodyOr {
			sep = "; "
		}
		for i, a := range e.Args {
			if i > 0 {
				sb.WriteString(sep)
			}
			if a.Op == BodyOr && e.Op == BodyAnd {
				a.writeOperand(sb)
			} else {
				a.write(sb)
			}
		}
	}
}

func (e *BodyExpr) writeOperand(sb *strings.Builder) {
	if e.Op == BodyAnd || e.Op == BodyOr {
		sb.WriteByte('(')
		e.write(sb)
		sb.WriteByte(')')
		return
	}
	e.write(sb)
}

// ClauseHead is one head of an enumerated clause. A nil Probability marks
// a deterministic head.
type ClauseHead struct {
	Name        string
	Probability Term
}

// ClauseView is one clause-shaped view over the formula, numbered by its
// position in the enumeration. Kind is KindFact for a single head without
// body, KindDisjunction for several heads without body and KindRule
// otherwise.
type ClauseView struct {
	Index int
	Kind  ClauseKind
	Heads []ClauseHead
	Body  *BodyExpr
}

func (c ClauseView) String() string {
	var sb strings.Builder
	for i, h := range c.Heads {
		if i > 0 {
			sb.WriteString("; ")
		}
		if h.Probability != nil {
			sb.WriteString(h.Probability.String())
			sb.WriteString("::")
		}
		sb.WriteString(h.Name)
	}
	if c.Body != nil {
		sb.WriteString(" :- ")
		c.Body.write(&sb)
	}
	sb.WriteByte('.')
	return sb.String()
}

func newClauseView(heads []ClauseHead, body *BodyExpr) ClauseView {
	kind := KindRule
	if body == nil {
		kind = KindFact
		if len(heads) > 1 {
			kind = KindDisjunction
		}
	}
	return ClauseView{Kind: kind, Heads: heads, Body: body}
}

// EnumClauses enumerates the formula as a ground program, one clause per
// probabilistic choice, deterministic atom and named definition, in node
// creation order. The formula should be acyclic. The sequence is lazy and
// may be iterated more than once.
//
// A probabilistic atom yields its fact or annotated disjunction, with the
// rule bodies it was derived under. A named conjunction yields one rule;
// a named disjunction yields one rule per alternative, leaving out the
// alternatives that are the choice rules of the name itself.
func (f *Formula) EnumClauses() iter.Seq[ClauseView] {
	return func(yield func(ClauseView) bool) {
		en := newEnumerator(f)
		index := 0
		emit := func(c ClauseView) bool {
			c.Index = index
			index++
			return yield(c)
		}
		for id := range f.nodes {
			nid := NodeID(id)
			n := &f.nodes[id]
			if n.Kind == NodeAtom {
				if c, ok := en.atomClause(nid); ok && !emit(c) {
					return
				}
			}
			for _, nr := range en.namesOn[nid] {
				for _, c := range en.nameClauses(nr) {
					if !emit(c) {
						return
					}
				}
			}
		}
	}
}

type enumerator struct {
	f       *Formula
	primary map[NodeID]string
	namesOn map[NodeID][]NamedRef
}

func newEnumerator(f *Formula) *enumerator {
	en := &enumerator{f: f, primary: make(map[NodeID]string), namesOn: make(map[NodeID][]NamedRef)}
	for _, nr := range f.names {
		id := nr.Ref.Node()
		en.namesOn[id] = append(en.namesOn[id], nr)
	}
	for id, names := range en.namesOn {
		if name, ok := en.owner(id, names); ok {
			en.primary[id] = name
		}
	}
	return en
}

// owner picks the name a node is referenced by. Atoms and choice rules are
// named after their head. A disjunction prefers a name whose choice rules
// it collects, so aliases never point back at their own definition.
func (en *enumerator) owner(id NodeID, names []NamedRef) (string, bool) {
	if id == 0 {
		return "", false
	}
	n := &en.f.nodes[id]
	if n.Kind == NodeAtom {
		return n.Atom.Name.String(), true
	}
	if atom, ok := en.f.ChoiceOf(id); ok {
		return en.f.nodes[atom].Atom.Name.String(), true
	}
	first := ""
	for _, nr := range names {
		if nr.Ref.Negated() {
			continue
		}
		name := nr.Name.String()
		if first == "" {
			first = name
		}
		for _, c := range n.Children {
			if en.ownChoice(c, name) {
				return name, true
			}
		}
	}
	return first, first != ""
}

func (en *enumerator) atomClause(id NodeID) (ClauseView, bool) {
	a := en.f.nodes[id].Atom
	if !a.IsProbabilistic() {
		return newClauseView([]ClauseHead{{Name: a.Name.String()}}, nil), true
	}
	members := []NodeID{id}
	if a.Group != NoGroup {
		g := en.f.groups[a.Group]
		if g.Atoms[0] != id {
			return ClauseView{}, false
		}
		members = g.Atoms
	}
	heads := make([]ClauseHead, len(members))
	var bodies []Ref
	for i, m := range members {
		ma := en.f.nodes[m].Atom
		heads[i] = ClauseHead{Name: ma.Name.String(), Probability: ma.Probability}
		for _, b := range en.f.choiceBodies[m] {
			if !containsRef(bodies, b) {
				bodies = append(bodies, b)
			}
		}
	}
	var body *BodyExpr
	if len(bodies) > 0 && !containsRef(bodies, True) {
		args := make([]*BodyExpr, len(bodies))
		for i, b := range bodies {
			args[i] = en.expr(b)
		}
		body = args[0]
		if len(args) > 1 {
			body = OrExpr(args...)
		}
	}
	return newClauseView(heads, body), true
}

func (en *enumerator) nameClauses(nr NamedRef) []ClauseView {
	name := nr.Name.String()
	head := []ClauseHead{{Name: name}}
	switch nr.Ref {
	case True:
		return []ClauseView{newClauseView(head, nil)}
	case False:
		return nil
	}
	id := nr.Ref.Node()
	if nr.Ref.Negated() || en.primary[id] != name {
		return []ClauseView{newClauseView(head, en.expr(nr.Ref))}
	}
	n := &en.f.nodes[id]
	switch n.Kind {
	case NodeAtom:
		return nil
	case NodeAnd:
		if en.ownChoice(nr.Ref, name) {
			return nil
		}
		return []ClauseView{newClauseView(head, en.expand(n))}
	default:
		var out []ClauseView
		for _, c := range n.Children {
			if en.ownChoice(c, name) {
				continue
			}
			out = append(out, newClauseView([]ClauseHead{{Name: name}}, en.expr(c)))
		}
		return out
	}
}

// ownChoice reports whether r is a choice rule, or a bodiless choice atom,
// whose head is called name.
func (en *enumerator) ownChoice(r Ref, name string) bool {
	if r.Negated() || r.IsConstant() {
		return false
	}
	id := r.Node()
	if atom, ok := en.f.ChoiceOf(id); ok {
		return en.f.nodes[atom].Atom.Name.String() == name
	}
	n := &en.f.nodes[id]
	return n.Kind == NodeAtom && n.Atom.IsProbabilistic() && n.Atom.Name.String() == name
}

// expr renders a reference as a body expression. Named nodes and atoms are
// referenced by name; a choice rule stands for its head; other nodes are
// expanded.
func (en *enumerator) expr(r Ref) *BodyExpr {
	var e *BodyExpr
	switch {
	case r == True:
		return &BodyExpr{Op: BodyTrue}
	case r == False:
		return &BodyExpr{Op: BodyFalse}
	}
	id := r.Node()
	n := &en.f.nodes[id]
	switch name, named := en.primary[id]; {
	case named:
		e = LitExpr(name)
	case n.Kind == NodeAtom:
		e = LitExpr(n.Atom.Name.String())
	default:
		if atom, ok := en.f.ChoiceOf(id); ok {
			e = LitExpr(en.f.nodes[atom].Atom.Name.String())
		} else {
			e = en.expand(n)
		}
	}
	if r.Negated() {
		return NotExpr(e)
	}
	return e
}

func (en *enumerator) expand(n *Node) *BodyExpr {
	args := make([]*BodyExpr, len(n.Children))
	for i, c := range n.Children {
		args[i] = en.expr(c)
	}
	if n.Kind == NodeAnd {
		return AndExpr(args...)
	}
	return OrExpr(args...)
}
