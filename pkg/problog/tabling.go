// Package problog grounds programs by goal-directed resolution with tabling.
//
// Every call variant owns a table entry holding its answers, each answer
// paired with the formula node that encodes when it holds. Calls to an
// entry still being evaluated reuse a placeholder node, so recursion
// produces cycles in the raw formula instead of looping. Entries complete
// per strongly connected component of the call graph: the component
// leader re-evaluates its members until no answer or disjunct is added.
//
// Probabilistic clauses introduce one choice atom per ground instance,
// keyed by the bindings of all clause variables. Heads of an annotated
// disjunction share a choice group so at most one of them is true.
package problog

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// cont receives one solution of a goal: the extended substitution and the
// condition under which the solution holds.
type cont func(s *Substitution, body Ref) error

// tableEntry is the table of one call variant.
//
// Completion follows the SCC structure of the call graph: every entry is
// pushed on the completion stack with pos/low like a Tarjan node. A call to
// an incomplete entry lowers the caller's low link. An entry whose low link
// equals its position leads a component; it re-evaluates every entry above
// it on the stack until no answer or disjunct is added, then completes them
// all at once.
type tableEntry struct {
	key         string
	goal        Term
	def         DefinitionID
	answers     []NamedRef
	answerIndex map[string]int

	complete  bool
	reentered bool
	pos       int
	low       int
}

// run is the state of one grounding run. It is never shared.
type run struct {
	e  *Engine
	db *ClauseDB
	f  *Formula

	table    map[string]*tableEntry
	stack    []*tableEntry
	current  *tableEntry
	atomRefs map[string]Ref
	changes  int
	depth    int
}

func newRun(e *Engine, db *ClauseDB, f *Formula) *run {
	r := &run{
		e:        e,
		db:       db,
		f:        f,
		table:    make(map[string]*tableEntry),
		atomRefs: make(map[string]Ref),
	}
	// Formulas grown incrementally keep one placeholder per ground atom.
	for _, nr := range f.names {
		if !nr.Ref.IsConstant() && f.nodes[nr.Ref.Node()].placeholder {
			r.atomRefs[nr.Name.String()] = nr.Ref
		}
	}
	return r
}

// placeholderFor returns the shared answer node of a ground atom.
func (r *run) placeholderFor(t Term) Ref {
	key := t.String()
	if ph, ok := r.atomRefs[key]; ok {
		return ph
	}
	ph := r.f.AddPlaceholder(t)
	r.atomRefs[key] = ph
	r.f.AddName(t, ph)
	return ph
}

// answersOf solves goal from the top level and merges derivations of the
// same answer.
func (r *run) answersOf(goal Term) ([]NamedRef, error) {
	var out []NamedRef
	index := make(map[string]int)
	err := r.solve(goal, NewSubstitution(), True, func(s *Substitution, body Ref) error {
		t := s.Resolve(goal)
		key := VariantKey(t)
		if i, ok := index[key]; ok {
			out[i].Ref = r.f.AddOr(out[i].Ref, body)
			return nil
		}
		index[key] = len(out)
		out = append(out, NamedRef{Name: t, Ref: body})
		return nil
	})
	return out, err
}

func (r *run) groundLabel(l Label) error {
	if !IsGround(l.Name) {
		return nonGround(l.Role.String(), l.Name)
	}
	answers, err := r.answersOf(l.Name)
	if err != nil {
		return err
	}
	l.Ref = False
	if len(answers) > 0 {
		l.Ref = answers[0].Ref
	}
	if l.Role == RoleEvidence || l.Role == RoleObservation {
		if l.Condition() == False {
			return groundingErr(ErrInconsistentEvidence, l.Name, "evidence can never hold")
		}
		for _, prev := range r.f.Labels() {
			if (prev.Role == RoleEvidence || prev.Role == RoleObservation) &&
				prev.Value != l.Value && prev.Name.Equal(l.Name) {
				return groundingErr(ErrInconsistentEvidence, l.Name, "observed both true and false")
			}
		}
	}
	r.f.AddLabel(l)
	return nil
}

func (r *run) groundQuery(q Term) error {
	answers, err := r.answersOf(q)
	if err != nil {
		return err
	}
	if len(answers) == 0 && IsGround(q) {
		r.f.AddQuery(q, False)
		return nil
	}
	for _, a := range answers {
		if !IsGround(a.Name) {
			return nonGround("query", a.Name)
		}
		r.f.AddQuery(a.Name, a.Ref)
	}
	return nil
}

func (r *run) groundAllHeads() error {
	for _, id := range r.db.Definitions() {
		functor, arity := r.db.Indicator(id)
		if markerPredicates[indicatorKey(functor, arity)] {
			continue
		}
		args := make([]Term, arity)
		for i := range args {
			args[i] = Fresh("A")
		}
		if _, err := r.answersOf(NewCompound(functor, args...)); err != nil {
			return err
		}
	}
	return nil
}

// deterministicTrue reports whether ref holds in every world.
func (r *run) deterministicTrue(ref Ref) bool {
	return r.truth(ref, make(map[NodeID]bool))
}

func (r *run) truth(ref Ref, visiting map[NodeID]bool) bool {
	switch ref {
	case True:
		return true
	case False:
		return false
	}
	id := ref.Node()
	if visiting[id] {
		return false
	}
	visiting[id] = true
	defer delete(visiting, id)
	n := &r.f.nodes[id]
	var v bool
	switch n.Kind {
	case NodeAtom:
		v = !n.Atom.IsProbabilistic()
	case NodeAnd:
		v = true
		for _, c := range n.Children {
			if !r.truth(c, visiting) {
				v = false
				break
			}
		}
	case NodeOr:
		for _, c := range n.Children {
			if r.truth(c, visiting) {
				v = true
				break
			}
		}
	}
	if ref.Negated() {
		return !v
	}
	return v
}

func (r *run) solve(goal Term, s *Substitution, body Ref, k cont) error {
	g := s.Walk(goal)
	name, arity, ok := Indicator(g)
	if !ok {
		if g.IsVar() {
			return groundingErr(ErrNonGround, goal, "goal is an unbound variable")
		}
		return groundingErr(ErrInvalidDeclaration, g, "goal is not callable")
	}
	var args []Term
	if c, ok := g.(*Compound); ok {
		args = c.args
	}
	switch {
	case name == "true" && arity == 0:
		return k(s, body)
	case (name == "fail" || name == "false") && arity == 0:
		return nil
	case name == "," && arity == 2:
		return r.solve(args[0], s, body, func(s1 *Substitution, b1 Ref) error {
			return r.solve(args[1], s1, b1, k)
		})
	case name == ";" && arity == 2:
		if c, ok := s.Walk(args[0]).(*Compound); ok && c.functor == "->" && len(c.args) == 2 {
			return r.ifThenElse(c.args[0], c.args[1], args[1], s, body, k)
		}
		if err := r.solve(args[0], s, body, k); err != nil {
			return err
		}
		return r.solve(args[1], s, body, k)
	case name == "->" && arity == 2:
		return r.ifThenElse(args[0], args[1], NewAtom("fail"), s, body, k)
	case (name == `\+` || name == "not") && arity == 1:
		return r.negation(args[0], s, body, k)
	case name == "call" && arity >= 1:
		target := s.Walk(args[0])
		if arity > 1 {
			tn, _, ok := Indicator(target)
			if !ok {
				return groundingErr(ErrNonGround, target, "call/%d target is not callable", arity)
			}
			var base []Term
			if tc, ok := target.(*Compound); ok {
				base = tc.args
			}
			full := append(append([]Term{}, base...), args[1:]...)
			target = NewCompound(tn, full...)
		}
		return r.solve(target, s, body, k)
	}

	if b, ok := r.e.builtins.Lookup(name, arity); ok {
		ctx := &BuiltinContext{Goal: g, formula: r.f, keep: r.e.config.KeepAll && !r.e.config.HideBuiltins}
		results, err := b(ctx, args, s)
		if err != nil {
			if IsGroundingError(err) {
				return err
			}
			return &GroundingError{Term: s.Resolve(g), Err: err}
		}
		for _, res := range results {
			nb := r.f.AddAnd(body, res.Ref)
			if nb == False {
				continue
			}
			if err := k(res.Subst, nb); err != nil {
				return err
			}
		}
		return nil
	}

	id, ok := r.db.Find(name, arity)
	if !ok {
		if markerPredicates[indicatorKey(name, arity)] {
			return nil
		}
		return groundingErr(ErrUndefinedPredicate, g, "%s/%d", name, arity)
	}
	resolved := s.Resolve(g)
	en, err := r.call(id, resolved)
	if err != nil {
		return err
	}
	for i := 0; i < len(en.answers); i++ {
		a := en.answers[i]
		if en.complete && r.emptyPlaceholder(a.Ref) {
			continue
		}
		t := a.Name
		if !IsGround(t) {
			t = Rename(t, make(map[int64]*Var))
		}
		s2, ok := Unify(resolved, t, s)
		if !ok {
			continue
		}
		nb := r.f.AddAnd(body, a.Ref)
		if nb == False {
			continue
		}
		if err := k(s2, nb); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emptyPlaceholder(ref Ref) bool {
	if ref.IsConstant() {
		return false
	}
	n := &r.f.nodes[ref.Node()]
	return n.placeholder && len(n.Children) == 0
}

// negation grounds \+ goal as the negated disjunction of goal's solutions.
func (r *run) negation(goal Term, s *Substitution, body Ref, k cont) error {
	g := s.Resolve(goal)
	if !IsGround(g) {
		return groundingErr(ErrNonGround, g, "negated goal is not ground")
	}
	var refs []Ref
	err := r.solve(g, s, True, func(_ *Substitution, b Ref) error {
		refs = append(refs, b)
		return nil
	})
	if err != nil {
		return err
	}
	nb := r.f.AddAnd(body, r.f.AddOr(refs...).Not())
	if nb == False {
		return nil
	}
	return k(s, nb)
}

// ifThenElse grounds (C -> T ; E) as (C, T ; \+ C, E). The condition must
// be ground so its negation is well defined.
func (r *run) ifThenElse(c, t, e Term, s *Substitution, body Ref, k cont) error {
	if err := r.solve(c, s, body, func(s1 *Substitution, b1 Ref) error {
		return r.solve(t, s1, b1, k)
	}); err != nil {
		return err
	}
	return r.negation(c, s, body, func(s1 *Substitution, b1 Ref) error {
		return r.solve(e, s1, b1, k)
	})
}

// call returns the table entry of goal, evaluating it on first use.
func (r *run) call(def DefinitionID, goal Term) (*tableEntry, error) {
	key := VariantKey(goal)
	if en, ok := r.table[key]; ok {
		if !en.complete {
			en.reentered = true
			if r.current != nil && en.pos < r.current.low {
				r.current.low = en.pos
			}
		}
		return en, nil
	}
	if limit := r.e.config.MaxCallDepth; limit > 0 && r.depth >= limit {
		return nil, groundingErr(ErrLimitExceeded, goal, "call depth exceeds %d", limit)
	}
	en := &tableEntry{
		key:         key,
		goal:        Rename(goal, make(map[int64]*Var)),
		def:         def,
		answerIndex: make(map[string]int),
		pos:         len(r.stack),
		low:         len(r.stack),
	}
	if IsGround(goal) {
		en.answers = []NamedRef{{Name: goal, Ref: r.placeholderFor(goal)}}
		en.answerIndex[key] = 0
	}
	r.table[key] = en
	r.stack = append(r.stack, en)

	r.depth++
	err := r.evaluate(en)
	r.depth--
	if err != nil {
		return nil, err
	}

	if en.low == en.pos {
		if en.reentered || len(r.stack) > en.pos+1 {
			if err := r.fixpoint(en); err != nil {
				return nil, err
			}
		}
		for _, m := range r.stack[en.pos:] {
			m.complete = true
		}
		r.stack = r.stack[:en.pos]
	} else if r.current != nil && en.low < r.current.low {
		r.current.low = en.low
	}
	return en, nil
}

// fixpoint re-evaluates the component led by leader until it is stable.
func (r *run) fixpoint(leader *tableEntry) error {
	limit := r.e.config.MaxFixpointIterations
	for iter := 1; ; iter++ {
		if limit > 0 && iter > limit {
			return groundingErr(ErrLimitExceeded, leader.goal, "no fixpoint after %d iterations", limit)
		}
		before := r.changes
		for i := leader.pos; i < len(r.stack); i++ {
			if err := r.evaluate(r.stack[i]); err != nil {
				return err
			}
		}
		if r.changes == before {
			return nil
		}
	}
}

// evaluate resolves an entry's goal against every candidate clause.
func (r *run) evaluate(en *tableEntry) error {
	prev := r.current
	r.current = en
	defer func() { r.current = prev }()

	for _, entry := range r.db.Candidates(en.def, en.goal) {
		clause := entry.Clause
		vm := make(map[int64]*Var)
		heads := make([]Head, len(clause.Heads))
		for i, h := range clause.Heads {
			heads[i].Term = Rename(h.Term, vm)
			if h.Probability != nil {
				heads[i].Probability = Rename(h.Probability, vm)
			}
		}
		s, ok := Unify(en.goal, heads[entry.HeadIndex].Term, NewSubstitution())
		if !ok {
			continue
		}
		onBody := func(s2 *Substitution, b Ref) error {
			return r.emit(en, clause, heads, entry.HeadIndex, vm, s2, b)
		}
		var err error
		if clause.Body == nil {
			err = onBody(s, True)
		} else {
			err = r.solve(Rename(clause.Body, vm), s, True, onBody)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// emit records one derivation of a clause head.
//
// Each substitution of the clause variables, body-only ones included, is a
// separate ground instance and gets its own choice atoms.
func (r *run) emit(en *tableEntry, clause *Clause, heads []Head, headIdx int, vm map[int64]*Var, s *Substitution, body Ref) error {
	if !clause.IsProbabilistic() {
		head := s.Resolve(heads[headIdx].Term)
		ref := body
		if r.e.config.KeepAll && clause.Kind == KindFact && IsGround(head) {
			ref = r.f.AddAtom(AtomInfo{
				Key:    fmt.Sprintf("%d:%s", clause.Index, head),
				Name:   head,
				Group:  NoGroup,
				Clause: clause.Index,
			})
		}
		r.addAnswer(en, head, ref)
		return nil
	}

	ground := make([]Head, len(heads))
	names := make([]string, len(heads))
	sum := 0.0
	for i, h := range heads {
		t := s.Resolve(h.Term)
		if !IsGround(t) {
			return nonGround("probabilistic head", t)
		}
		if h.Probability == nil {
			return groundingErr(ErrInvalidDeclaration, t, "annotated disjunction head without probability")
		}
		p, err := r.probability(s.Resolve(h.Probability), t)
		if err != nil {
			return err
		}
		if n, ok := p.(*Number); ok {
			sum += n.f
		}
		ground[i] = Head{Term: t, Probability: p}
		names[i] = t.String()
	}
	if sum > 1+1e-9 {
		return groundingErr(ErrInvalidProbability, ground[headIdx].Term,
			"probabilities of clause %d sum to %g", clause.Index, sum)
	}

	groupKey := fmt.Sprintf("%d:%s|%s", clause.Index, strings.Join(names, ";"), instanceKey(vm, s))
	group := NoGroup
	if len(heads) > 1 {
		group, _ = r.f.Group(groupKey, clause.Index)
	}
	atoms := make([]Ref, len(ground))
	for i, h := range ground {
		atoms[i] = r.f.AddAtom(AtomInfo{
			Key:         fmt.Sprintf("%s#%d", groupKey, i),
			Name:        h.Term,
			Probability: h.Probability,
			Group:       group,
			GroupIndex:  i,
			Clause:      clause.Index,
		})
	}
	r.addAnswer(en, ground[headIdx].Term, r.f.AddChoiceRule(body, atoms[headIdx]))
	return nil
}

// instanceKey identifies a clause instance by the bindings of its renamed
// variables, in order of the original variable ids.
func instanceKey(vm map[int64]*Var, s *Substitution) string {
	ids := make([]int64, 0, len(vm))
	for id := range vm {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = VariantKey(s.Resolve(vm[id]))
	}
	return strings.Join(parts, ",")
}

// probability evaluates an annotation. Numeric annotations must lie in
// [0,1]; ground non-numeric annotations are kept as symbolic parameters.
func (r *run) probability(t Term, head Term) (Term, error) {
	if !IsGround(t) {
		return nil, nonGround("probability", t)
	}
	n, err := EvalNumber(t, NewSubstitution())
	switch {
	case err == nil:
		if n.f < 0 || n.f > 1 || math.IsNaN(n.f) {
			return nil, groundingErr(ErrInvalidProbability, head, "probability %v out of range", n)
		}
		return NewFloat(n.f), nil
	case errors.Is(err, ErrArithmetic):
		return t, nil
	default:
		return nil, &GroundingError{Term: head, Err: err}
	}
}

func (r *run) addAnswer(en *tableEntry, head Term, ref Ref) {
	key := VariantKey(head)
	i, ok := en.answerIndex[key]
	if !ok {
		var ph Ref
		if IsGround(head) {
			ph = r.placeholderFor(head)
		} else {
			ph = r.f.AddPlaceholder(head)
		}
		i = len(en.answers)
		en.answers = append(en.answers, NamedRef{Name: head, Ref: ph})
		en.answerIndex[key] = i
		r.changes++
	}
	if r.f.AddDisjunct(en.answers[i].Ref, ref) {
		r.changes++
	}
}
