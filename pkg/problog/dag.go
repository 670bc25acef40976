package problog

import (
	"maps"
	"slices"
	"strconv"
)

// Roots returns the references reachable from the outside of the formula:
// label references first in label order, then names in registration order.
func (f *Formula) Roots() []Ref {
	roots := make([]Ref, 0, len(f.labels)+len(f.names))
	for _, l := range f.labels {
		roots = append(roots, l.Ref)
	}
	for _, nr := range f.names {
		roots = append(roots, nr.Ref)
	}
	return roots
}

// DetectCycles finds the strongly connected components of the node graph
// reachable from the formula roots, using Tarjan's algorithm.
//
// Components are returned in reverse topological order: every component
// comes after the components it depends on.
func (f *Formula) DetectCycles() [][]NodeID {
	index := 0
	stack := make([]NodeID, 0)
	onStack := make(map[NodeID]bool)
	indices := make(map[NodeID]int)
	lowlinks := make(map[NodeID]int)
	sccs := make([][]NodeID, 0)

	var strongConnect func(NodeID)
	strongConnect = func(id NodeID) {
		indices[id] = index
		lowlinks[id] = index
		index++

		stack = append(stack, id)
		onStack[id] = true

		for _, c := range f.nodes[id].Children {
			dep := c.Node()
			if _, visited := indices[dep]; !visited {
				strongConnect(dep)
				if lowlinks[dep] < lowlinks[id] {
					lowlinks[id] = lowlinks[dep]
				}
			} else if onStack[dep] {
				if indices[dep] < lowlinks[id] {
					lowlinks[id] = indices[dep]
				}
			}
		}

		// Root of a component: pop it.
		if lowlinks[id] == indices[id] {
			var scc []NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == id {
					break
				}
			}
			// Keep creation order inside a component.
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, r := range f.Roots() {
		if r.IsConstant() {
			continue
		}
		if _, visited := indices[r.Node()]; !visited {
			strongConnect(r.Node())
		}
	}
	return sccs
}

// IsCyclic reports whether any node reachable from the roots depends on
// itself.
func (f *Formula) IsCyclic() bool {
	for _, scc := range f.DetectCycles() {
		if len(scc) > 1 || f.selfLoop(scc[0]) {
			return true
		}
	}
	return false
}

func (f *Formula) selfLoop(id NodeID) bool {
	for _, c := range f.nodes[id].Children {
		if c.Node() == id {
			return true
		}
	}
	return false
}

// breaker translates a cyclic formula into an acyclic one.
type breaker struct {
	raw    *Formula
	dag    *Formula
	mapped map[NodeID]Ref
}

func (b *breaker) ref(r Ref) Ref {
	if r.IsConstant() {
		return r
	}
	m, ok := b.mapped[r.Node()]
	if !ok {
		// Not yet computed inside a component: least fixpoint starts at
		// false.
		m = False
	}
	if r.Negated() {
		return m.Not()
	}
	return m
}

// translate builds the acyclic counterpart of a non-atom node from the
// current mapping of its children.
func (b *breaker) translate(id NodeID) Ref {
	n := &b.raw.nodes[id]
	kids := make([]Ref, len(n.Children))
	for i, c := range n.Children {
		kids[i] = b.ref(c)
	}
	if n.Kind == NodeAnd {
		return b.dag.AddAnd(kids...)
	}
	return b.dag.AddOr(kids...)
}

// translateAtom copies an atom. Members of a choice group are copied
// together and in group order, so the group stays complete in the result.
func (b *breaker) translateAtom(id NodeID) {
	a := b.raw.nodes[id].Atom
	if a.Group == NoGroup {
		info := *a
		b.mapped[id] = b.dag.AddAtom(info)
		return
	}
	g := b.raw.groups[a.Group]
	gid, _ := b.dag.Group(g.Key, g.Clause)
	for _, member := range g.Atoms {
		info := *b.raw.nodes[member].Atom
		info.Group = gid
		b.mapped[member] = b.dag.AddAtom(info)
	}
}

// BreakCycles returns an acyclic formula equivalent to raw under the least
// fixpoint semantics.
//
// Components of the node graph are processed dependencies first. A
// component without a cycle is copied node by node. A cyclic component is
// solved by Kleene iteration from false, bounded by the component size;
// a negative edge inside a cyclic component yields ErrCyclicNegation.
// Names, labels, choice groups and the evidence lookup are carried over
// with mapped references.
func BreakCycles(raw *Formula) (*Formula, error) {
	b := &breaker{raw: raw, dag: NewFormula(), mapped: map[NodeID]Ref{0: True}}

	for _, scc := range raw.DetectCycles() {
		if len(scc) == 1 && !raw.selfLoop(scc[0]) {
			id := scc[0]
			switch raw.nodes[id].Kind {
			case NodeTrue:
			case NodeAtom:
				if _, done := b.mapped[id]; !done {
					b.translateAtom(id)
				}
			default:
				b.mapped[id] = b.translate(id)
			}
			continue
		}
		if err := b.solveComponent(scc); err != nil {
			return nil, err
		}
	}

	for _, atom := range slices.Sorted(maps.Keys(raw.choiceBodies)) {
		m, ok := b.mapped[atom]
		if !ok || m.IsConstant() || m.Negated() {
			continue
		}
		for _, body := range raw.choiceBodies[atom] {
			if mb := b.ref(body); mb != False && !containsRef(b.dag.choiceBodies[m.Node()], mb) {
				b.dag.choiceBodies[m.Node()] = append(b.dag.choiceBodies[m.Node()], mb)
			}
		}
	}
	for _, conj := range slices.Sorted(maps.Keys(raw.choiceConj)) {
		rule := raw.choiceConj[conj]
		m, ok := b.mapped[conj]
		if !ok || m.Negated() || m.IsConstant() || b.dag.nodes[m.Node()].Kind != NodeAnd {
			continue
		}
		atom, ok := b.mapped[rule.atom]
		if !ok || atom.IsConstant() || atom.Negated() {
			continue
		}
		b.dag.choiceConj[m.Node()] = choiceRule{atom: atom.Node(), body: b.ref(rule.body)}
	}
	for _, nr := range raw.names {
		b.dag.AddName(nr.Name, b.ref(nr.Ref))
	}
	for _, l := range raw.labels {
		l.Ref = b.ref(l.Ref)
		b.dag.AddLabel(l)
	}
	for id, v := range raw.forced {
		m, ok := b.mapped[id]
		if !ok || m.IsConstant() {
			continue
		}
		b.dag.forced[m.Node()] = v != m.Negated()
	}
	return b.dag, nil
}

func (b *breaker) solveComponent(scc []NodeID) error {
	members := make(map[NodeID]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}
	for _, id := range scc {
		n := &b.raw.nodes[id]
		for _, c := range n.Children {
			if c.Negated() && members[c.Node()] {
				return groundingErr(ErrCyclicNegation, b.raw.termOf(id), "negative dependency on %s", termOrID(b.raw, c.Node()))
			}
		}
	}
	// Atoms and constants never sit on a cycle; only conjunctions and
	// disjunctions are iterated.
	for iter := 0; iter <= len(scc); iter++ {
		changed := false
		for _, id := range scc {
			next := b.translate(id)
			if prev, ok := b.mapped[id]; !ok || prev != next {
				changed = true
			}
			b.mapped[id] = next
		}
		if !changed {
			break
		}
	}
	return nil
}

func termOrID(f *Formula, id NodeID) string {
	if t := f.termOf(id); t != nil {
		return t.String()
	}
	return "node " + strconv.Itoa(int(id))
}
