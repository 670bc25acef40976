package problog

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"go.uber.org/zap"
)

// DefaultMaxModels bounds model enumeration when EnumCompiler.MaxModels is
// not set.
const DefaultMaxModels = 1 << 16

// EnumCompiler compiles a formula by enumerating the models of its query
// and evidence cone with a SAT solver. The result is a disjunction of
// mutually exclusive model conjunctions, so evaluation is exact for any
// acyclic formula. Choice groups are encoded exclusively with an explicit
// residual literal.
type EnumCompiler struct {
	// MaxModels bounds the number of models (0 = DefaultMaxModels)
	MaxModels int
	Logger    *zap.Logger
}

// Compile encodes dag as an and-inverter graph, conjoins the evidence and
// enumerates the satisfying assignments of its atoms.
func (ec EnumCompiler) Compile(dag *Formula) (*Circuit, error) {
	logger := ec.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := ec.MaxModels
	if limit <= 0 {
		limit = DefaultMaxModels
	}
	defer StartTimer(logger, "enumerate models")()

	queries := dag.Queries()
	evidence := dag.Evidence()
	cone := dag.cone(queries, evidence)

	c := logic.NewC()
	lits := make(map[NodeID]z.Lit, len(cone))
	lits[0] = c.T
	var atoms []NodeID
	inGroup := make(map[int]bool)
	var groups []int
	// Children always have smaller ids than their parents.
	for id := range dag.nodes {
		nid := NodeID(id)
		if !cone[nid] || nid == 0 {
			continue
		}
		n := &dag.nodes[id]
		switch n.Kind {
		case NodeAtom:
			if n.Atom.Group != NoGroup {
				if !inGroup[n.Atom.Group] {
					inGroup[n.Atom.Group] = true
					groups = append(groups, n.Atom.Group)
					for _, m := range dag.groups[n.Atom.Group].Atoms {
						if _, ok := lits[m]; !ok {
							lits[m] = c.Lit()
							atoms = append(atoms, m)
						}
					}
				}
				continue
			}
			if _, ok := lits[nid]; !ok {
				lits[nid] = c.Lit()
				atoms = append(atoms, nid)
			}
		case NodeAnd, NodeOr:
			kids := make([]z.Lit, len(n.Children))
			for i, ch := range n.Children {
				kids[i] = encodeRef(lits, ch)
			}
			if n.Kind == NodeAnd {
				lits[nid] = c.Ands(kids...)
			} else {
				lits[nid] = c.Ors(kids...)
			}
		}
	}

	var roots []z.Lit
	for _, q := range queries {
		roots = append(roots, encodeRef(lits, q.Ref))
	}
	for _, l := range evidence {
		roots = append(roots, encodeRef(lits, l.Condition()))
	}
	g := gini.New()
	c.CnfSince(g, nil, roots...)
	for _, a := range atoms {
		// Every atom must be known to the solver, even when no gate uses it.
		g.Add(lits[a])
		g.Add(lits[a].Not())
		g.Add(0)
	}
	for _, gid := range groups {
		members := dag.groups[gid].Atoms
		for i := range members {
			for j := i + 1; j < len(members); j++ {
				g.Add(lits[members[i]].Not())
				g.Add(lits[members[j]].Not())
				g.Add(0)
			}
		}
	}
	for _, l := range evidence {
		g.Add(encodeRef(lits, l.Condition()))
		g.Add(0)
	}

	circ := newCircuit("enum")
	circ.Exclusive = true
	posLit := make(map[NodeID]int, len(atoms))
	negLit := make(map[NodeID]int, len(atoms))
	for _, a := range atoms {
		circ.Atoms[a] = dag.nodes[a].Atom
		posLit[a] = circ.add(CircuitNode{Kind: CircuitLit, Atom: a})
		negLit[a] = circ.add(CircuitNode{Kind: CircuitLit, Atom: a, Negated: true})
	}
	groupNone := make(map[int]int, len(groups))
	for _, gid := range groups {
		circ.Groups[gid] = dag.groups[gid].Atoms
		groupNone[gid] = circ.add(CircuitNode{Kind: CircuitGroupNone, Group: gid})
	}

	vs := make([]bool, c.Len())
	var models []int
	queryModels := make([][]int, len(queries))
	for g.Solve() == 1 {
		if len(models) >= limit {
			return nil, &BackendError{Backend: "enum", Err: ErrModelLimit}
		}
		chosen := make(map[int]bool, len(groups))
		kids := make([]int, 0, len(atoms)+len(groups))
		for _, a := range atoms {
			m := lits[a]
			v := g.Value(m)
			vs[m.Var()] = v
			if v {
				kids = append(kids, posLit[a])
				if gid := dag.nodes[a].Atom.Group; gid != NoGroup {
					chosen[gid] = true
				}
			} else {
				kids = append(kids, negLit[a])
			}
		}
		for _, gid := range groups {
			if !chosen[gid] {
				kids = append(kids, groupNone[gid])
			}
		}
		c.Eval(vs)
		model := circ.and(kids)
		models = append(models, model)
		for i, q := range queries {
			if litValue(vs, encodeRef(lits, q.Ref)) {
				queryModels[i] = append(queryModels[i], model)
			}
		}
		if len(atoms) == 0 {
			break
		}
		for _, a := range atoms {
			if g.Value(lits[a]) {
				g.Add(lits[a].Not())
			} else {
				g.Add(lits[a])
			}
		}
		g.Add(0)
	}

	if len(evidence) > 0 {
		if len(models) == 0 {
			return nil, &BackendError{Backend: "enum", Err: ErrInconsistentEvidence}
		}
		circ.Evidence = circ.or(models)
	}
	for i, q := range queries {
		circ.Queries = append(circ.Queries, CircuitRoot{Name: q.Name, Root: circ.or(queryModels[i])})
	}
	logger.Debug("enumerated models",
		zap.Int("atoms", len(atoms)),
		zap.Int("models", len(models)),
		zap.Int("nodes", circ.Len()),
	)
	return circ, nil
}

func encodeRef(lits map[NodeID]z.Lit, r Ref) z.Lit {
	m := lits[r.Node()]
	if r.Negated() {
		return m.Not()
	}
	return m
}

func litValue(vs []bool, m z.Lit) bool {
	v := vs[m.Var()]
	if !m.IsPos() {
		return !v
	}
	return v
}

// cone returns the nodes reachable from the query and evidence labels.
func (f *Formula) cone(queries, evidence []Label) map[NodeID]bool {
	seen := make(map[NodeID]bool)
	var visit func(id NodeID)
	visit = func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, ch := range f.nodes[id].Children {
			visit(ch.Node())
		}
	}
	for _, l := range queries {
		visit(l.Ref.Node())
	}
	for _, l := range evidence {
		visit(l.Ref.Node())
	}
	return seen
}
